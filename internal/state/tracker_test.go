package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taubenschiesser/hardware-monitor/internal/mocks"
)

func newTestTracker() (*Tracker, clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewTracker(clock, zerolog.Nop()), clock
}

func TestTracker_OnTelemetry_DeviceTopic(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte(`{"Rot": 120, "Tilt": -5, "moving": false, "watertank": false, "Cam": true}`))

	s := tracker.Snapshot("10.0.0.5")
	assert.Equal(t, 120.0, s.Rotation)
	assert.Equal(t, -5.0, s.Tilt)
	assert.False(t, s.Moving)
	assert.False(t, s.Watertank)
	assert.True(t, s.CameraOn)
	assert.Equal(t, clock.Now(), s.LastSeen)
	assert.True(t, s.Seen())
}

func TestTracker_OnTelemetry_FleetTopicUsesPayloadIP(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.OnTelemetry("taubenschiesser/info", []byte(`{"Rot": 10, "ip": "10.0.0.9"}`))

	assert.True(t, tracker.Snapshot("10.0.0.9").Seen())
	assert.Equal(t, 10.0, tracker.Snapshot("10.0.0.9").Rotation)
}

func TestTracker_OnTelemetry_DropsUnusableMessages(t *testing.T) {
	tracker, _ := newTestTracker()

	assert.NotPanics(t, func() {
		tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", nil)
		tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte("   "))
		tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte("{not json"))
		tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte(`[1,2,3]`))
		tracker.OnTelemetry("taubenschiesser/info", []byte(`{"Rot": 10}`))
		tracker.OnTelemetry("other/10.0.0.5/info", []byte(`{"Rot": 10}`))
	})

	assert.Empty(t, tracker.Addresses())
	assert.False(t, tracker.Snapshot("10.0.0.5").Seen())
}

func TestTracker_OnTelemetry_MovingFalseClearsSession(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.MarkMoving("10.0.0.5")
	require.True(t, tracker.InSession("10.0.0.5"))

	tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte(`{"moving": false}`))

	s := tracker.Snapshot("10.0.0.5")
	assert.False(t, s.Moving)
	assert.Nil(t, s.Session)
}

func TestTracker_OnTelemetry_MovingTrueOpensSession(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte(`{"moving": true}`))

	s := tracker.Snapshot("10.0.0.5")
	assert.True(t, s.Moving)
	require.NotNil(t, s.Session)
	assert.Equal(t, clock.Now(), s.Session.StartedAt)

	// a later moving=true keeps the original start
	clock.Advance(5 * time.Second)
	tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte(`{"moving": true}`))
	assert.Equal(t, clock.Now().Add(-5*time.Second), tracker.Snapshot("10.0.0.5").Session.StartedAt)
}

func TestTracker_HandleMessage(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.HandleMessage(nil, mocks.NewMockMessage("taubenschiesser/10.0.0.7/info", []byte(`{"Tilt": 12}`)))

	assert.Equal(t, 12.0, tracker.Snapshot("10.0.0.7").Tilt)
}

func TestTracker_Snapshot_UnknownDevice(t *testing.T) {
	tracker, _ := newTestTracker()

	s := tracker.Snapshot("10.0.0.99")

	assert.False(t, s.Seen())
	assert.True(t, s.Watertank)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, tracker.Addresses())
}

func TestTracker_Snapshot_IsACopy(t *testing.T) {
	tracker, clock := newTestTracker()
	tracker.MarkMoving("10.0.0.5")

	s := tracker.Snapshot("10.0.0.5")
	s.Session.StartedAt = time.Time{}

	assert.Equal(t, clock.Now(), tracker.Snapshot("10.0.0.5").Session.StartedAt)
}

func TestTracker_AwaitIdle_CompletesOnTelemetry(t *testing.T) {
	// Setup
	tracker, clock := newTestTracker()
	tracker.MarkMoving("10.0.0.5")
	done := make(chan bool, 1)

	// Execute
	go func() {
		done <- tracker.AwaitIdle(context.Background(), "10.0.0.5", 500*time.Millisecond, 30*time.Second)
	}()
	clock.BlockUntil(1)
	tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte(`{"moving": false}`))
	clock.Advance(500 * time.Millisecond)

	// Assert
	assert.True(t, <-done)
}

func TestTracker_AwaitIdle_TimesOut(t *testing.T) {
	tracker, clock := newTestTracker()
	tracker.MarkMoving("10.0.0.5")
	done := make(chan bool, 1)

	go func() {
		done <- tracker.AwaitIdle(context.Background(), "10.0.0.5", time.Second, 2*time.Second)
	}()
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	assert.False(t, <-done)
	assert.True(t, tracker.InSession("10.0.0.5"))
}

func TestTracker_AwaitIdle_NoSession(t *testing.T) {
	tracker, _ := newTestTracker()

	assert.True(t, tracker.AwaitIdle(context.Background(), "10.0.0.9", time.Second, time.Second))
}

func TestTracker_RouteIndex_Cycles(t *testing.T) {
	tracker, _ := newTestTracker()

	seen := []int{tracker.RouteIndex("10.0.0.5", 3)}
	for i := 0; i < 6; i++ {
		seen = append(seen, tracker.AdvanceRoute("10.0.0.5", 3))
	}

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, seen)
}

func TestTracker_RouteIndex_ShrunkRouteResets(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.AdvanceRoute("10.0.0.5", 5)
	tracker.AdvanceRoute("10.0.0.5", 5)
	tracker.AdvanceRoute("10.0.0.5", 5)

	assert.Equal(t, 0, tracker.RouteIndex("10.0.0.5", 2))
	assert.Equal(t, 0, tracker.RouteIndex("10.0.0.5", 0))
}

func TestTracker_PhaseLifecycle(t *testing.T) {
	tracker, _ := newTestTracker()
	addr := "10.0.0.5"

	require.True(t, tracker.TryClaim(addr))
	assert.False(t, tracker.TryClaim(addr))

	for _, p := range []Phase{PhaseCommanding, PhaseMoving, PhaseStabilizing, PhaseCapturing, PhaseDetecting, PhaseTargeting} {
		assert.NoError(t, tracker.Transition(addr, p))
	}
	err := tracker.Transition(addr, PhaseMoving)
	assert.Equal(t, ErrInvalidTransition{From: PhaseTargeting, To: PhaseMoving}, err)

	assert.NoError(t, tracker.Transition(addr, PhaseIdle))
	assert.True(t, tracker.TryClaim(addr))
	tracker.Release(addr)
	assert.Equal(t, PhaseIdle, tracker.Snapshot(addr).Phase)
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tracker, _ := newTestTracker()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte(`{"moving": true, "Rot": 1}`))
				tracker.OnTelemetry("taubenschiesser/10.0.0.5/info", []byte(`{"moving": false}`))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tracker.MarkMoving("10.0.0.5")
				_ = tracker.Snapshot("10.0.0.5")
				tracker.AdvanceRoute("10.0.0.5", 3)
			}
		}()
	}
	wg.Wait()

	s := tracker.Snapshot("10.0.0.5")
	assert.Equal(t, s.Moving, s.Session != nil)
	assert.GreaterOrEqual(t, s.RouteIndex, 0)
	assert.Less(t, s.RouteIndex, 3)
}
