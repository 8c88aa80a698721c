package state

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
)

// MovementSession marks an in-flight movement.
type MovementSession struct {
	StartedAt time.Time
}

// DeviceState is the consolidated view of one device, keyed by its address.
type DeviceState struct {
	Address    string
	Rotation   float64
	Tilt       float64
	Moving     bool
	Watertank  bool
	CameraOn   bool
	LastSeen   time.Time // zero until the first telemetry message
	Session    *MovementSession
	RouteIndex int
	Phase      Phase

	// LastCommanded is when the last movement session was opened by us.
	LastCommanded time.Time
}

// Seen reports whether telemetry was ever received for the device.
func (s DeviceState) Seen() bool {
	return !s.LastSeen.IsZero()
}

func newDeviceState(address string) DeviceState {
	return DeviceState{
		Address:   address,
		Watertank: true,
		Phase:     PhaseIdle,
	}
}

type record struct {
	mu    sync.RWMutex
	state DeviceState
}

// Tracker holds the state of every device the process knows about. Telemetry
// ingestion runs on the MQTT client's goroutines while the coordinator reads
// and updates the same records; every access goes through the record lock.
type Tracker struct {
	devices cmap.ConcurrentMap[string, *record]
	clock   clockwork.Clock
	logger  zerolog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(clock clockwork.Clock, logger zerolog.Logger) *Tracker {
	return &Tracker{
		devices: cmap.New[*record](),
		clock:   clock,
		logger:  logger.With().Str("component", "state_tracker").Logger(),
	}
}

func (t *Tracker) entry(address string) *record {
	if r, ok := t.devices.Get(address); ok {
		return r
	}
	r := &record{state: newDeviceState(address)}
	if t.devices.SetIfAbsent(address, r) {
		return r
	}
	r, _ = t.devices.Get(address)
	return r
}

// HandleMessage is the paho callback for both telemetry subscriptions.
func (t *Tracker) HandleMessage(_ paho.Client, msg paho.Message) {
	t.OnTelemetry(msg.Topic(), msg.Payload())
}

// OnTelemetry ingests one telemetry message. Unusable messages are logged and
// dropped.
func (t *Tracker) OnTelemetry(topic string, payload []byte) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		t.logger.Warn().Str("topic", topic).Msg("Dropping empty telemetry payload")
		return
	}

	var msg models.Telemetry
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.logger.Warn().Err(err).Str("topic", topic).Msg("Dropping malformed telemetry payload")
		return
	}

	address, ok := addressFor(topic, msg)
	if !ok {
		t.logger.Warn().Str("topic", topic).Msg("Dropping telemetry without device address")
		return
	}

	now := t.clock.Now()
	r := t.entry(address)
	r.mu.Lock()
	s := &r.state
	if msg.Rot != nil {
		s.Rotation = *msg.Rot
	}
	if msg.Tilt != nil {
		s.Tilt = *msg.Tilt
	}
	if msg.Watertank != nil {
		s.Watertank = *msg.Watertank
	}
	if msg.Cam != nil {
		s.CameraOn = *msg.Cam
	}
	s.LastSeen = now
	completed := false
	if msg.Moving != nil {
		s.Moving = *msg.Moving
		switch {
		case !s.Moving && s.Session != nil:
			s.Session = nil
			completed = true
		case s.Moving && s.Session == nil:
			s.Session = &MovementSession{StartedAt: now}
		}
	}
	r.mu.Unlock()

	if completed {
		t.logger.Debug().Str("device", address).Msg("Movement completed")
	}
}

// addressFor derives the device address from a device topic or, for the
// fleet-wide topic, from the payload.
func addressFor(topic string, msg models.Telemetry) (string, bool) {
	if topic == constants.FleetTelemetryTopic {
		ip := strings.TrimSpace(msg.IP)
		return ip, ip != ""
	}
	parts := strings.Split(topic, "/")
	if len(parts) == 3 && parts[0] == constants.TopicRoot && parts[2] == constants.TelemetrySuffix && parts[1] != "" {
		return parts[1], true
	}
	return "", false
}

// Snapshot returns a copy of the device state. Unknown devices yield the
// initial state.
func (t *Tracker) Snapshot(address string) DeviceState {
	r, ok := t.devices.Get(address)
	if !ok {
		return newDeviceState(address)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.state
	if s.Session != nil {
		session := *s.Session
		s.Session = &session
	}
	return s
}

// Addresses returns every tracked device address.
func (t *Tracker) Addresses() []string {
	return t.devices.Keys()
}

// MarkMoving opens a movement session starting now.
func (t *Tracker) MarkMoving(address string) {
	r := t.entry(address)
	r.mu.Lock()
	defer r.mu.Unlock()
	now := t.clock.Now()
	r.state.Moving = true
	r.state.Session = &MovementSession{StartedAt: now}
	r.state.LastCommanded = now
}

// ClearSession force-clears the movement session.
func (t *Tracker) ClearSession(address string) {
	r := t.entry(address)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Moving = false
	r.state.Session = nil
}

// InSession reports whether a movement session is open.
func (t *Tracker) InSession(address string) bool {
	r, ok := t.devices.Get(address)
	if !ok {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Session != nil
}

// AwaitIdle polls every poll until the device's movement session closes. It
// returns false when timeout passes or ctx ends first; the session is left
// as it is.
func (t *Tracker) AwaitIdle(ctx context.Context, address string, poll, timeout time.Duration) bool {
	deadline := t.clock.Now().Add(timeout)
	for {
		if !t.InSession(address) {
			return true
		}
		if !t.clock.Now().Before(deadline) {
			return false
		}
		select {
		case <-t.clock.After(poll):
		case <-ctx.Done():
			return false
		}
	}
}

// RouteIndex returns the current waypoint index for a route of routeLen
// entries, always within [0, routeLen).
func (t *Tracker) RouteIndex(address string, routeLen int) int {
	if routeLen <= 0 {
		return 0
	}
	r := t.entry(address)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.RouteIndex < 0 || r.state.RouteIndex >= routeLen {
		r.state.RouteIndex = 0
	}
	return r.state.RouteIndex
}

// AdvanceRoute moves to the next waypoint, wrapping at routeLen, and returns
// the new index.
func (t *Tracker) AdvanceRoute(address string, routeLen int) int {
	r := t.entry(address)
	r.mu.Lock()
	defer r.mu.Unlock()
	if routeLen <= 0 {
		r.state.RouteIndex = 0
		return 0
	}
	r.state.RouteIndex = (r.state.RouteIndex + 1) % routeLen
	return r.state.RouteIndex
}

// TryClaim moves an idle device to eligible. It returns false when a cycle
// for the device is already in progress.
func (t *Tracker) TryClaim(address string) bool {
	r := t.entry(address)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseIdle {
		return false
	}
	r.state.Phase = PhaseEligible
	return true
}

// Transition moves the device to the given phase if the move is legal.
func (t *Tracker) Transition(address string, to Phase) error {
	r := t.entry(address)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !CanTransition(r.state.Phase, to) {
		return ErrInvalidTransition{From: r.state.Phase, To: to}
	}
	r.state.Phase = to
	return nil
}

// Release returns the device to idle from any phase.
func (t *Tracker) Release(address string) {
	r := t.entry(address)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Phase = PhaseIdle
}
