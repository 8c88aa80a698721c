package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStopper struct {
	mock.Mock
}

func (m *mockStopper) StopServices() error { return m.Called().Error(0) }

func TestAwaitShutdown_StopsAfterCancel(t *testing.T) {
	// Setup
	services := new(mockStopper)
	services.On("StopServices").Return(errors.New("failed to stop control: boom"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- awaitShutdown(ctx, services, zerolog.Nop()) }()

	// Execute
	assert.Never(t, func() bool { return len(done) > 0 }, 20*time.Millisecond, time.Millisecond)
	services.AssertNotCalled(t, "StopServices")
	cancel()

	// Assert
	select {
	case err := <-done:
		assert.EqualError(t, err, "failed to stop control: boom")
	case <-time.After(time.Second):
		t.Fatal("awaitShutdown did not return after cancel")
	}
	services.AssertNumberOfCalls(t, "StopServices", 1)
}

func TestNewLogger_FallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, newLogger("verbose", false).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, newLogger("debug", true).GetLevel())
}
