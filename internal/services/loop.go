package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/utils"
)

// periodicLoop runs pass repeatedly on its own goroutine, waiting the delay
// chosen by next after every pass. It is embedded by the long-running
// services and provides their Start and Stop.
type periodicLoop struct {
	name         string
	clock        clockwork.Clock
	startupDelay time.Duration
	pass         func(ctx context.Context) error
	next         func(err error) time.Duration
	onStart      func()
	onStop       func()
	logger       zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start launches the loop.
func (l *periodicLoop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil {
		l.logger.Warn().Msgf("%s service is already running", l.name)
		return fmt.Errorf("%s service is already running", l.name)
	}

	if l.onStart != nil {
		l.onStart()
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	ctx := l.ctx

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx)
	}()

	l.logger.Info().Msgf("%s service started successfully", l.name)
	return nil
}

// Stop cancels the loop and waits for the current pass to return.
func (l *periodicLoop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx == nil {
		l.logger.Warn().Msgf("%s service is not running", l.name)
		return fmt.Errorf("%s service is not running", l.name)
	}

	l.cancel()
	l.wg.Wait()
	if l.onStop != nil {
		l.onStop()
	}

	l.ctx = nil
	l.cancel = nil

	l.logger.Info().Msgf("%s service stopped successfully", l.name)
	return nil
}

func (l *periodicLoop) run(ctx context.Context) {
	if !utils.Sleep(ctx, l.clock, l.startupDelay) {
		return
	}
	for {
		err := l.pass(ctx)
		if ctx.Err() != nil {
			l.logger.Info().Msgf("%s service stopping gracefully", l.name)
			return
		}
		delay := l.next(err)
		if err != nil {
			l.logger.Error().Err(err).Dur("retry_in", delay).Msgf("%s pass failed", l.name)
		}
		if !utils.Sleep(ctx, l.clock, delay) {
			l.logger.Info().Msgf("%s service stopping gracefully", l.name)
			return
		}
	}
}

// fixedBackoff returns interval after a successful pass and backoff otherwise.
func fixedBackoff(interval, backoff time.Duration) func(error) time.Duration {
	return func(err error) time.Duration {
		if err != nil {
			return backoff
		}
		return interval
	}
}
