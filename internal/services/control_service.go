package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/backend"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/coordinator"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/internal/state"
	"github.com/taubenschiesser/hardware-monitor/internal/utils"
)

// DeviceSource lists the device inventory.
type DeviceSource interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// CredentialLoader makes sure a tenant's messaging settings are cached.
type CredentialLoader interface {
	EnsureCredentials(ctx context.Context, tenant string) error
}

// CycleRunner runs one movement cycle for a claimed device.
type CycleRunner interface {
	RunCycle(ctx context.Context, device models.Device)
}

// ControlSettings tune the control loop.
type ControlSettings struct {
	StartupDelay     time.Duration
	Interval         time.Duration
	RateLimitBackoff time.Duration
	ErrorBackoff     time.Duration
	Workers          int
	Thresholds       coordinator.Thresholds
}

// ControlService polls the inventory and hands every eligible device to the
// movement coordinator.
type ControlService struct {
	*periodicLoop

	Devices     DeviceSource
	Credentials CredentialLoader
	Tracker     *state.Tracker
	Runner      CycleRunner
	Settings    ControlSettings
	Clock       clockwork.Clock
	Logger      zerolog.Logger

	workers *utils.WorkerPool
}

// NewControlService initializes a ControlService.
func NewControlService(devices DeviceSource, credentials CredentialLoader, tracker *state.Tracker, runner CycleRunner,
	settings ControlSettings, clock clockwork.Clock, logger zerolog.Logger) *ControlService {

	s := &ControlService{
		Devices:     devices,
		Credentials: credentials,
		Tracker:     tracker,
		Runner:      runner,
		Settings:    settings,
		Clock:       clock,
		Logger:      logger.With().Str("component", "control_service").Logger(),
	}
	s.periodicLoop = &periodicLoop{
		name:         "control",
		clock:        clock,
		startupDelay: settings.StartupDelay,
		pass:         s.poll,
		next:         s.nextDelay,
		onStart:      s.launch,
		onStop:       s.drain,
		logger:       s.Logger,
	}
	return s
}

// launch creates the worker pool for a fresh run of the loop.
func (s *ControlService) launch() {
	s.workers = utils.NewWorkerPool(s.Settings.Workers, func(recovered any) {
		s.Logger.Error().Interface("panic", recovered).Msg("Movement cycle panicked")
	})
}

// drain waits for in-flight cycles once the loop has stopped.
func (s *ControlService) drain() {
	if s.workers != nil {
		s.workers.Shutdown()
		s.workers = nil
	}
}

// nextDelay picks the wait before the next poll.
func (s *ControlService) nextDelay(err error) time.Duration {
	switch {
	case err == nil:
		return s.Settings.Interval
	case errors.Is(err, backend.ErrRateLimited):
		return s.Settings.RateLimitBackoff
	default:
		return s.Settings.ErrorBackoff
	}
}

// poll fetches the inventory once and dispatches every running device.
func (s *ControlService) poll(ctx context.Context) error {
	devices, err := s.Devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch devices: %w", err)
	}

	running := 0
	for _, device := range devices {
		if device.MonitorStatus != constants.MonitorRunning {
			s.Logger.Debug().Str("device_id", device.Identifier()).Str("monitor_status", device.MonitorStatus).Msg("Skipping device")
			continue
		}
		running++
		s.dispatch(ctx, device)
	}
	s.Logger.Debug().Int("devices", len(devices)).Int("running", running).Msg("Inventory polled")
	return nil
}

// dispatch evaluates one device and queues a cycle if it is eligible.
func (s *ControlService) dispatch(ctx context.Context, device models.Device) {
	address := device.Address()
	logger := s.Logger.With().Str("device", address).Str("device_id", device.Identifier()).Logger()
	if address == "" {
		logger.Warn().Msg("Device has no IP, skipping")
		return
	}

	if tenant := device.Tenant(); tenant != "" {
		if err := s.Credentials.EnsureCredentials(ctx, tenant); err != nil {
			logger.Error().Err(err).Str("tenant", tenant).Msg("Failed to load MQTT settings")
			return
		}
	}

	decision := coordinator.Evaluate(s.Tracker.Snapshot(address), device, s.Clock.Now(), s.Settings.Thresholds)
	if decision.ClearStuck {
		logger.Warn().Dur("stuck_after", s.Settings.Thresholds.StuckAfter).Msg("Movement timed out, clearing session")
		s.Tracker.ClearSession(address)
	}
	if !decision.Eligible {
		logger.Debug().Str("reason", decision.Reason).Dur("idle", decision.Idle).Msg("Device not eligible")
		return
	}
	if !s.Tracker.TryClaim(address) {
		logger.Debug().Msg("Cycle already in progress")
		return
	}

	logger.Info().Str("reason", decision.Reason).Dur("idle", decision.Idle).Msg("Dispatching movement cycle")
	if err := s.workers.Submit(ctx, func() { s.Runner.RunCycle(ctx, device) }); err != nil {
		s.Tracker.Release(address)
		logger.Warn().Err(err).Msg("Movement cycle not queued")
	}
}
