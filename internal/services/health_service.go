package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// HostMetrics samples the load of the machine the monitor runs on.
type HostMetrics interface {
	Collect(ctx context.Context) map[string]any
}

// HealthService periodically checks that the backend answers authenticated
// requests and logs the host load alongside.
type HealthService struct {
	*periodicLoop

	Devices DeviceSource
	Metrics HostMetrics // optional
	Logger  zerolog.Logger
}

// NewHealthService initializes a HealthService. metrics may be nil.
func NewHealthService(devices DeviceSource, metrics HostMetrics, interval, errorBackoff time.Duration,
	clock clockwork.Clock, logger zerolog.Logger) *HealthService {

	s := &HealthService{
		Devices: devices,
		Metrics: metrics,
		Logger:  logger.With().Str("component", "health_service").Logger(),
	}
	s.periodicLoop = &periodicLoop{
		name:   "health",
		clock:  clock,
		pass:   s.check,
		next:   fixedBackoff(interval, errorBackoff),
		logger: s.Logger,
	}
	return s
}

func (s *HealthService) check(ctx context.Context) error {
	if s.Metrics != nil {
		s.Logger.Info().Fields(s.Metrics.Collect(ctx)).Msg("Host metrics")
	}

	devices, err := s.Devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	s.Logger.Info().Int("devices", len(devices)).Msg("Health check: API is reachable")
	return nil
}
