package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/internal/state"
	"golang.org/x/sync/errgroup"
)

// statusConcurrency bounds parallel status posts within one pass.
const statusConcurrency = 4

// StatusReporter posts device liveness.
type StatusReporter interface {
	SendDeviceStatus(ctx context.Context, deviceID string, report models.DeviceStatusReport) error
}

// StatusService reports every device with fresh telemetry as online.
type StatusService struct {
	*periodicLoop

	Devices   DeviceSource
	Reporter  StatusReporter
	Tracker   *state.Tracker
	Freshness time.Duration
	Clock     clockwork.Clock
	Logger    zerolog.Logger
}

// NewStatusService initializes a StatusService.
func NewStatusService(devices DeviceSource, reporter StatusReporter, tracker *state.Tracker,
	interval, errorBackoff, freshness time.Duration, clock clockwork.Clock, logger zerolog.Logger) *StatusService {

	s := &StatusService{
		Devices:   devices,
		Reporter:  reporter,
		Tracker:   tracker,
		Freshness: freshness,
		Clock:     clock,
		Logger:    logger.With().Str("component", "status_service").Logger(),
	}
	s.periodicLoop = &periodicLoop{
		name:   "status",
		clock:  clock,
		pass:   s.report,
		next:   fixedBackoff(interval, errorBackoff),
		logger: s.Logger,
	}
	return s
}

func (s *StatusService) report(ctx context.Context) error {
	devices, err := s.Devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch devices: %w", err)
	}

	now := s.Clock.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)
	reported := 0
	for _, device := range devices {
		address := device.Address()
		if address == "" {
			continue
		}
		snapshot := s.Tracker.Snapshot(address)
		if !snapshot.Seen() || now.Sub(snapshot.LastSeen) > s.Freshness {
			continue
		}

		deviceID := device.Identifier()
		report := models.DeviceStatusReport{Status: constants.StatusOnline, LastSeen: snapshot.LastSeen.UTC()}
		reported++
		g.Go(func() error {
			if err := s.Reporter.SendDeviceStatus(gctx, deviceID, report); err != nil {
				s.Logger.Error().Err(err).Str("device_id", deviceID).Msg("Failed to update device status")
				return nil
			}
			s.Logger.Debug().Str("device_id", deviceID).Msg("Status updated")
			return nil
		})
	}
	_ = g.Wait()
	s.Logger.Debug().Int("devices", len(devices)).Int("reported", reported).Msg("Status pass finished")
	return nil
}
