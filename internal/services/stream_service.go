package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/capture"
	"github.com/taubenschiesser/hardware-monitor/internal/frame"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
)

// Capturer grabs one frame from a camera source.
type Capturer interface {
	Capture(ctx context.Context, src capture.Source) (*frame.Frame, error)
}

// FrameSink accepts snapshots for backend side analysis.
type FrameSink interface {
	SubmitStreamFrame(ctx context.Context, deviceID string, jpeg []byte) error
}

// StreamService snapshots every device with a live camera stream and forwards
// the frame to the backend.
type StreamService struct {
	*periodicLoop

	Devices  DeviceSource
	Capturer Capturer
	Sink     FrameSink
	Logger   zerolog.Logger
}

// NewStreamService initializes a StreamService.
func NewStreamService(devices DeviceSource, capturer Capturer, sink FrameSink, interval, errorBackoff time.Duration,
	clock clockwork.Clock, logger zerolog.Logger) *StreamService {

	s := &StreamService{
		Devices:  devices,
		Capturer: capturer,
		Sink:     sink,
		Logger:   logger.With().Str("component", "stream_service").Logger(),
	}
	s.periodicLoop = &periodicLoop{
		name:   "stream",
		clock:  clock,
		pass:   s.processStreams,
		next:   fixedBackoff(interval, errorBackoff),
		logger: s.Logger,
	}
	return s
}

func (s *StreamService) processStreams(ctx context.Context) error {
	devices, err := s.Devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch devices: %w", err)
	}

	for _, device := range devices {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		src, err := capture.ResolveSource(device.Camera)
		if err != nil || src.IsFile() {
			continue
		}
		if err := s.forward(ctx, device, src); err != nil {
			s.Logger.Error().Err(err).Str("device_id", device.Identifier()).Msg("Camera stream processing failed")
		}
	}
	return nil
}

func (s *StreamService) forward(ctx context.Context, device models.Device, src capture.Source) error {
	f, err := s.Capturer.Capture(ctx, src)
	if err != nil {
		return err
	}
	data, err := f.JPEG()
	if err != nil {
		return err
	}
	if err := s.Sink.SubmitStreamFrame(ctx, device.Identifier(), data); err != nil {
		return fmt.Errorf("failed to submit frame: %w", err)
	}
	s.Logger.Debug().Str("device_id", device.Identifier()).Str("source", src.String()).Msg("Stream frame submitted")
	return nil
}
