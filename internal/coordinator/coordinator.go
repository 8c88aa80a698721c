package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/capture"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/detection"
	"github.com/taubenschiesser/hardware-monitor/internal/frame"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/internal/recorder"
	"github.com/taubenschiesser/hardware-monitor/internal/state"
	"github.com/taubenschiesser/hardware-monitor/internal/targeting"
	"github.com/taubenschiesser/hardware-monitor/internal/utils"
	"github.com/taubenschiesser/hardware-monitor/internal/vision"
)

// Capturer grabs one frame from a camera source.
type Capturer interface {
	Capture(ctx context.Context, src capture.Source) (*frame.Frame, error)
}

// Detector runs bird detection on an encoded frame.
type Detector interface {
	Detect(ctx context.Context, jpeg []byte) (*models.DetectionResult, error)
}

// Recorder persists positive detections.
type Recorder interface {
	Record(ctx context.Context, device models.Device, a recorder.Analysis) error
}

// Targeter engages a selected target.
type Targeter interface {
	AimShootReturn(ctx context.Context, device models.Device, target *models.Detection, shot targeting.Shot) error
}

// Dependencies are the collaborators of a Coordinator.
type Dependencies struct {
	Tracker   *state.Tracker
	Commander targeting.Commander
	Capturer  Capturer
	Zoomer    *vision.Zoomer
	Detector  Detector
	Recorder  Recorder
	Targeter  Targeter
}

// Config holds the movement cycle timings.
type Config struct {
	CompletionPoll  time.Duration
	MovementTimeout time.Duration
	SettleDelay     time.Duration
}

// Coordinator runs movement cycles: command, wait for completion, settle,
// capture, detect and engage.
type Coordinator struct {
	deps   Dependencies
	clock  clockwork.Clock
	config Config
	logger zerolog.Logger
}

// NewCoordinator creates a Coordinator. Zero config values take defaults.
func NewCoordinator(deps Dependencies, clock clockwork.Clock, config Config, logger zerolog.Logger) *Coordinator {
	if config.CompletionPoll <= 0 {
		config.CompletionPoll = constants.DefaultCompletionPoll
	}
	if config.MovementTimeout <= 0 {
		config.MovementTimeout = constants.DefaultMovementTimeout
	}
	return &Coordinator{
		deps:   deps,
		clock:  clock,
		config: config,
		logger: logger.With().Str("component", "movement_coordinator").Logger(),
	}
}

// RunCycle runs one full cycle for a device that was already claimed with
// Tracker.TryClaim. The device is always back in the idle phase on return.
func (c *Coordinator) RunCycle(ctx context.Context, device models.Device) {
	address := device.Address()
	tenant := device.Tenant()
	tracker := c.deps.Tracker
	defer tracker.Release(address)

	logger := c.logger.With().Str("device", address).Str("device_id", device.Identifier()).Logger()

	if !c.enter(logger, address, state.PhaseCommanding) {
		return
	}
	client := c.deps.Commander.Get(ctx, tenant)
	if client == nil {
		logger.Warn().Str("tenant", tenant).Msg("No MQTT client for tenant, skipping movement")
		return
	}

	strategy := StrategyFor(device)
	routeLen := len(device.Actions.Route.Coordinates)
	routeIndex := 0
	if _, ok := strategy.(RouteStrategy); ok {
		routeIndex = tracker.RouteIndex(address, routeLen)
	}
	cmd, waypoint := strategy.NextMovement(device, routeIndex)

	if err := c.deps.Commander.Publish(tenant, client, address, cmd); err != nil {
		logger.Error().Err(err).Msg("Movement command failed")
		return
	}
	logger.Info().Str("strategy", strategy.Name()).Int("route_index", routeIndex).Msg("Movement started")

	if !c.enter(logger, address, state.PhaseMoving) {
		return
	}
	tracker.MarkMoving(address)
	started := c.clock.Now()
	if !tracker.AwaitIdle(ctx, address, c.config.CompletionPoll, c.config.MovementTimeout) {
		if ctx.Err() != nil {
			return
		}
		logger.Warn().Dur("timeout", c.config.MovementTimeout).Msg("Movement did not complete, continuing with analysis")
		tracker.ClearSession(address)
	} else {
		logger.Debug().Dur("took", c.clock.Since(started)).Msg("Movement completed")
	}

	if !c.enter(logger, address, state.PhaseStabilizing) {
		return
	}
	if !utils.Sleep(ctx, c.clock, c.config.SettleDelay) {
		return
	}

	c.analyze(ctx, logger, device, routeIndex, waypoint)

	if _, ok := strategy.(RouteStrategy); ok {
		next := tracker.AdvanceRoute(address, routeLen)
		logger.Debug().Int("route_index", next).Msg("Advanced route")
	}
}

// enter moves the device into phase, logging illegal transitions.
func (c *Coordinator) enter(logger zerolog.Logger, address string, phase state.Phase) bool {
	if err := c.deps.Tracker.Transition(address, phase); err != nil {
		logger.Error().Err(err).Msg("Aborting cycle")
		return false
	}
	return true
}

// analyze captures a frame at the current position, looks for birds and
// engages the best target. Failures end the analysis but not the cycle.
func (c *Coordinator) analyze(ctx context.Context, logger zerolog.Logger, device models.Device, routeIndex int, waypoint *models.Waypoint) {
	address := device.Address()

	src, err := capture.ResolveSource(device.Camera)
	if err != nil {
		if errors.Is(err, capture.ErrNoCameraSource) {
			logger.Info().Err(err).Msg("No camera configured, skipping analysis")
		} else {
			logger.Warn().Err(err).Msg("Camera source unusable, skipping analysis")
		}
		return
	}

	if !c.enter(logger, address, state.PhaseCapturing) {
		return
	}
	original, err := c.deps.Capturer.Capture(ctx, src)
	if err != nil {
		logger.Error().Err(err).Str("source", src.String()).Msg("Frame capture failed")
		return
	}
	zoomed, zoom := c.deps.Zoomer.Apply(original, device, src, routeIndex)

	if !c.enter(logger, address, state.PhaseDetecting) {
		return
	}
	data, err := zoomed.JPEG()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode frame")
		return
	}
	result, err := c.deps.Detector.Detect(ctx, data)
	if err != nil {
		logger.Error().Err(err).Msg("Detection failed")
		return
	}
	if !result.BirdsFound {
		logger.Info().Msg("No birds detected")
		return
	}

	target := detection.SelectTarget(result.Detections)
	logger.Info().Int("bird_count", result.BirdCount).Float64("confidence", result.ConfidenceLevel).Msg("Birds detected")

	if err := c.deps.Recorder.Record(ctx, device, recorder.Analysis{
		Original: original,
		Zoomed:   zoomed,
		Zoom:     zoom,
		Result:   result,
		Target:   target,
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to record detection")
	}

	if !c.enter(logger, address, state.PhaseTargeting) {
		return
	}
	shot := targeting.Shot{Waypoint: waypoint, FrameSize: zoomed.Size(), Zoom: zoom}
	if err := c.deps.Targeter.AimShootReturn(ctx, device, target, shot); err != nil {
		logger.Error().Err(err).Msg("Targeting sequence aborted")
	}
}
