package targeting

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/internal/models"
	"github.com/taubenschiesser/hardware-monitor/internal/utils"
	"github.com/taubenschiesser/hardware-monitor/pkg/mqtt"
)

// Commander publishes device commands through per-tenant clients.
type Commander interface {
	Get(ctx context.Context, tenant string) mqtt.MQTTClient
	Publish(tenant string, client mqtt.MQTTClient, address string, cmd models.Command) error
}

// Movements tracks movement sessions opened by published moves.
type Movements interface {
	MarkMoving(address string)
	AwaitIdle(ctx context.Context, address string, poll, timeout time.Duration) bool
	ClearSession(address string)
}

// Config holds the optics and the timings of the aim sequence.
type Config struct {
	HorizontalFOV  float64
	VerticalFOV    float64
	CompletionPoll time.Duration
	AimTimeout     time.Duration
	AimSettle      time.Duration
	PostShootPause time.Duration
}

// Shot is what one detection cycle knows about the frame the target was
// found in.
type Shot struct {
	Waypoint  *models.Waypoint // nil outside route mode
	FrameSize models.Size      // size of the frame detection ran on
	Zoom      float64          // zoom applied to that frame
}

// Engine aims at detected targets, fires and returns to the waypoint.
type Engine struct {
	commander Commander
	movements Movements
	clock     clockwork.Clock
	config    Config
	logger    zerolog.Logger
}

// NewEngine creates a targeting engine. Zero config values take defaults.
func NewEngine(commander Commander, movements Movements, clock clockwork.Clock, config Config, logger zerolog.Logger) *Engine {
	if config.HorizontalFOV <= 0 {
		config.HorizontalFOV = constants.BaseHorizontalFOV
	}
	if config.VerticalFOV <= 0 {
		config.VerticalFOV = constants.BaseVerticalFOV
	}
	if config.CompletionPoll <= 0 {
		config.CompletionPoll = constants.DefaultCompletionPoll
	}
	if config.AimTimeout <= 0 {
		config.AimTimeout = constants.DefaultAimTimeout
	}
	return &Engine{
		commander: commander,
		movements: movements,
		clock:     clock,
		config:    config,
		logger:    logger.With().Str("component", "targeting").Logger(),
	}
}

// AimShootReturn engages target. In route mode with a known box it corrects
// onto the target, fires a short burst and moves back to the waypoint;
// otherwise it fires a plain shot in place. A publish error ends the sequence.
func (e *Engine) AimShootReturn(ctx context.Context, device models.Device, target *models.Detection, shot Shot) error {
	address := device.Address()
	tenant := device.Tenant()

	client := e.commander.Get(ctx, tenant)
	if client == nil {
		e.logger.Warn().Str("device", address).Str("tenant", tenant).Msg("No MQTT client, skipping shot")
		return nil
	}

	if target == nil || target.BBox == nil || shot.Waypoint == nil || shot.FrameSize.Width <= 0 || shot.FrameSize.Height <= 0 {
		return e.commander.Publish(tenant, client, address, models.ShootCommand(constants.PlainShotDurationMs))
	}

	deltaRot, deltaTilt := Correct(*target.BBox, shot.FrameSize.Width, shot.FrameSize.Height,
		shot.Zoom, e.config.HorizontalFOV, e.config.VerticalFOV)
	wp := *shot.Waypoint
	aimRot := int(wp.Rotation + deltaRot)
	aimTilt := int(wp.Tilt + deltaTilt)

	e.logger.Info().
		Str("device", address).
		Float64("confidence", target.Confidence).
		Float64("delta_rot", deltaRot).
		Float64("delta_tilt", deltaTilt).
		Int("rot", aimRot).
		Int("tilt", aimTilt).
		Msg("Aiming at target")

	if err := e.move(ctx, tenant, client, address, aimRot, aimTilt); err != nil {
		return err
	}
	if !utils.Sleep(ctx, e.clock, e.config.AimSettle) {
		return ctx.Err()
	}

	if err := e.commander.Publish(tenant, client, address, models.ShootCommand(constants.AimedShotDurationMs)); err != nil {
		return err
	}
	if !utils.Sleep(ctx, e.clock, e.config.PostShootPause) {
		return ctx.Err()
	}

	e.logger.Debug().Str("device", address).Msg("Returning to waypoint")
	return e.move(ctx, tenant, client, address, int(math.Round(wp.Rotation)), int(math.Round(wp.Tilt)))
}

// move publishes a slow absolute move and waits for the device to report
// completion, clearing the session if it never does.
func (e *Engine) move(ctx context.Context, tenant string, client mqtt.MQTTClient, address string, rot, tilt int) error {
	if err := e.commander.Publish(tenant, client, address, models.MoveCommand(rot, tilt, constants.AimSpeed)); err != nil {
		return err
	}
	e.movements.MarkMoving(address)

	if !e.movements.AwaitIdle(ctx, address, e.config.CompletionPoll, e.config.AimTimeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.logger.Warn().Str("device", address).Dur("timeout", e.config.AimTimeout).Msg("Aim move did not complete, continuing")
		e.movements.ClearSession(address)
	}
	return nil
}
