package models

import "github.com/taubenschiesser/hardware-monitor/internal/constants"

// Command is published to a device's command topic.
type Command struct {
	Type     string         `json:"type"`               // impulse, move or shoot
	Position *CommandVector `json:"position,omitempty"` // target (move) or delta (impulse)
	Speed    *int           `json:"speed,omitempty"`    // 0 is the device default, 1 is slow
	Bounce   *bool          `json:"bounce,omitempty"`   // impulse only
	Duration *int           `json:"duration,omitempty"` // shoot duration in milliseconds
}

// CommandVector carries integer degrees, as the firmware expects.
type CommandVector struct {
	Rot  int `json:"rot"`
	Tilt int `json:"tilt"`
}

// ImpulseCommand nudges the device by a relative amount at default speed.
func ImpulseCommand(rot, tilt int) Command {
	speed, bounce := 0, false
	return Command{
		Type:     constants.CommandImpulse,
		Position: &CommandVector{Rot: rot, Tilt: tilt},
		Speed:    &speed,
		Bounce:   &bounce,
	}
}

// MoveCommand drives the device to an absolute position.
func MoveCommand(rot, tilt, speed int) Command {
	return Command{
		Type:     constants.CommandMove,
		Position: &CommandVector{Rot: rot, Tilt: tilt},
		Speed:    &speed,
	}
}

// ShootCommand fires for durationMs milliseconds.
func ShootCommand(durationMs int) Command {
	return Command{Type: constants.CommandShoot, Duration: &durationMs}
}
