package constants

// Command types understood by the device firmware.
const (
	CommandImpulse = "impulse"
	CommandMove    = "move"
	CommandShoot   = "shoot"
)

const (
	DefaultStepSize = 40 // degrees of rotation per impulse

	// AimSpeed is used for corrective and return moves. Route moves run at 0.
	AimSpeed = 1

	AimedShotDurationMs = 300
	PlainShotDurationMs = 1000
)
