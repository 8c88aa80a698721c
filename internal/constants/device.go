package constants

// Device operating modes
const (
	ModeStep  = "step"
	ModeRoute = "route"
	// ModeImpulse is the legacy name of ModeStep still stored by older devices.
	ModeImpulse = "impulse"
)

// Device status values reported by the inventory backend
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	MonitorRunning = "running"
)

// Camera descriptor values
const (
	CameraTapo   = "tapo"
	CameraDirect = "direct"

	StreamHighQuality = "stream1"
	StreamLowQuality  = "stream2"

	TapoRTSPPort = 554
)

// BirdClass is the detection label the targeting pipeline reacts to.
const BirdClass = "bird"

const (
	DefaultZoom       = 1.0
	MaxZoom           = 3.0
	BaseHorizontalFOV = 60.0 // degrees at zoom 1
	BaseVerticalFOV   = 34.0 // degrees at zoom 1
)
