package constants

const (
	TopicRoot = "taubenschiesser"

	// CommandTopicFormat is filled with the device network address.
	CommandTopicFormat = TopicRoot + "/%s"

	DeviceTelemetryTopic = TopicRoot + "/+/info"
	FleetTelemetryTopic  = TopicRoot + "/info"
	TelemetrySuffix      = "info"
)
