package constants

import "time"

// Control loop
const (
	DefaultStartupDelay     = 5 * time.Second
	DefaultPollInterval     = 10 * time.Second
	DefaultRateLimitBackoff = 60 * time.Second
	DefaultErrorBackoff     = 30 * time.Second
	DefaultWorkers          = 4
)

// Eligibility
const (
	DefaultStuckSessionAge  = 30 * time.Second
	DefaultInactivitySeen   = 20 * time.Second
	DefaultInactivityUnseen = 30 * time.Second
)

// Movement cycle
const (
	DefaultCompletionPoll  = 500 * time.Millisecond
	DefaultMovementTimeout = 30 * time.Second
	DefaultSettleDelay     = 2 * time.Second
	DefaultAimTimeout      = 10 * time.Second
	DefaultAimSettle       = 500 * time.Millisecond
	DefaultPostShootPause  = 1500 * time.Millisecond
	DefaultCaptureTimeout  = 15 * time.Second
	DefaultHTTPTimeout     = 30 * time.Second
)

// Auxiliary loops
const (
	DefaultStatusInterval     = 30 * time.Second
	DefaultStatusErrorBackoff = 60 * time.Second
	DefaultStreamInterval     = 10 * time.Second
	DefaultStreamErrorBackoff = 30 * time.Second
	DefaultTelemetryFreshness = 60 * time.Second
	DefaultHealthInterval     = 5 * time.Minute
	DefaultHealthErrorBackoff = 60 * time.Second
)

// Messaging
const (
	DefaultBrokerHost        = "localhost"
	DefaultBrokerPort        = 1883
	DefaultQOS               = 1
	DefaultConnectTimeout    = 10 * time.Second
	DefaultPublishTimeout    = 5 * time.Second
	DefaultDisconnectQuiesce = 250
)
