package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/taubenschiesser/hardware-monitor/internal/constants"
	"github.com/taubenschiesser/hardware-monitor/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	API struct {
		URL          string        `yaml:"url"`           // Base URL of the inventory backend
		ServiceToken string        `yaml:"service_token"` // Bearer token for authenticated endpoints
		Timeout      time.Duration `yaml:"timeout"`       // Per-request timeout
	} `yaml:"api"`

	Detection struct {
		URL     string        `yaml:"url"`     // Base URL of the detection service
		Timeout time.Duration `yaml:"timeout"` // Per-request timeout
	} `yaml:"detection"`

	MQTT struct {
		ClientIDPrefix    string        `yaml:"client_id_prefix"`   // Prefix of per-tenant client ids
		QOS               int           `yaml:"qos"`                // QoS for commands and telemetry
		ConnectTimeout    time.Duration `yaml:"connect_timeout"`    // Bound on the initial connect
		PublishTimeout    time.Duration `yaml:"publish_timeout"`    // Bound on a single publish
		DisconnectQuiesce uint          `yaml:"disconnect_quiesce"` // Milliseconds to drain on disconnect
	} `yaml:"mqtt"`

	Capture struct {
		FFmpegPath     string        `yaml:"ffmpeg_path"`      // ffmpeg binary used for stream grabs
		Timeout        time.Duration `yaml:"timeout"`          // Bound on one capture
		LocalImageRoot string        `yaml:"local_image_root"` // Base for relative local image paths
	} `yaml:"capture"`

	Movement struct {
		CompletionPoll   time.Duration `yaml:"completion_poll"`   // Telemetry poll interval while moving
		Timeout          time.Duration `yaml:"timeout"`           // Max wait for moving=false
		SettleDelay      time.Duration `yaml:"settle_delay"`      // Pause before capture
		StuckAfter       time.Duration `yaml:"stuck_after"`       // Session age that counts as stuck
		InactivitySeen   time.Duration `yaml:"inactivity_seen"`   // Idle time before the next move
		InactivityUnseen time.Duration `yaml:"inactivity_unseen"` // Idle time for devices with no last-seen
	} `yaml:"movement"`

	Targeting struct {
		HorizontalFOV  float64       `yaml:"horizontal_fov"`   // Degrees at zoom 1
		VerticalFOV    float64       `yaml:"vertical_fov"`     // Degrees at zoom 1
		AimTimeout     time.Duration `yaml:"aim_timeout"`      // Max wait for each aim move
		AimSettle      time.Duration `yaml:"aim_settle"`       // Pause between aim and shot
		PostShootPause time.Duration `yaml:"post_shoot_pause"` // Pause between shot and return
	} `yaml:"targeting"`

	Services struct {
		Control struct {
			Enabled          bool          `yaml:"enabled"`            // Enable/disable the control loop
			StartupDelay     time.Duration `yaml:"startup_delay"`      // Delay before the first poll
			Interval         time.Duration `yaml:"interval"`           // Steady poll interval
			RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"` // Delay after a 429
			ErrorBackoff     time.Duration `yaml:"error_backoff"`      // Delay after any other failure
			Workers          int           `yaml:"workers"`            // Concurrent device cycles
		} `yaml:"control"`

		Stream struct {
			Enabled      bool          `yaml:"enabled"`       // Enable/disable camera stream forwarding
			Interval     time.Duration `yaml:"interval"`      // Steady interval
			ErrorBackoff time.Duration `yaml:"error_backoff"` // Delay after a failed pass
		} `yaml:"stream"`

		Status struct {
			Enabled      bool          `yaml:"enabled"`       // Enable/disable status reporting
			Interval     time.Duration `yaml:"interval"`      // Steady interval
			ErrorBackoff time.Duration `yaml:"error_backoff"` // Delay after a failed pass
			Freshness    time.Duration `yaml:"freshness"`     // Telemetry age still reported as online
		} `yaml:"status"`

		Health struct {
			Enabled      bool          `yaml:"enabled"`       // Enable/disable backend reachability checks
			Interval     time.Duration `yaml:"interval"`      // Steady interval
			ErrorBackoff time.Duration `yaml:"error_backoff"` // Delay after a failed check
		} `yaml:"health"`
	} `yaml:"services"`

	Storage struct {
		Enabled   bool   `yaml:"enabled"`    // Archive detection frames in object storage
		Endpoint  string `yaml:"endpoint"`   // host:port of the S3 endpoint
		AccessKey string `yaml:"access_key"` // Access key id
		SecretKey string `yaml:"secret_key"` // Secret access key
		Bucket    string `yaml:"bucket"`     // Bucket for frames
		Region    string `yaml:"region"`     // Region used when creating the bucket
		UseSSL    bool   `yaml:"use_ssl"`    // Use TLS to reach the endpoint
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`  // zerolog level name
		Pretty bool   `yaml:"pretty"` // Human readable console output
	} `yaml:"logging"`
}

// LoadConfig loads the YAML configuration from the specified file, overlays
// values from the environment (and a .env file when present), and fills
// defaults.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	config.ApplyEnv(os.Getenv)
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyEnv overrides deployment specific values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}

	setString("API_URL", &c.API.URL)
	setString("SERVICE_TOKEN", &c.API.ServiceToken)
	setString("CV_SERVICE_URL", &c.Detection.URL)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("FFMPEG_PATH", &c.Capture.FFmpegPath)
	setString("LOCAL_IMAGE_ROOT", &c.Capture.LocalImageRoot)
	setString("MINIO_ENDPOINT", &c.Storage.Endpoint)
	setString("MINIO_ACCESS_KEY", &c.Storage.AccessKey)
	setString("MINIO_SECRET_KEY", &c.Storage.SecretKey)
	setString("MINIO_BUCKET", &c.Storage.Bucket)
	setBool("MINIO_USE_SSL", &c.Storage.UseSSL)
	setBool("STORAGE_ENABLED", &c.Storage.Enabled)
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	setDuration := func(dst *time.Duration, def time.Duration) {
		if *dst <= 0 {
			*dst = def
		}
	}
	setFloat := func(dst *float64, def float64) {
		if *dst <= 0 {
			*dst = def
		}
	}
	setString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	c.API.URL = strings.TrimRight(c.API.URL, "/")
	c.Detection.URL = strings.TrimRight(c.Detection.URL, "/")
	setDuration(&c.API.Timeout, constants.DefaultHTTPTimeout)
	setDuration(&c.Detection.Timeout, constants.DefaultHTTPTimeout)

	setString(&c.MQTT.ClientIDPrefix, "hardware-monitor")
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		c.MQTT.QOS = constants.DefaultQOS
	}
	setDuration(&c.MQTT.ConnectTimeout, constants.DefaultConnectTimeout)
	setDuration(&c.MQTT.PublishTimeout, constants.DefaultPublishTimeout)
	if c.MQTT.DisconnectQuiesce == 0 {
		c.MQTT.DisconnectQuiesce = constants.DefaultDisconnectQuiesce
	}

	setString(&c.Capture.FFmpegPath, "ffmpeg")
	setDuration(&c.Capture.Timeout, constants.DefaultCaptureTimeout)

	setDuration(&c.Movement.CompletionPoll, constants.DefaultCompletionPoll)
	setDuration(&c.Movement.Timeout, constants.DefaultMovementTimeout)
	setDuration(&c.Movement.SettleDelay, constants.DefaultSettleDelay)
	setDuration(&c.Movement.StuckAfter, constants.DefaultStuckSessionAge)
	setDuration(&c.Movement.InactivitySeen, constants.DefaultInactivitySeen)
	setDuration(&c.Movement.InactivityUnseen, constants.DefaultInactivityUnseen)

	setFloat(&c.Targeting.HorizontalFOV, constants.BaseHorizontalFOV)
	setFloat(&c.Targeting.VerticalFOV, constants.BaseVerticalFOV)
	setDuration(&c.Targeting.AimTimeout, constants.DefaultAimTimeout)
	setDuration(&c.Targeting.AimSettle, constants.DefaultAimSettle)
	setDuration(&c.Targeting.PostShootPause, constants.DefaultPostShootPause)

	control := &c.Services.Control
	setDuration(&control.StartupDelay, constants.DefaultStartupDelay)
	setDuration(&control.Interval, constants.DefaultPollInterval)
	setDuration(&control.RateLimitBackoff, constants.DefaultRateLimitBackoff)
	setDuration(&control.ErrorBackoff, constants.DefaultErrorBackoff)
	if control.Workers <= 0 {
		control.Workers = constants.DefaultWorkers
	}

	setDuration(&c.Services.Stream.Interval, constants.DefaultStreamInterval)
	setDuration(&c.Services.Stream.ErrorBackoff, constants.DefaultStreamErrorBackoff)

	setDuration(&c.Services.Status.Interval, constants.DefaultStatusInterval)
	setDuration(&c.Services.Status.ErrorBackoff, constants.DefaultStatusErrorBackoff)
	setDuration(&c.Services.Status.Freshness, constants.DefaultTelemetryFreshness)

	setDuration(&c.Services.Health.Interval, constants.DefaultHealthInterval)
	setDuration(&c.Services.Health.ErrorBackoff, constants.DefaultHealthErrorBackoff)

	setString(&c.Storage.Bucket, "taubenschiesser-detections")
	setString(&c.Storage.Region, "us-east-1")

	setString(&c.Logging.Level, "info")
}

// Validate reports configuration that makes the monitor unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.API.URL == "" {
		errs = append(errs, errors.New("api.url is required"))
	}
	if c.Services.Control.Enabled && c.Detection.URL == "" {
		errs = append(errs, errors.New("detection.url is required when the control service is enabled"))
	}
	if c.Storage.Enabled && c.Storage.Endpoint == "" {
		errs = append(errs, errors.New("storage.endpoint is required when storage is enabled"))
	}
	return errors.Join(errs...)
}
