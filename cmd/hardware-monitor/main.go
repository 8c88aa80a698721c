package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/taubenschiesser/hardware-monitor/internal/backend"
	"github.com/taubenschiesser/hardware-monitor/internal/capture"
	"github.com/taubenschiesser/hardware-monitor/internal/coordinator"
	"github.com/taubenschiesser/hardware-monitor/internal/detection"
	"github.com/taubenschiesser/hardware-monitor/internal/messaging"
	"github.com/taubenschiesser/hardware-monitor/internal/metrics_collectors"
	"github.com/taubenschiesser/hardware-monitor/internal/recorder"
	"github.com/taubenschiesser/hardware-monitor/internal/service_registry"
	"github.com/taubenschiesser/hardware-monitor/internal/state"
	"github.com/taubenschiesser/hardware-monitor/internal/targeting"
	"github.com/taubenschiesser/hardware-monitor/internal/utils"
	"github.com/taubenschiesser/hardware-monitor/internal/vision"
	"github.com/taubenschiesser/hardware-monitor/pkg/file"
	"github.com/taubenschiesser/hardware-monitor/pkg/s3"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "hardware-monitor",
		Short:         "Drives taubenschiesser devices, detects birds and engages them",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the configuration file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "hardware-monitor").Logger()
}

func run(ctx context.Context, configPath string) error {
	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file and environment
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(config.Logging.Level, config.Logging.Pretty)

	clock := clockwork.NewRealClock()
	backendClient := backend.NewClient(config.API.URL, config.API.ServiceToken, config.API.Timeout, logger)
	tracker := state.NewTracker(clock, logger)

	pool := messaging.NewPool(backendClient, tracker.HandleMessage, messaging.Options{
		ClientIDPrefix:    config.MQTT.ClientIDPrefix,
		QOS:               byte(config.MQTT.QOS),
		ConnectTimeout:    config.MQTT.ConnectTimeout,
		PublishTimeout:    config.MQTT.PublishTimeout,
		DisconnectQuiesce: config.MQTT.DisconnectQuiesce,
	}, logger)
	defer pool.Close()

	acquirer := capture.NewAcquirer(capture.FFmpegGrabber{Path: config.Capture.FFmpegPath}, fileClient,
		config.Capture.LocalImageRoot, config.Capture.Timeout, logger)

	// Frames are inlined in detection records unless object storage is usable
	var archive recorder.Archive
	if config.Storage.Enabled {
		storage := s3.NewObjectStorage(config.Storage.Region)
		if err := storage.Connect(ctx, config.Storage.Endpoint, config.Storage.AccessKey, config.Storage.SecretKey, config.Storage.UseSSL); err != nil {
			logger.Warn().Err(err).Str("endpoint", config.Storage.Endpoint).Msg("Object storage unavailable, inlining detection frames")
		} else {
			archive = storage
			logger.Info().Str("endpoint", config.Storage.Endpoint).Str("bucket", config.Storage.Bucket).Msg("Archiving detection frames")
		}
	}

	engine := targeting.NewEngine(pool, tracker, clock, targeting.Config{
		HorizontalFOV:  config.Targeting.HorizontalFOV,
		VerticalFOV:    config.Targeting.VerticalFOV,
		CompletionPoll: config.Movement.CompletionPoll,
		AimTimeout:     config.Targeting.AimTimeout,
		AimSettle:      config.Targeting.AimSettle,
		PostShootPause: config.Targeting.PostShootPause,
	}, logger)

	movementCoordinator := coordinator.NewCoordinator(coordinator.Dependencies{
		Tracker:   tracker,
		Commander: pool,
		Capturer:  acquirer,
		Zoomer:    vision.NewZoomer(logger),
		Detector:  detection.NewClient(config.Detection.URL, config.Detection.Timeout, logger),
		Recorder:  recorder.NewRecorder(backendClient, archive, config.Storage.Bucket, clock, logger),
		Targeter:  engine,
	}, clock, coordinator.Config{
		CompletionPoll:  config.Movement.CompletionPoll,
		MovementTimeout: config.Movement.Timeout,
		SettleDelay:     config.Movement.SettleDelay,
	}, logger)

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(logger)
	if err := serviceRegistry.RegisterServices(config, service_registry.Dependencies{
		Backend:     backendClient,
		Credentials: pool,
		Tracker:     tracker,
		Runner:      movementCoordinator,
		Capturer:    acquirer,
		HostMetrics: metrics_collectors.NewHostMetricsRegistry(config.Capture.FFmpegPath, logger),
		Clock:       clock,
	}); err != nil {
		return fmt.Errorf("failed to register services: %w", err)
	}

	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	logger.Info().Strs("services", serviceRegistry.Names()).Msg("All services started successfully")

	return awaitShutdown(ctx, serviceRegistry, logger)
}

type stopper interface {
	StopServices() error
}

// awaitShutdown blocks until ctx is cancelled and then stops the services.
func awaitShutdown(ctx context.Context, services stopper, logger zerolog.Logger) error {
	<-ctx.Done()
	logger.Info().Msg("Shutting down gracefully...")
	return services.StopServices()
}
