package service_registry

import (
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/taubenschiesser/hardware-monitor/internal/coordinator"
	"github.com/taubenschiesser/hardware-monitor/internal/registry"
	"github.com/taubenschiesser/hardware-monitor/internal/services"
	"github.com/taubenschiesser/hardware-monitor/internal/state"
	"github.com/taubenschiesser/hardware-monitor/internal/utils"
)

// Backend is the part of the inventory API the services use.
type Backend interface {
	services.DeviceSource
	services.StatusReporter
	services.FrameSink
}

// Dependencies are shared by the long-running services.
type Dependencies struct {
	Backend     Backend
	Credentials services.CredentialLoader
	Tracker     *state.Tracker
	Runner      services.CycleRunner
	Capturer    services.Capturer
	HostMetrics services.HostMetrics // optional
	Clock       clockwork.Clock
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes an empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]registry.Service),
		Logger:   logger.With().Str("component", "service_registry").Logger(),
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered service names in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices creates and registers the enabled services.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    "control",
			enabled: config.Services.Control.Enabled,
			constructor: func() (registry.Service, error) {
				if deps.Runner == nil || deps.Credentials == nil {
					return nil, errors.New("control service needs a cycle runner and a credential loader")
				}
				return services.NewControlService(
					deps.Backend,
					deps.Credentials,
					deps.Tracker,
					deps.Runner,
					services.ControlSettings{
						StartupDelay:     config.Services.Control.StartupDelay,
						Interval:         config.Services.Control.Interval,
						RateLimitBackoff: config.Services.Control.RateLimitBackoff,
						ErrorBackoff:     config.Services.Control.ErrorBackoff,
						Workers:          config.Services.Control.Workers,
						Thresholds: coordinator.Thresholds{
							StuckAfter:       config.Movement.StuckAfter,
							InactivitySeen:   config.Movement.InactivitySeen,
							InactivityUnseen: config.Movement.InactivityUnseen,
						},
					},
					deps.Clock,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "stream",
			enabled: config.Services.Stream.Enabled,
			constructor: func() (registry.Service, error) {
				if deps.Capturer == nil {
					return nil, errors.New("stream service needs a frame capturer")
				}
				return services.NewStreamService(
					deps.Backend,
					deps.Capturer,
					deps.Backend,
					config.Services.Stream.Interval,
					config.Services.Stream.ErrorBackoff,
					deps.Clock,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "status",
			enabled: config.Services.Status.Enabled,
			constructor: func() (registry.Service, error) {
				return services.NewStatusService(
					deps.Backend,
					deps.Backend,
					deps.Tracker,
					config.Services.Status.Interval,
					config.Services.Status.ErrorBackoff,
					config.Services.Status.Freshness,
					deps.Clock,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "health",
			enabled: config.Services.Health.Enabled,
			constructor: func() (registry.Service, error) {
				return services.NewHealthService(
					deps.Backend,
					deps.HostMetrics,
					config.Services.Health.Interval,
					config.Services.Health.ErrorBackoff,
					deps.Clock,
					sr.Logger,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
