package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/location-reporter/internal/constants"
	"github.com/benmeehan/location-reporter/internal/httpserver"
	"github.com/benmeehan/location-reporter/internal/observability"
	"github.com/benmeehan/location-reporter/internal/registry"
	"github.com/benmeehan/location-reporter/internal/services"
	"github.com/benmeehan/location-reporter/internal/utils"
	"github.com/benmeehan/location-reporter/pkg/file"
	"github.com/benmeehan/location-reporter/pkg/geocode"
	"github.com/benmeehan/location-reporter/pkg/identity"
	"github.com/benmeehan/location-reporter/pkg/location"
	"github.com/benmeehan/location-reporter/pkg/mqtt"
	"github.com/benmeehan/location-reporter/pkg/reporting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Service names, in start order. The coordinator starts last so that presentation
// services are subscribed before the first BeginUpdates.
const (
	ControlService     = "control"
	HTTPService        = "http"
	CoordinatorService = "coordinator"
)

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	fileClient  file.FileOperations
	metrics     *observability.Metrics
	gatherer    prometheus.Gatherer
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
// mqttClient may be nil when MQTT is disabled.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, fileClient file.FileOperations, metrics *observability.Metrics,
	gatherer prometheus.Gatherer, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]registry.Service),
		mqttClient: mqttClient,
		fileClient: fileClient,
		metrics:    metrics,
		gatherer:   gatherer,
		Logger:     logger,
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

// Service returns a registered service by name.
func (sr *ServiceRegistry) Service(name string) (registry.Service, bool) {
	svc, ok := sr.services[name]
	return svc, ok
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

			// Stop already started services before returning
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

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deviceInfo identity.DeviceInfoInterface) error {
	coordinator, err := sr.newCoordinator(config)
	if err != nil {
		sr.Logger.Error().Err(err).Msg("Failed to create report coordinator")
		return err
	}

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    ControlService,
			enabled: config.Control.Enabled,
			constructor: func() (registry.Service, error) {
				if sr.mqttClient == nil {
					return nil, errors.New("control service requires an MQTT client")
				}
				return services.NewControlService(
					config.Control.Topic,
					config.Control.QOS,
					deviceInfo,
					sr.mqttClient,
					coordinator,
					sr.Logger,
				), nil
			},
		},
		{
			name:    HTTPService,
			enabled: config.HTTP.Enabled,
			constructor: func() (registry.Service, error) {
				return httpserver.NewServer(
					config.HTTP.Addr,
					config.HTTP.ShutdownTimeout,
					coordinator,
					deviceInfo,
					sr.gatherer,
					sr.Logger,
				), nil
			},
		},
		{
			name:    CoordinatorService,
			enabled: true,
			constructor: func() (registry.Service, error) {
				return coordinator, nil
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
				_ = coordinator.Stop()
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

func (sr *ServiceRegistry) newCoordinator(config *utils.Config) (*services.ReportCoordinator, error) {
	provider, permission, err := sr.newLocationProvider(config)
	if err != nil {
		return nil, err
	}
	source := location.NewSource(provider, config.Location.Interval, config.Location.ReadTimeout, nil, sr.Logger)

	var resolver geocode.Resolver
	resolver, err = geocode.NewGoogleResolver(config.Geocoding.MapsAPIKey, config.Geocoding.Language)
	if err != nil {
		return nil, fmt.Errorf("create geocoding resolver: %w", err)
	}
	if config.Geocoding.CacheSize > 0 {
		resolver = geocode.NewCachedResolver(resolver, config.Geocoding.CacheSize, config.Geocoding.CachePrecision, sr.metrics)
	}

	client, err := reporting.NewClient(reporting.Config{
		BaseURL:     config.Reporting.BaseURL,
		Path:        config.Reporting.Path,
		BearerToken: config.Reporting.BearerToken,
		DeviceToken: config.Reporting.DeviceToken,
		DeviceType:  config.Reporting.DeviceType,
		IsTestData:  config.Reporting.IsTestData,
		Timeout:     config.Reporting.Timeout,
	}, sr.Logger)
	if err != nil {
		return nil, fmt.Errorf("create reporting client: %w", err)
	}

	return services.NewReportCoordinator(source, permission, resolver, client, services.CoordinatorConfig{
		ResolveTimeout:   config.Geocoding.Timeout,
		SubmitTimeout:    config.Reporting.Timeout,
		LastKnownTimeout: config.Location.ReadTimeout,
		Workers:          config.Reporting.Workers,
	}, sr.metrics, nil, sr.Logger), nil
}

func (sr *ServiceRegistry) newLocationProvider(config *utils.Config) (location.Provider, location.PermissionChecker, error) {
	switch config.Location.Provider {
	case constants.ProviderGoogle:
		provider, err := location.NewGoogleGeolocationProvider(config.Location.MapsAPIKey, config.Location.ModemIndex,
			config.Location.ReadTimeout, sr.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create google geolocation provider: %w", err)
		}
		return provider, location.NewAPIKeyPermission(config.Location.MapsAPIKey), nil
	case constants.ProviderSensor:
		provider := location.NewDeviceSensorProvider(config.Location.GPSDevicePort, config.Location.GPSDeviceBaudRate,
			config.Location.ReadTimeout)
		return provider, location.NewDevicePermission(config.Location.GPSDevicePort, sr.fileClient), nil
	default:
		return nil, nil, fmt.Errorf("unknown location provider %q", config.Location.Provider)
	}
}
