package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/location-reporter/internal/logger"
	"github.com/benmeehan/location-reporter/internal/observability"
	"github.com/benmeehan/location-reporter/internal/service_registry"
	"github.com/benmeehan/location-reporter/internal/utils"
	"github.com/benmeehan/location-reporter/pkg/file"
	"github.com/benmeehan/location-reporter/pkg/identity"
	"github.com/benmeehan/location-reporter/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}

// run wires and runs the agent until SIGINT or SIGTERM. Failures are logged before they are
// returned so that deferred cleanup still flushes the log file and disconnects MQTT.
func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("agent", flag.ContinueOnError)
	configPath := flags.String("config", "configs/config.yaml", "path to the YAML configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Bootstrap logger until the configured one is available
	log := zerolog.New(stdout).With().Timestamp().Logger()

	// A missing .env file is fine; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Error().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
		return fmt.Errorf("load configuration: %w", err)
	}

	appLog, logCloser, err := logger.New(config.Logging)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize logger")
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logCloser.Close()
	log = appLog

	// Initialize DeviceInfo
	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		log.Error().Err(err).Msg("Failed to load device information")
		return fmt.Errorf("load device information: %w", err)
	}
	log.Info().Str("device_id", deviceInfo.GetDeviceID()).Msg("Device identity loaded")

	// Initialize the shared MQTT connection
	var mqttClient mqtt.MQTTClient
	if config.MQTT.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		mqttService := mqtt.NewMqttService(fileClient, log)
		err = mqttService.Initialize(mqtt.Options{
			Broker:        config.MQTT.Broker,
			ClientID:      clientID,
			CACertificate: config.MQTT.CACertificate,
			Username:      config.MQTT.Username,
			Password:      config.MQTT.Password,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize MQTT connection")
			return fmt.Errorf("initialize mqtt: %w", err)
		}
		defer mqttService.Disconnect(250)
		mqttClient = mqttService
	}

	metrics := observability.NewMetrics()

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, fileClient, metrics, prometheus.DefaultGatherer, log)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config, deviceInfo); err != nil {
		log.Error().Err(err).Msg("Failed to register services")
		return fmt.Errorf("register services: %w", err)
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		log.Error().Err(err).Msg("Failed to start services")
		return fmt.Errorf("start services: %w", err)
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stopCh)
	sig := <-stopCh

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
		return err
	}
	return nil
}
