package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/benmeehan/location-reporter/internal/constants"
	"github.com/benmeehan/location-reporter/internal/logger"
	"github.com/benmeehan/location-reporter/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Connect to the MQTT broker for remote control
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
		Username      string `yaml:"username"`       // Optional broker username
		Password      string `yaml:"password"`       // Optional broker password
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Logging logger.Config `yaml:"logging"`

	Location struct {
		Provider          string        `yaml:"provider"`        // "sensor" or "google"
		Interval          time.Duration `yaml:"interval"`        // Interval between location updates
		ReadTimeout       time.Duration `yaml:"read_timeout"`    // Timeout of a single provider read
		GPSDevicePort     string        `yaml:"gps_device_port"` // UNIX Port where the GPS sensor is mounted
		GPSDeviceBaudRate int           `yaml:"gps_baud_rate"`   // The Baud rate for GPS sensor
		MapsAPIKey        string        `yaml:"maps_api_key"`    // Google maps API Key for network geolocation
		ModemIndex        int           `yaml:"modem_index"`     // ModemManager modem used for cell tower hints
	} `yaml:"location"`

	Geocoding struct {
		MapsAPIKey     string        `yaml:"maps_api_key"`    // Defaults to location.maps_api_key
		Language       string        `yaml:"language"`        // Preferred language of addresses
		Timeout        time.Duration `yaml:"timeout"`         // Timeout of a reverse geocoding call
		CacheSize      int           `yaml:"cache_size"`      // 0 disables the cache
		CachePrecision int           `yaml:"cache_precision"` // Decimal places kept in cache keys
	} `yaml:"geocoding"`

	Reporting struct {
		BaseURL     string        `yaml:"base_url"`     // Upload endpoint base URL
		Path        string        `yaml:"path"`         // Upload endpoint path
		BearerToken string        `yaml:"bearer_token"` // Static authorization token
		DeviceToken string        `yaml:"device_token"` // Static device_token header
		DeviceType  string        `yaml:"device_type"`  // Static device_type header
		IsTestData  string        `yaml:"is_testdata"`  // Static is_testdata header
		Timeout     time.Duration `yaml:"timeout"`      // Timeout of a single upload
		Workers     int           `yaml:"workers"`      // Concurrent resolve/submit pipelines
	} `yaml:"reporting"`

	Control struct {
		Enabled bool   `yaml:"enabled"` // Enable/disable the MQTT control service
		Topic   string `yaml:"topic"`   // Base topic for commands and events
		QOS     int    `yaml:"qos"`     // MQTT QoS level for control messages
	} `yaml:"control"`

	HTTP struct {
		Enabled         bool          `yaml:"enabled"`          // Enable/disable the local HTTP server
		Addr            string        `yaml:"addr"`             // Listen address
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown deadline
	} `yaml:"http"`
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadConfig loads the YAML configuration from the specified file, applies environment
// overrides and defaults, and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	config.ApplyEnvOverrides(os.LookupEnv)
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyEnvOverrides replaces endpoint and header settings with environment values when set.
func (c *Config) ApplyEnvOverrides(lookup LookupFunc) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"REPORT_BASE_URL", &c.Reporting.BaseURL},
		{"REPORT_BEARER_TOKEN", &c.Reporting.BearerToken},
		{"REPORT_DEVICE_TOKEN", &c.Reporting.DeviceToken},
		{"REPORT_DEVICE_TYPE", &c.Reporting.DeviceType},
		{"REPORT_IS_TESTDATA", &c.Reporting.IsTestData},
		{"MAPS_API_KEY", &c.Location.MapsAPIKey},
		{"MAPS_API_KEY", &c.Geocoding.MapsAPIKey},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.target = v
		}
	}
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "location-reporter"
	}
	if c.Identity.DeviceFile == "" {
		c.Identity.DeviceFile = "configs/device.json"
	}

	if c.Location.Provider == "" {
		c.Location.Provider = constants.ProviderSensor
	}
	if c.Location.Interval <= 0 {
		c.Location.Interval = constants.DefaultUpdateInterval
	}
	if c.Location.ReadTimeout <= 0 {
		c.Location.ReadTimeout = constants.DefaultReadTimeout
	}
	if c.Location.GPSDevicePort == "" {
		c.Location.GPSDevicePort = "/dev/ttyUSB0"
	}
	if c.Location.GPSDeviceBaudRate == 0 {
		c.Location.GPSDeviceBaudRate = 9600
	}

	if c.Geocoding.MapsAPIKey == "" {
		c.Geocoding.MapsAPIKey = c.Location.MapsAPIKey
	}
	if c.Geocoding.Timeout <= 0 {
		c.Geocoding.Timeout = constants.DefaultResolveTimeout
	}
	if c.Geocoding.CachePrecision == 0 {
		c.Geocoding.CachePrecision = 5
	}

	if c.Reporting.Timeout <= 0 {
		c.Reporting.Timeout = constants.DefaultSubmitTimeout
	}
	if c.Reporting.Workers <= 0 {
		c.Reporting.Workers = constants.DefaultReportWorkers
	}

	if c.Control.Topic == "" {
		c.Control.Topic = "devices/location"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 5 * time.Second
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Location.Provider {
	case constants.ProviderSensor, constants.ProviderGoogle:
	default:
		errs = append(errs, fmt.Errorf("location.provider must be %q or %q, got %q",
			constants.ProviderSensor, constants.ProviderGoogle, c.Location.Provider))
	}
	if c.Geocoding.MapsAPIKey == "" {
		errs = append(errs, errors.New("geocoding.maps_api_key is required"))
	}
	if c.Reporting.BaseURL == "" {
		errs = append(errs, errors.New("reporting.base_url is required"))
	}
	if c.Control.QOS < 0 || c.Control.QOS > 2 {
		errs = append(errs, fmt.Errorf("control.qos must be 0, 1 or 2, got %d", c.Control.QOS))
	}
	if c.Control.Enabled && (!c.MQTT.Enabled || c.MQTT.Broker == "") {
		errs = append(errs, errors.New("control service requires mqtt.enabled and mqtt.broker"))
	}

	return errors.Join(errs...)
}
