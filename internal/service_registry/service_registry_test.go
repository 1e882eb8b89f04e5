package service_registry

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/location-reporter/internal/constants"
	"github.com/benmeehan/location-reporter/internal/mocks"
	"github.com/benmeehan/location-reporter/internal/models"
	"github.com/benmeehan/location-reporter/internal/observability"
	"github.com/benmeehan/location-reporter/internal/utils"
	"github.com/benmeehan/location-reporter/pkg/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (s *recordingService) Start() error {
	*s.events = append(*s.events, "start:"+s.name)
	return s.startErr
}

func (s *recordingService) Stop() error {
	*s.events = append(*s.events, "stop:"+s.name)
	return s.stopErr
}

func newTestRegistry() *ServiceRegistry {
	return NewServiceRegistry(nil, file.NewFileService(), observability.NewMetricsForTesting(), prometheus.NewRegistry(), zerolog.Nop())
}

func TestStartStopOrder(t *testing.T) {
	var events []string
	sr := newTestRegistry()
	sr.RegisterService("a", &recordingService{name: "a", events: &events})
	sr.RegisterService("b", &recordingService{name: "b", events: &events})
	sr.RegisterService("a", &recordingService{name: "dup", events: &events})

	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())

	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, events)
}

func TestStartServicesRollsBack(t *testing.T) {
	var events []string
	sr := newTestRegistry()
	sr.RegisterService("a", &recordingService{name: "a", events: &events})
	sr.RegisterService("b", &recordingService{name: "b", events: &events})
	sr.RegisterService("c", &recordingService{name: "c", startErr: errors.New("boom"), events: &events})

	err := sr.StartServices()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start c")
	assert.Equal(t, []string{"start:a", "start:b", "start:c", "stop:b", "stop:a"}, events)
}

func TestStopServicesJoinsErrors(t *testing.T) {
	var events []string
	errA, errB := errors.New("a failed"), errors.New("b failed")
	sr := newTestRegistry()
	sr.RegisterService("a", &recordingService{name: "a", stopErr: errA, events: &events})
	sr.RegisterService("b", &recordingService{name: "b", stopErr: errB, events: &events})

	err := sr.StopServices()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func testConfig() *utils.Config {
	var cfg utils.Config
	cfg.Location.Provider = constants.ProviderSensor
	cfg.Location.GPSDevicePort = "/dev/null"
	cfg.Geocoding.MapsAPIKey = "test-key"
	cfg.Geocoding.CacheSize = 16
	cfg.Reporting.BaseURL = "http://127.0.0.1:9560"
	cfg.HTTP.Enabled = true
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.ApplyDefaults()
	return &cfg
}

func TestRegisterServices(t *testing.T) {
	deviceInfo := new(mocks.MockDeviceInfo)
	sr := newTestRegistry()

	require.NoError(t, sr.RegisterServices(testConfig(), deviceInfo))

	assert.Equal(t, []string{HTTPService, CoordinatorService}, sr.serviceKeys)
	_, ok := sr.Service(ControlService)
	assert.False(t, ok)

	coordinator, ok := sr.Service(CoordinatorService)
	require.True(t, ok)
	require.NoError(t, coordinator.Stop())
}

func TestRegisterServices_ControlRequiresMQTT(t *testing.T) {
	cfg := testConfig()
	cfg.Control.Enabled = true

	err := newTestRegistry().RegisterServices(cfg, new(mocks.MockDeviceInfo))
	assert.EqualError(t, err, "control service requires an MQTT client")
}

func TestRegisterServices_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Location.Provider = "beacon"

	err := newTestRegistry().RegisterServices(cfg, new(mocks.MockDeviceInfo))
	assert.EqualError(t, err, `unknown location provider "beacon"`)
}

func TestRegisterServices_InvalidReportingURL(t *testing.T) {
	cfg := testConfig()
	cfg.Reporting.BaseURL = "ftp://example.com"

	err := newTestRegistry().RegisterServices(cfg, new(mocks.MockDeviceInfo))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create reporting client")
}

func TestStartServices_PermissionNoticeReachesControl(t *testing.T) {
	cfg := testConfig()
	cfg.Location.GPSDevicePort = filepath.Join(t.TempDir(), "missing-gps")
	cfg.HTTP.Enabled = false
	cfg.MQTT.Enabled = true
	cfg.Control.Enabled = true

	deviceInfo := new(mocks.MockDeviceInfo)
	deviceInfo.On("GetDeviceID").Return("device-1")

	notices := make(chan []byte, 4)
	client := new(mocks.MockMQTTClient)
	client.On("Subscribe", "devices/location/device-1", mock.Anything, mock.Anything).
		Return(mocks.NewCompletedToken(nil))
	client.On("Unsubscribe", mock.Anything).Return(mocks.NewCompletedToken(nil))
	client.On("Publish", "devices/location/device-1/notice", mock.Anything, false, mock.Anything).
		Run(func(args mock.Arguments) {
			notices <- args.Get(3).([]byte)
		}).
		Return(mocks.NewCompletedToken(nil))

	sr := NewServiceRegistry(client, file.NewFileService(), observability.NewMetricsForTesting(), prometheus.NewRegistry(), zerolog.Nop())
	require.NoError(t, sr.RegisterServices(cfg, deviceInfo))
	assert.Equal(t, []string{ControlService, CoordinatorService}, sr.serviceKeys)

	require.NoError(t, sr.StartServices())
	defer func() { assert.NoError(t, sr.StopServices()) }()

	select {
	case payload := <-notices:
		var notice models.Notice
		require.NoError(t, json.Unmarshal(payload, &notice))
		assert.Equal(t, constants.NoticePermissionRequired, notice.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("permission notice was not published")
	}
}
