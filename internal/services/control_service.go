package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/location-reporter/internal/constants"
	"github.com/benmeehan/location-reporter/internal/models"
	"github.com/benmeehan/location-reporter/pkg/identity"
	"github.com/benmeehan/location-reporter/pkg/location"
	"github.com/benmeehan/location-reporter/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	eventQueueSize = 64
	publishTimeout = 10 * time.Second
)

// ReportController is the part of ReportCoordinator driven by presentation layers.
type ReportController interface {
	BeginUpdates() error
	EndUpdates()
	ReportCurrentLocation() bool
	Subscribe(observer Observer) (unsubscribe func())
}

type controlEvent struct {
	topic   string
	payload any
}

// ControlService accepts commands over MQTT and publishes coordinator events back.
// Commands arrive on <topic>/<device_id>; fixes, outcomes and notices are published to
// the fix, outcome and notice subtopics.
type ControlService struct {
	Topic       string
	QOS         int
	DeviceInfo  identity.DeviceInfoInterface
	MqttClient  mqtt.MQTTClient
	Coordinator ReportController
	Logger      zerolog.Logger

	events      chan controlEvent
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewControlService creates a new ControlService.
func NewControlService(topic string, qos int, deviceInfo identity.DeviceInfoInterface, mqttClient mqtt.MQTTClient,
	coordinator ReportController, logger zerolog.Logger) *ControlService {
	return &ControlService{
		Topic:       topic,
		QOS:         qos,
		DeviceInfo:  deviceInfo,
		MqttClient:  mqttClient,
		Coordinator: coordinator,
		Logger:      logger,
	}
}

func (s *ControlService) commandTopic() string {
	return fmt.Sprintf("%s/%s", s.Topic, s.DeviceInfo.GetDeviceID())
}

func (s *ControlService) eventTopic(kind string) string {
	return s.commandTopic() + "/" + kind
}

// Start subscribes to the command topic and begins forwarding coordinator events.
func (s *ControlService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("ControlService is already running")
		return errors.New("control service is already running")
	}

	topic := s.commandTopic()
	token := s.MqttClient.Subscribe(topic, byte(s.QOS), s.handleCommand)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to command topic")
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.events = make(chan controlEvent, eventQueueSize)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.publishLoop()
	}()
	s.unsubscribe = s.Coordinator.Subscribe(s)

	s.Logger.Info().Str("topic", topic).Int("qos", s.QOS).Msg("ControlService started successfully")
	return nil
}

// Stop unsubscribes from the command topic and coordinator events.
func (s *ControlService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("ControlService is not running")
		return errors.New("control service is not running")
	}

	s.unsubscribe()
	topic := s.commandTopic()
	if token := s.MqttClient.Unsubscribe(topic); token.WaitTimeout(publishTimeout) && token.Error() != nil {
		s.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to unsubscribe from command topic")
	}

	s.cancel()
	s.wg.Wait()
	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("ControlService stopped successfully")
	return nil
}

// OnFix publishes the fix.
func (s *ControlService) OnFix(fix location.Fix) {
	s.enqueue("fix", models.NewLocationMessage(s.DeviceInfo.GetDeviceID(), fix))
}

// OnOutcome publishes the report outcome.
func (s *ControlService) OnOutcome(outcome models.ReportOutcome) {
	s.enqueue("outcome", models.NewOutcomeMessage(s.DeviceInfo.GetDeviceID(), outcome))
}

// OnNotice publishes the notice.
func (s *ControlService) OnNotice(notice models.Notice) {
	s.enqueue("notice", notice)
}

// enqueue never blocks; events are dropped while the publisher is behind.
func (s *ControlService) enqueue(kind string, payload any) {
	select {
	case s.events <- controlEvent{topic: s.eventTopic(kind), payload: payload}:
	default:
		s.Logger.Warn().Str("event", kind).Msg("Control event queue full, dropping event")
	}
}

func (s *ControlService) publishLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case e := <-s.events:
			s.publish(e)
		}
	}
}

func (s *ControlService) publish(e controlEvent) {
	payload, err := json.Marshal(e.payload)
	if err != nil {
		s.Logger.Error().Err(err).Str("topic", e.topic).Msg("Failed to serialize control event")
		return
	}

	token := s.MqttClient.Publish(e.topic, byte(s.QOS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		s.Logger.Error().Str("topic", e.topic).Msg("Timed out publishing control event")
		return
	}
	if err := token.Error(); err != nil {
		s.Logger.Error().Err(err).Str("topic", e.topic).Msg("Failed to publish control event")
		return
	}
	s.Logger.Debug().Str("topic", e.topic).Msg("Control event published")
}

func (s *ControlService) handleCommand(_ MQTT.Client, msg MQTT.Message) {
	cmd, err := models.ParseCommand(msg.Payload())
	if err != nil {
		s.Logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Invalid control command")
		return
	}

	s.Logger.Info().Str("action", cmd.Action).Msg("Control command received")
	switch cmd.Action {
	case constants.ActionStartUpdates:
		err := s.Coordinator.BeginUpdates()
		switch {
		case errors.Is(err, location.ErrPermissionDenied):
			s.Logger.Warn().Err(err).Msg("Location updates need permission")
		case err != nil:
			s.Logger.Error().Err(err).Msg("Failed to begin location updates")
		}
	case constants.ActionStopUpdates:
		s.Coordinator.EndUpdates()
	case constants.ActionReport:
		if !s.Coordinator.ReportCurrentLocation() {
			s.Logger.Info().Msg("Report requested before any location fix")
		}
	}
}
