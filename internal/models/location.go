package models

import (
	"time"

	"github.com/benmeehan/location-reporter/pkg/location"
)

// LocationMessage is the published form of a fix.
type LocationMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
}

// NewLocationMessage builds a LocationMessage for the given device.
func NewLocationMessage(deviceID string, fix location.Fix) LocationMessage {
	return LocationMessage{
		DeviceID:  deviceID,
		Timestamp: fix.Timestamp,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
	}
}
