package models

import (
	"time"

	"github.com/benmeehan/location-reporter/internal/constants"
)

// Notice is a transient message for the presentation layer.
type Notice struct {
	Kind      constants.NoticeKind `json:"kind"`
	Message   string               `json:"message"`
	Timestamp time.Time            `json:"timestamp"`
}
