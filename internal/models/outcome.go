package models

import (
	"time"

	"github.com/benmeehan/location-reporter/internal/constants"
	"github.com/benmeehan/location-reporter/pkg/reporting"
)

// ReportOutcome is the terminal result of one upload: either a success payload or a failure cause.
// Use NewSuccessOutcome or NewFailureOutcome to build one.
type ReportOutcome struct {
	RequestID   string
	Request     reporting.ReportRequest
	CompletedAt time.Time

	payload *reporting.ResponseSuccess
	err     error
}

// NewSuccessOutcome creates a successful outcome.
func NewSuccessOutcome(requestID string, req reporting.ReportRequest, payload reporting.ResponseSuccess, at time.Time) ReportOutcome {
	return ReportOutcome{RequestID: requestID, Request: req, CompletedAt: at, payload: &payload}
}

// NewFailureOutcome creates a failed outcome. A nil cause is not allowed.
func NewFailureOutcome(requestID string, req reporting.ReportRequest, cause error, at time.Time) ReportOutcome {
	if cause == nil {
		panic("models: failure outcome without cause")
	}
	return ReportOutcome{RequestID: requestID, Request: req, CompletedAt: at, err: cause}
}

// Succeeded reports whether the upload succeeded.
func (o ReportOutcome) Succeeded() bool {
	return o.err == nil
}

// Payload returns the response of a successful upload.
func (o ReportOutcome) Payload() (reporting.ResponseSuccess, bool) {
	if o.payload == nil {
		return reporting.ResponseSuccess{}, false
	}
	return *o.payload, true
}

// Err returns the failure cause, nil on success.
func (o ReportOutcome) Err() error {
	return o.err
}

// OutcomeMessage is the published form of a ReportOutcome.
type OutcomeMessage struct {
	DeviceID    string                     `json:"device_id"`
	RequestID   string                     `json:"request_id"`
	Status      string                     `json:"status"`
	Address     string                     `json:"address"`
	Latitude    string                     `json:"latitude"`
	Longitude   string                     `json:"longitude"`
	Response    *reporting.ResponseSuccess `json:"response,omitempty"`
	Error       string                     `json:"error,omitempty"`
	CompletedAt time.Time                  `json:"completed_at"`
}

// NewOutcomeMessage converts an outcome for publishing.
func NewOutcomeMessage(deviceID string, o ReportOutcome) OutcomeMessage {
	msg := OutcomeMessage{
		DeviceID:    deviceID,
		RequestID:   o.RequestID,
		Address:     o.Request.Address,
		Latitude:    o.Request.Latitude,
		Longitude:   o.Request.Longitude,
		CompletedAt: o.CompletedAt,
	}
	if payload, ok := o.Payload(); ok {
		msg.Status = constants.OutcomeStatusSuccess
		msg.Response = &payload
	} else {
		msg.Status = constants.OutcomeStatusFailure
		msg.Error = o.err.Error()
	}
	return msg
}
