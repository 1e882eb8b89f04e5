package constants

import "time"

// LocationTypeUser is the only location type this agent reports.
const LocationTypeUser = "user"

const (
	// DefaultUpdateInterval is the polling interval of the location source.
	DefaultUpdateInterval = 5 * time.Second
	// DefaultReadTimeout bounds a single provider read.
	DefaultReadTimeout = 10 * time.Second
	// DefaultResolveTimeout bounds a reverse geocoding call.
	DefaultResolveTimeout = 10 * time.Second
	// DefaultSubmitTimeout bounds a report upload.
	DefaultSubmitTimeout = 30 * time.Second
	// DefaultReportWorkers is the number of concurrent resolve/submit pipelines.
	DefaultReportWorkers = 4
)

// Location provider names accepted in configuration.
const (
	ProviderSensor = "sensor"
	ProviderGoogle = "google"
)

// Control actions accepted over MQTT and HTTP.
const (
	ActionStartUpdates = "start"
	ActionStopUpdates  = "stop"
	ActionReport       = "report"
)

// Outcome statuses published to observers.
const (
	OutcomeStatusSuccess = "success"
	OutcomeStatusFailure = "failure"
)
