package location

import "time"

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fix represents a single position reported by a provider.
type Fix struct {
	Coordinate
	Accuracy  float64   `json:"accuracy"`  // Provider specific accuracy (meters, or HDOP for sensors)
	Timestamp time.Time `json:"timestamp"` // Set by the Source when the fix arrives
}
