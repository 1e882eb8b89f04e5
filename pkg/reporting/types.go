package reporting

import (
	"encoding/json"
	"strconv"
)

// Form field names of the upload endpoint.
const (
	FieldLocation     = "location"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldLocationType = "location_type"
)

// ReportRequest is the payload of a single upload.
type ReportRequest struct {
	Address      string `json:"address"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	LocationType string `json:"location_type"`
}

// ResponseSuccess is the body returned by the endpoint on success.
type ResponseSuccess struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// FormatCoordinate renders a coordinate component with the shortest exact decimal representation.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
