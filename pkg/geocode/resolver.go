package geocode

import (
	"context"
	"errors"

	"github.com/benmeehan/location-reporter/pkg/location"
)

// ErrNoCandidates describes a resolution that succeeded but produced no address.
var ErrNoCandidates = errors.New("no address candidates for coordinate")

// AddressCandidate is a postal address for a coordinate. Only FormattedLine is guaranteed.
type AddressCandidate struct {
	FormattedLine string `json:"formatted_line"`
	PostalCode    string `json:"postal_code,omitempty"`
	Locality      string `json:"locality,omitempty"`
	AdminArea     string `json:"admin_area,omitempty"`
	CountryName   string `json:"country_name,omitempty"`
}

// Resolver turns a coordinate into address candidates, best match first.
// An empty slice with a nil error means the coordinate has no known address.
type Resolver interface {
	Resolve(ctx context.Context, coordinate location.Coordinate) ([]AddressCandidate, error)
}
