package geocode

import (
	"context"
	"fmt"

	"github.com/benmeehan/location-reporter/pkg/location"
	"googlemaps.github.io/maps"
)

// GoogleResolver uses the Google Geocoding API for reverse geocoding.
type GoogleResolver struct {
	client   *maps.Client
	language string
}

// NewGoogleResolver creates a resolver. Extra client options (e.g. maps.WithBaseURL) are appended after the API key.
func NewGoogleResolver(apiKey, language string, opts ...maps.ClientOption) (*GoogleResolver, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleResolver{client: c, language: language}, nil
}

// Resolve reverse geocodes the coordinate. ZERO_RESULTS yields an empty slice.
func (g *GoogleResolver) Resolve(ctx context.Context, coordinate location.Coordinate) ([]AddressCandidate, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: coordinate.Latitude, Lng: coordinate.Longitude},
		Language: g.language,
	})
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}

	candidates := make([]AddressCandidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, toCandidate(r))
	}
	return candidates, nil
}

func toCandidate(r maps.GeocodingResult) AddressCandidate {
	c := AddressCandidate{FormattedLine: r.FormattedAddress}
	for _, component := range r.AddressComponents {
		for _, t := range component.Types {
			switch t {
			case "postal_code":
				c.PostalCode = component.LongName
			case "locality":
				c.Locality = component.LongName
			case "administrative_area_level_1":
				c.AdminArea = component.LongName
			case "country":
				c.CountryName = component.LongName
			}
		}
	}
	return c
}
