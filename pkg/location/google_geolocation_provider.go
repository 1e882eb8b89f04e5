package location

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider uses the Google Maps API to get location data.
type GoogleGeolocationProvider struct {
	client     *maps.Client // Maps API client for making geolocation requests
	modemIndex int          // ModemManager index used for cell tower hints
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, timeout time.Duration, logger zerolog.Logger,
	opts ...maps.ClientOption) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
// WiFi and cell tower hints are optional; without them the API falls back to the public IP.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &maps.GeolocationRequest{ConsiderIP: true}

	if wifiAPs, err := getWiFiAccessPoints(ctx); err != nil {
		g.logger.Debug().Err(err).Msg("WiFi access points unavailable for geolocation")
	} else {
		req.WiFiAccessPoints = wifiAPs
	}

	if cellTowers, err := getCellTowers(ctx, g.modemIndex); err != nil {
		g.logger.Debug().Err(err).Msg("Cell towers unavailable for geolocation")
	} else {
		req.CellTowers = cellTowers
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Fix{}, fmt.Errorf("geolocate: %w", err)
	}

	return Fix{
		Coordinate: Coordinate{Latitude: resp.Location.Lat, Longitude: resp.Location.Lng},
		Accuracy:   resp.Accuracy,
	}, nil
}

// Close is a no-op; the HTTP client holds no exclusive resources.
func (g *GoogleGeolocationProvider) Close() error {
	return nil
}
