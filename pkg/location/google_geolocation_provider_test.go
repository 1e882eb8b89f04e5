package location_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benmeehan/location-reporter/pkg/location"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGoogleGeolocationProvider_GetLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/geolocation/v1/geolocate", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location":{"lat":12.34,"lng":56.78},"accuracy":42}`))
	}))
	defer srv.Close()

	p, err := location.NewGoogleGeolocationProvider("test-key", 0, 5*time.Second, zerolog.Nop(), maps.WithBaseURL(srv.URL))
	require.NoError(t, err)
	defer p.Close()

	fix, err := p.GetLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, location.Coordinate{Latitude: 12.34, Longitude: 56.78}, fix.Coordinate)
	assert.Equal(t, 42.0, fix.Accuracy)
}

func TestGoogleGeolocationProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	p, err := location.NewGoogleGeolocationProvider("test-key", 0, 5*time.Second, zerolog.Nop(), maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.GetLocation(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geolocate")
}
