package mocks

import (
	"context"

	"github.com/benmeehan/location-reporter/pkg/geocode"
	"github.com/benmeehan/location-reporter/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockResolver is a mock implementation of geocode.Resolver.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, coord location.Coordinate) ([]geocode.AddressCandidate, error) {
	args := m.Called(ctx, coord)
	candidates, _ := args.Get(0).([]geocode.AddressCandidate)
	return candidates, args.Error(1)
}
