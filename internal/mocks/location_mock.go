package mocks

import (
	"context"
	"sync"

	"github.com/benmeehan/location-reporter/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockLocationSource is a mock implementation of services.LocationSource.
// The observer passed to StartUpdates is captured so tests can push fixes; it is not
// recorded as a call argument.
type MockLocationSource struct {
	mock.Mock

	mu       sync.Mutex
	observer location.Observer
}

func (m *MockLocationSource) StartUpdates(observer location.Observer) error {
	args := m.Called()
	if args.Error(0) == nil {
		m.mu.Lock()
		m.observer = observer
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockLocationSource) StopUpdates() {
	m.Called()
	m.mu.Lock()
	m.observer = nil
	m.mu.Unlock()
}

func (m *MockLocationSource) LastKnownFix(ctx context.Context) (location.Fix, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(location.Fix), args.Bool(1), args.Error(2)
}

// Observer returns the observer registered by the last successful StartUpdates.
func (m *MockLocationSource) Observer() location.Observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observer
}

// MockPermissionChecker is a mock implementation of location.PermissionChecker.
type MockPermissionChecker struct {
	mock.Mock
}

func (m *MockPermissionChecker) CheckPermission() error {
	args := m.Called()
	return args.Error(0)
}
