package mocks

import (
	"context"

	"github.com/benmeehan/location-reporter/pkg/reporting"
	"github.com/stretchr/testify/mock"
)

// MockReportingClient is a mock implementation of services.ReportingClient.
type MockReportingClient struct {
	mock.Mock
}

func (m *MockReportingClient) Submit(ctx context.Context, req reporting.ReportRequest) (reporting.ResponseSuccess, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(reporting.ResponseSuccess), args.Error(1)
}
