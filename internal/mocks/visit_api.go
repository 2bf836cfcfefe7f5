package mocks

import (
	"context"

	"github.com/Harvey-AU/page-pulse/internal/client"
	"github.com/stretchr/testify/mock"
)

// MockVisitAPI is a mock implementation of the relay.VisitAPI interface
type MockVisitAPI struct {
	mock.Mock
}

// SaveVisit mocks persisting one page observation
func (m *MockVisitAPI) SaveVisit(ctx context.Context, metrics *client.Metrics) (*client.Visit, error) {
	args := m.Called(ctx, metrics)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Visit), args.Error(1)
}

// GetHistory mocks fetching a page of visit history
func (m *MockVisitAPI) GetHistory(ctx context.Context, pageURL string, limit, offset int) (*client.HistoryPage, error) {
	args := m.Called(ctx, pageURL, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.HistoryPage), args.Error(1)
}

// GetLatest mocks fetching the most recent visit for a URL
func (m *MockVisitAPI) GetLatest(ctx context.Context, pageURL string) (*client.Visit, error) {
	args := m.Called(ctx, pageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Visit), args.Error(1)
}

// CheckHealth mocks the store health probe
func (m *MockVisitAPI) CheckHealth(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// MockNotifier is a mock implementation of the relay.Notifier interface
type MockNotifier struct {
	mock.Mock
}

// NotifySaveFailed mocks the dropped-save alert
func (m *MockNotifier) NotifySaveFailed(ctx context.Context, pageURL string, cause error) {
	m.Called(ctx, pageURL, cause)
}
