package mocks

import (
	"context"

	"github.com/Harvey-AU/page-pulse/internal/db"
	"github.com/stretchr/testify/mock"
)

// MockVisitStore is a mock implementation of the api.VisitStore interface
type MockVisitStore struct {
	mock.Mock
}

// CreateVisit mocks persisting a visit record
func (m *MockVisitStore) CreateVisit(ctx context.Context, visit *db.VisitCreate) (*db.Visit, error) {
	args := m.Called(ctx, visit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Visit), args.Error(1)
}

// GetVisitsByURL mocks the per-URL history query
func (m *MockVisitStore) GetVisitsByURL(ctx context.Context, url string, limit, offset int) ([]db.Visit, error) {
	args := m.Called(ctx, url, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Visit), args.Error(1)
}

// CountVisitsByURL mocks the per-URL total count
func (m *MockVisitStore) CountVisitsByURL(ctx context.Context, url string) (int, error) {
	args := m.Called(ctx, url)
	return args.Int(0), args.Error(1)
}

// GetLatestVisitByURL mocks the most-recent-visit query
func (m *MockVisitStore) GetLatestVisitByURL(ctx context.Context, url string) (*db.Visit, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Visit), args.Error(1)
}

// ListVisits mocks the all-URLs history query
func (m *MockVisitStore) ListVisits(ctx context.Context, limit, offset int) ([]db.Visit, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]db.Visit), args.Error(1)
}

// CountVisits mocks the all-URLs total count
func (m *MockVisitStore) CountVisits(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// Ping mocks the connectivity check
func (m *MockVisitStore) Ping() error {
	args := m.Called()
	return args.Error(0)
}
