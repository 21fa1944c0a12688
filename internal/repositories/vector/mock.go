package vector

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

var _ Database = (*MockDatabase)(nil)

type MockDatabase struct {
	mock.Mock
}

func (m *MockDatabase) Upsert(ctx context.Context, entry Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDatabase) Remove(ctx context.Context, itemID string, version time.Time) error {
	args := m.Called(ctx, itemID, version)
	return args.Error(0)
}

func (m *MockDatabase) Get(ctx context.Context, itemID string) (Entry, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(Entry), args.Error(1)
}

func (m *MockDatabase) Query(ctx context.Context, req QueryRequest) ([]SimilarCandidate, error) {
	args := m.Called(ctx, req)
	if res, ok := args.Get(0).([]SimilarCandidate); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) Len() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockDatabase) Dimension() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
