package distributedcache

import (
	"context"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/stretchr/testify/mock"
)

var _ Database = (*MockDatabase)(nil)

type MockDatabase struct {
	mock.Mock
}

func (m *MockDatabase) Get(ctx context.Context, key string, metricTags []string) ([]vector.SimilarCandidate, bool, error) {
	args := m.Called(ctx, key, metricTags)
	results, _ := args.Get(0).([]vector.SimilarCandidate)
	return results, args.Bool(1), args.Error(2)
}

func (m *MockDatabase) Set(ctx context.Context, key string, results []vector.SimilarCandidate, ttlSeconds int, metricTags []string) error {
	args := m.Called(ctx, key, results, ttlSeconds, metricTags)
	return args.Error(0)
}
