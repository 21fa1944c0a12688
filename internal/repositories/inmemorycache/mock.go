package inmemorycache

import (
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/stretchr/testify/mock"
)

var _ Database = (*MockDatabase)(nil)

type MockDatabase struct {
	mock.Mock
}

func (m *MockDatabase) Get(key string, metricTags []string) ([]vector.SimilarCandidate, bool) {
	args := m.Called(key, metricTags)
	if results, ok := args.Get(0).([]vector.SimilarCandidate); ok {
		return results, args.Bool(1)
	}
	return nil, args.Bool(1)
}

func (m *MockDatabase) Set(key string, results []vector.SimilarCandidate, ttlSeconds int, metricTags []string) {
	m.Called(key, results, ttlSeconds, metricTags)
}

func (m *MockDatabase) Close() {
	m.Called()
}
