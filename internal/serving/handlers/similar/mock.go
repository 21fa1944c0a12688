package similar

import (
	"context"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/stretchr/testify/mock"
)

var _ Querier = (*MockQuerier)(nil)

type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) SimilarTo(ctx context.Context, itemID string, p Params) ([]vector.SimilarCandidate, error) {
	args := m.Called(ctx, itemID, p)
	if r, ok := args.Get(0).([]vector.SimilarCandidate); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockQuerier) SimilarToVector(ctx context.Context, vec []float32, p Params) ([]vector.SimilarCandidate, error) {
	args := m.Called(ctx, vec, p)
	if r, ok := args.Get(0).([]vector.SimilarCandidate); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockQuerier) SimilarToText(ctx context.Context, text string, p Params) ([]vector.SimilarCandidate, error) {
	args := m.Called(ctx, text, p)
	if r, ok := args.Get(0).([]vector.SimilarCandidate); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
