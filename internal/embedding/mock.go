package embedding

import (
	"context"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/stretchr/testify/mock"
)

var _ Provider = (*MockProvider)(nil)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Embed(ctx context.Context, item events.Item) ([]float32, error) {
	args := m.Called(ctx, item)
	if v, ok := args.Get(0).([]float32); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v, ok := args.Get(0).([]float32); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) Dimension() int {
	args := m.Called()
	return args.Int(0)
}
