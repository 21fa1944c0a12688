package indexer

import (
	"context"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/stretchr/testify/mock"
)

var _ Handler = (*MockHandler)(nil)

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Process(ctx context.Context, event events.ChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
