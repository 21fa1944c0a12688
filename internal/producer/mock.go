package producer

import (
	"context"

	"github.com/stretchr/testify/mock"
)

var _ Publisher = (*MockPublisher)(nil)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType, itemID string, payload []byte) (string, error) {
	args := m.Called(ctx, eventType, itemID, payload)
	return args.String(0), args.Error(1)
}
