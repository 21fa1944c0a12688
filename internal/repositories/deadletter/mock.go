package deadletter

import (
	"context"

	"github.com/stretchr/testify/mock"
)

var _ Sink = (*MockSink)(nil)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Record(ctx context.Context, dl DeadLetter) error {
	args := m.Called(ctx, dl)
	return args.Error(0)
}

func (m *MockSink) Close() error {
	args := m.Called()
	return args.Error(0)
}
