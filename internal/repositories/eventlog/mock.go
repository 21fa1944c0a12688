package eventlog

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

var _ Log = (*MockLog)(nil)

type MockLog struct {
	mock.Mock
}

func (m *MockLog) CreateGroup(ctx context.Context, stream, group, start string) error {
	args := m.Called(ctx, stream, group, start)
	return args.Error(0)
}

func (m *MockLog) Append(ctx context.Context, stream, partitionKey string, record map[string]interface{}) (string, error) {
	args := m.Called(ctx, stream, partitionKey, record)
	return args.String(0), args.Error(1)
}

func (m *MockLog) ReadBatch(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]Message, error) {
	args := m.Called(ctx, stream, group, consumer, count, block)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLog) Ack(ctx context.Context, stream, group string, ids ...string) error {
	args := m.Called(ctx, stream, group, ids)
	return args.Error(0)
}

func (m *MockLog) Pending(ctx context.Context, stream, group string) (PendingSummary, error) {
	args := m.Called(ctx, stream, group)
	return args.Get(0).(PendingSummary), args.Error(1)
}

func (m *MockLog) Close() error {
	args := m.Called()
	return args.Error(0)
}
