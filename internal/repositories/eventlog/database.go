package eventlog

import (
	"context"
	"errors"
	"time"
)

// ErrLogUnavailable is returned when the log cannot durably persist or serve a request.
// Callers must not assume an append happened when they see it.
var ErrLogUnavailable = errors.New("event log unavailable")

// Start positions for CreateGroup.
const (
	StartBeginning = "0"
	StartLatest    = "$"
)

// Log is a partitioned, append-only stream with consumer groups. Each group keeps its
// own cursor and pending set; an entry stays pending (and redeliverable once it has been
// idle for the pending timeout) until it is acked.
type Log interface {
	// CreateGroup is a no-op when the group already exists.
	CreateGroup(ctx context.Context, stream, group, start string) error
	Append(ctx context.Context, stream, partitionKey string, record map[string]interface{}) (string, error)
	// ReadBatch claims at most count entries per partition for consumer. Entries idle
	// past the pending timeout are reclaimed before new entries are read. An empty
	// result after block elapses is not an error.
	ReadBatch(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]Message, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	Pending(ctx context.Context, stream, group string) (PendingSummary, error)
	Close() error
}

type Message struct {
	// ID is "<partition stream>/<entry id>", unique across partitions.
	ID     string
	Stream string
	Values map[string]interface{}
	// Reclaimed is set when the entry was taken over from an idle consumer.
	Reclaimed bool
}

type PendingSummary struct {
	Count     int64
	Consumers map[string]int64
}
