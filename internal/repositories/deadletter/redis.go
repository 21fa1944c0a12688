package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fields of a dead-letter stream entry.
const (
	FieldEventID  = "event_id"
	FieldStream   = "source_stream"
	FieldReason   = "reason"
	FieldFailedAt = "failed_at"
	FieldRaw      = "raw"
)

type RedisSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewRedisSink(client redis.UniversalClient, stream string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisSink) Record(ctx context.Context, dl DeadLetter) error {
	raw, err := json.Marshal(rawFields(dl.Raw))
	if err != nil {
		return fmt.Errorf("encode dead letter %s: %w", dl.EventID, err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			FieldEventID:  dl.EventID,
			FieldStream:   dl.Stream,
			FieldReason:   dl.Reason,
			FieldFailedAt: dl.FailedAt.UTC().Format(time.RFC3339Nano),
			FieldRaw:      string(raw),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd dead letter %s to %s: %w", dl.EventID, s.stream, err)
	}
	return nil
}

// Close leaves the shared client open; its owner closes it.
func (s *RedisSink) Close() error {
	return nil
}
