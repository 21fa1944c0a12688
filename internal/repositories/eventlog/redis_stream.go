package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamLog implements Log on Redis Streams (XADD, XREADGROUP, XAUTOCLAIM, XACK).
// Requires Redis 6.2 or later.
type RedisStreamLog struct {
	client     redis.UniversalClient
	partitions int
	minIdle    time.Duration
	maxLen     int64
}

func NewRedisStreamLog(client redis.UniversalClient, partitions int, pendingTimeout time.Duration, maxLen int64) *RedisStreamLog {
	if partitions < 1 {
		partitions = 1
	}
	return &RedisStreamLog{
		client:     client,
		partitions: partitions,
		minIdle:    pendingTimeout,
		maxLen:     maxLen,
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrLogUnavailable, op, err)
}

func (r *RedisStreamLog) CreateGroup(ctx context.Context, stream, group, start string) error {
	for _, physical := range partitionStreams(stream, r.partitions) {
		err := r.client.XGroupCreateMkStream(ctx, physical, group, start).Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return unavailable("xgroup create", err)
		}
	}
	return nil
}

func (r *RedisStreamLog) Append(ctx context.Context, stream, partitionKey string, record map[string]interface{}) (string, error) {
	physical := partitionFor(stream, partitionKey, r.partitions)
	args := &redis.XAddArgs{
		Stream: physical,
		Values: record,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", unavailable("xadd", err)
	}
	return messageID(physical, id), nil
}

func (r *RedisStreamLog) ReadBatch(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]Message, error) {
	physicals := partitionStreams(stream, r.partitions)

	var reclaimed []Message
	for _, physical := range physicals {
		msgs, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   physical,
			Group:    group,
			Consumer: consumer,
			MinIdle:  r.minIdle,
			Start:    "0-0",
			Count:    int64(count),
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, unavailable("xautoclaim", err)
		}
		for _, m := range msgs {
			reclaimed = append(reclaimed, Message{ID: messageID(physical, m.ID), Stream: physical, Values: m.Values, Reclaimed: true})
		}
	}
	if len(reclaimed) > 0 {
		return reclaimed, nil
	}

	streams := make([]string, 0, 2*len(physicals))
	streams = append(streams, physicals...)
	for range physicals {
		streams = append(streams, ">")
	}
	// BLOCK 0 would wait forever; a negative value omits the argument.
	if block <= 0 {
		block = -1
	}
	res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  streams,
		Count:    int64(count),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unavailable("xreadgroup", err)
	}
	var out []Message
	for _, s := range res {
		for _, m := range s.Messages {
			out = append(out, Message{ID: messageID(s.Stream, m.ID), Stream: s.Stream, Values: m.Values})
		}
	}
	return out, nil
}

func (r *RedisStreamLog) Ack(ctx context.Context, stream, group string, ids ...string) error {
	byStream, err := groupIDsByStream(stream, r.partitions, ids)
	if err != nil {
		return err
	}
	for physical, entryIDs := range byStream {
		if err := r.client.XAck(ctx, physical, group, entryIDs...).Err(); err != nil {
			return unavailable("xack", err)
		}
	}
	return nil
}

func (r *RedisStreamLog) Pending(ctx context.Context, stream, group string) (PendingSummary, error) {
	summary := PendingSummary{Consumers: make(map[string]int64)}
	for _, physical := range partitionStreams(stream, r.partitions) {
		p, err := r.client.XPending(ctx, physical, group).Result()
		if err != nil {
			return PendingSummary{}, unavailable("xpending", err)
		}
		summary.Count += p.Count
		for consumer, n := range p.Consumers {
			summary.Consumers[consumer] += n
		}
	}
	return summary, nil
}

// Close is a no-op: the client is owned by whoever constructed it.
func (r *RedisStreamLog) Close() error {
	return nil
}
