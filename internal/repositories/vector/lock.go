package vector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrLockNotAcquired is returned when another writer held the item lock until the
// caller's context ended. It is transient: the mutation can be retried.
var ErrLockNotAcquired = errors.New("item lock not acquired")

// KeyLocker serialises the read-check-write of one item id. The returned unlock must be
// called exactly once.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// localLocker only serialises writers inside this process.
type localLocker struct {
	locks [shardCount]sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{}
}

func (l *localLocker) Lock(_ context.Context, key string) (func(), error) {
	m := &l.locks[shardOf(key)]
	m.Lock()
	return m.Unlock, nil
}

// releaseScript deletes the lock only while it still carries the caller's token, so an
// expired lock taken over by another writer is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serialises writers across processes with SET NX PX. The ttl bounds how
// long a crashed holder blocks the key and must exceed the longest mutation.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	// retry intervals while the key is held elsewhere
	initialWait time.Duration
	maxWait     time.Duration
}

func NewRedisLocker(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:      client,
		prefix:      namespace + ":lock:",
		ttl:         ttl,
		initialWait: 5 * time.Millisecond,
		maxWait:     200 * time.Millisecond,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.prefix + key
	token := uuid.NewString()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialWait
	b.MaxInterval = r.maxWait
	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLockNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return func() { r.release(lockKey, token) }, nil
		}
		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", ErrLockNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (r *RedisLocker) release(lockKey, token string) {
	// the mutation context may already be done; release on a fresh one
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Err(); err != nil {
		log.Warn().Err(err).Msgf("failed to release %s, it expires in %s", lockKey, r.ttl)
	}
}
