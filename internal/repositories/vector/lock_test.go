package vector

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "catalog-sync", time.Second), mr
}

// ==============================
// Redis locker
// ==============================

func TestRedisLocker_LockAndRelease(t *testing.T) {
	locker, mr := newTestRedisLocker(t)

	unlock, err := locker.Lock(context.Background(), "sku-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("catalog-sync:lock:sku-1"))
	assert.Equal(t, time.Second, mr.TTL("catalog-sync:lock:sku-1"))

	unlock()
	assert.False(t, mr.Exists("catalog-sync:lock:sku-1"))
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	unlock, err := locker.Lock(context.Background(), "sku-1")
	require.NoError(t, err)

	acquired := make(chan func(), 1)
	go func() {
		next, err := locker.Lock(context.Background(), "sku-1")
		if err == nil {
			acquired <- next
		}
	}()
	assert.Never(t, func() bool { return len(acquired) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	unlock()
	select {
	case next := <-acquired:
		next()
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never acquired the lock")
	}
	assert.False(t, mr.Exists("catalog-sync:lock:sku-1"))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	unlock, err := locker.Lock(context.Background(), "sku-1")
	require.NoError(t, err)

	// the lock expired and another process took it over
	require.NoError(t, mr.Set("catalog-sync:lock:sku-1", "other-process"))
	unlock()

	got, err := mr.Get("catalog-sync:lock:sku-1")
	require.NoError(t, err)
	assert.Equal(t, "other-process", got)
}

func TestRedisLocker_ContextEnds(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	require.NoError(t, mr.Set("catalog-sync:lock:sku-1", "other-process"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := locker.Lock(ctx, "sku-1")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ==============================
// Local locker
// ==============================

func TestLocalLocker_Excludes(t *testing.T) {
	locker := newLocalLocker()
	unlock, err := locker.Lock(context.Background(), "sku-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		next, _ := locker.Lock(context.Background(), "sku-1")
		close(acquired)
		next()
	}()
	assert.Never(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)
	unlock()
	<-acquired
}
