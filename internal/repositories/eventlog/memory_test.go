package eventlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStream = "catalog:updates"
	testGroup  = "catalog-indexers"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLog(t *testing.T, partitions int) (*MemoryLog, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewMemoryLog(partitions, 30*time.Second, 0, WithClock(clock.Now))
	require.NoError(t, l.CreateGroup(context.Background(), testStream, testGroup, StartBeginning))
	return l, clock
}

func record(item string) map[string]interface{} {
	return map[string]interface{}{"item_id": item}
}

// ==================== Append / ReadBatch ====================

func TestMemoryLog_ReadInAppendOrder(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 1)
	var ids []string
	for _, item := range []string{"p1", "p2", "p3"} {
		id, err := l.Append(ctx, testStream, item, record(item))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	msgs, err := l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, ids[i], m.ID)
		assert.False(t, m.Reclaimed)
	}
	assert.Equal(t, "p1", msgs[0].Values["item_id"])

	summary, err := l.Pending(ctx, testStream, testGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Count)
	assert.Equal(t, int64(3), summary.Consumers["worker-0"])
}

func TestMemoryLog_CountBoundsBatch(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 1)
	for i := 0; i < 5; i++ {
		_, err := l.Append(ctx, testStream, "p1", record("p1"))
		require.NoError(t, err)
	}
	first, err := l.ReadBatch(ctx, testStream, testGroup, "worker-0", 2, 0)
	require.NoError(t, err)
	second, err := l.ReadBatch(ctx, testStream, testGroup, "worker-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Len(t, second, 3)
}

func TestMemoryLog_EmptyOnTimeout(t *testing.T) {
	l, _ := newTestLog(t, 1)
	start := time.Now()
	msgs, err := l.ReadBatch(context.Background(), testStream, testGroup, "worker-0", 10, 30*time.Millisecond)
	assert.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestMemoryLog_BlockedReadWakesOnAppend(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = l.Append(ctx, testStream, "p1", record("p1"))
	}()
	msgs, err := l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 5*time.Second)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryLog_ReadBatchHonoursContext(t *testing.T) {
	l, _ := newTestLog(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryLog_UnknownGroup(t *testing.T) {
	l, _ := newTestLog(t, 1)
	_, err := l.ReadBatch(context.Background(), testStream, "other", "worker-0", 10, 0)
	assert.ErrorIs(t, err, ErrLogUnavailable)
}

// ==================== Groups ====================

func TestMemoryLog_CreateGroupIdempotent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 1)
	_, err := l.Append(ctx, testStream, "p1", record("p1"))
	require.NoError(t, err)
	_, err = l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 0)
	require.NoError(t, err)

	require.NoError(t, l.CreateGroup(ctx, testStream, testGroup, StartBeginning))
	summary, err := l.Pending(ctx, testStream, testGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Count, "re-creating must not reset the cursor or the pending set")
}

func TestMemoryLog_StartLatestSkipsHistory(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 1)
	_, err := l.Append(ctx, testStream, "p1", record("p1"))
	require.NoError(t, err)
	require.NoError(t, l.CreateGroup(ctx, testStream, "search-warmers", StartLatest))
	_, err = l.Append(ctx, testStream, "p2", record("p2"))
	require.NoError(t, err)

	msgs, err := l.ReadBatch(ctx, testStream, "search-warmers", "worker-0", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "p2", msgs[0].Values["item_id"])
}

func TestMemoryLog_GroupsAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 1)
	require.NoError(t, l.CreateGroup(ctx, testStream, "audit", StartBeginning))
	_, err := l.Append(ctx, testStream, "p1", record("p1"))
	require.NoError(t, err)

	a, err := l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 0)
	require.NoError(t, err)
	b, err := l.ReadBatch(ctx, testStream, "audit", "worker-0", 10, 0)
	require.NoError(t, err)
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
}

// ==================== Pending / reclaim ====================

func TestMemoryLog_ReclaimOnlyAfterPendingTimeout(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLog(t, 1)
	id, err := l.Append(ctx, testStream, "p1", record("p1"))
	require.NoError(t, err)

	claimed, err := l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 0)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	clock.Advance(29 * time.Second)
	msgs, err := l.ReadBatch(ctx, testStream, testGroup, "worker-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "not idle long enough")

	clock.Advance(time.Second)
	msgs, err = l.ReadBatch(ctx, testStream, testGroup, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.True(t, msgs[0].Reclaimed)

	// the claim moved: worker-0 cannot take it back until it idles again
	msgs, err = l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	summary, err := l.Pending(ctx, testStream, testGroup)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"worker-1": 1}, summary.Consumers)
}

func TestMemoryLog_AckedNeverRedelivered(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLog(t, 1)
	_, err := l.Append(ctx, testStream, "p1", record("p1"))
	require.NoError(t, err)
	msgs, err := l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 0)
	require.NoError(t, err)
	require.NoError(t, l.Ack(ctx, testStream, testGroup, msgs[0].ID))

	clock.Advance(time.Hour)
	msgs, err = l.ReadBatch(ctx, testStream, testGroup, "worker-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// acking twice is harmless
	assert.NoError(t, l.Ack(ctx, testStream, testGroup, messageID(testStream, "1-0")))
}

func TestMemoryLog_ConcurrentReadersNeverShareAnEntry(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 4)
	const total = 200
	for i := 0; i < total; i++ {
		_, err := l.Append(ctx, testStream, string(rune('a'+i%26))+"-item", record("x"))
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(consumer string) {
			defer wg.Done()
			for {
				msgs, err := l.ReadBatch(ctx, testStream, testGroup, consumer, 7, 0)
				if err != nil || len(msgs) == 0 {
					return
				}
				mu.Lock()
				for _, m := range msgs {
					seen[m.ID]++
				}
				mu.Unlock()
			}
		}("worker-" + string(rune('0'+w)))
	}
	wg.Wait()
	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

// ==================== Partitions / lifecycle ====================

func TestMemoryLog_SameKeySamePartition(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 8)
	a, err := l.Append(ctx, testStream, "p42", record("p42"))
	require.NoError(t, err)
	b, err := l.Append(ctx, testStream, "p42", record("p42"))
	require.NoError(t, err)

	pa, _, err := splitMessageID(a)
	require.NoError(t, err)
	pb, _, err := splitMessageID(b)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.NotEqual(t, a, b)
}

func TestMemoryLog_AckRejectsForeignStream(t *testing.T) {
	l, _ := newTestLog(t, 1)
	err := l.Ack(context.Background(), testStream, testGroup, "orders/1-0")
	assert.Error(t, err)
}

func TestMemoryLog_MaxLenTrims(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog(1, time.Minute, 2)
	require.NoError(t, l.CreateGroup(ctx, testStream, testGroup, StartBeginning))
	for _, item := range []string{"p1", "p2", "p3"} {
		_, err := l.Append(ctx, testStream, item, record(item))
		require.NoError(t, err)
	}
	msgs, err := l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "p2", msgs[0].Values["item_id"])
}

func TestMemoryLog_ClosedIsUnavailable(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t, 1)
	require.NoError(t, l.Close())
	_, err := l.Append(ctx, testStream, "p1", record("p1"))
	assert.ErrorIs(t, err, ErrLogUnavailable)
	_, err = l.ReadBatch(ctx, testStream, testGroup, "worker-0", 10, time.Second)
	assert.ErrorIs(t, err, ErrLogUnavailable)
	assert.NoError(t, l.Close())
}
