package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/embedding"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/deadletter"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testStream = "catalog:updates"
	testGroup  = "indexers"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func itemRecord(eventType events.EventType, itemID string, at time.Time) map[string]interface{} {
	ev := events.ChangeEvent{Type: eventType, ItemID: itemID, ProducedAt: at}
	if eventType != events.Delete {
		ev.Payload = []byte(fmt.Sprintf(`{"id":%q,"name":"item %s","category":"lighting","price":10}`, itemID, itemID))
	}
	return events.Encode(ev)
}

func forItem(id string) interface{} {
	return mock.MatchedBy(func(e events.ChangeEvent) bool { return e.ItemID == id })
}

func newLog(t *testing.T, partitions int) *eventlog.MemoryLog {
	l := eventlog.NewMemoryLog(partitions, time.Minute, 0)
	require.NoError(t, l.CreateGroup(context.Background(), testStream, testGroup, eventlog.StartBeginning))
	return l
}

func appendAll(t *testing.T, l eventlog.Log, records ...map[string]interface{}) {
	for _, r := range records {
		_, err := l.Append(context.Background(), testStream, fmt.Sprint(r[events.FieldItemID]), r)
		require.NoError(t, err)
	}
}

func testConfig() Config {
	return Config{Stream: testStream, Group: testGroup, Consumer: "c-0", BatchSize: 16, Block: 10 * time.Millisecond}
}

// claimAndHandle runs one claim-process-ack cycle without the loop.
func claimAndHandle(t *testing.T, d *Dispatcher, l eventlog.Log) bool {
	msgs, err := l.ReadBatch(context.Background(), testStream, testGroup, d.cfg.Consumer, d.cfg.BatchSize, d.cfg.Block)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	return d.handleBatch(context.Background(), msgs)
}

func pendingCount(t *testing.T, l eventlog.Log) int64 {
	p, err := l.Pending(context.Background(), testStream, testGroup)
	require.NoError(t, err)
	return p.Count
}

// ==================== per-record outcomes ====================

func TestDispatcher_RecordOutcomes(t *testing.T) {
	l := newLog(t, 1)
	poison := map[string]interface{}{events.FieldItemID: "sku-bad", events.FieldEventType: "rename"}
	appendAll(t, l,
		itemRecord(events.Create, "sku-1", t0),
		itemRecord(events.Create, "sku-2", t0),
		poison,
		itemRecord(events.Update, "sku-3", t0),
	)

	handler := &indexer.MockHandler{}
	handler.On("Process", mock.Anything, forItem("sku-1")).Return(nil)
	handler.On("Process", mock.Anything, forItem("sku-2")).Return(errors.New("embedding backend timeout"))
	handler.On("Process", mock.Anything, forItem("sku-3")).Return(fmt.Errorf("wrap: %w", vector.ErrInvalidVector))
	sink := &deadletter.MockSink{}
	sink.On("Record", mock.Anything, mock.Anything).Return(nil)

	d := New(testConfig(), l, handler, sink)
	assert.True(t, claimAndHandle(t, d, l))

	// only the transient failure stays pending
	assert.Equal(t, int64(1), pendingCount(t, l))
	stats := d.Stats()
	assert.Equal(t, uint64(4), stats.Claimed)
	assert.Equal(t, uint64(1), stats.Processed)
	assert.Equal(t, uint64(2), stats.DeadLettered)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(3), stats.Acked)

	sink.AssertNumberOfCalls(t, "Record", 2)
	sink.AssertCalled(t, "Record", mock.Anything, mock.MatchedBy(func(dl deadletter.DeadLetter) bool {
		return dl.Raw[events.FieldItemID] == "sku-bad" && dl.Stream != "" && !dl.FailedAt.IsZero()
	}))
	handler.AssertNotCalled(t, "Process", mock.Anything, forItem("sku-bad"))
}

func TestDispatcher_SinkFailureLeavesPending(t *testing.T) {
	l := newLog(t, 1)
	appendAll(t, l, map[string]interface{}{events.FieldItemID: "sku-bad"})

	sink := &deadletter.MockSink{}
	sink.On("Record", mock.Anything, mock.Anything).Return(errors.New("dead letter stream unavailable"))
	d := New(testConfig(), l, &indexer.MockHandler{}, sink)

	assert.True(t, claimAndHandle(t, d, l))
	assert.Equal(t, int64(1), pendingCount(t, l))
	assert.Equal(t, uint64(0), d.Stats().DeadLettered)
	assert.Equal(t, uint64(1), d.Stats().Failed)
}

func TestDispatcher_PanicIsContained(t *testing.T) {
	l := newLog(t, 1)
	appendAll(t, l, itemRecord(events.Create, "sku-1", t0), itemRecord(events.Create, "sku-2", t0))

	handler := &indexer.MockHandler{}
	handler.On("Process", mock.Anything, forItem("sku-1")).Run(func(mock.Arguments) { panic("nil map write") }).Return(nil)
	handler.On("Process", mock.Anything, forItem("sku-2")).Return(nil)
	d := New(testConfig(), l, handler, &deadletter.MockSink{})

	assert.NotPanics(t, func() { claimAndHandle(t, d, l) })
	assert.Equal(t, int64(1), pendingCount(t, l))
	assert.Equal(t, uint64(1), d.Stats().Panics)
	assert.Equal(t, uint64(1), d.Stats().Acked)
}

// ==================== loop ====================

type recordedSleeps struct {
	mu     sync.Mutex
	waits  []time.Duration
	after  int
	cancel context.CancelFunc
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	if len(r.waits) >= r.after {
		r.cancel()
	}
}

func TestDispatcher_ClaimErrorsBackOff(t *testing.T) {
	l := &eventlog.MockLog{}
	l.On("ReadBatch", mock.Anything, testStream, testGroup, "c-0", 16, 10*time.Millisecond).
		Return(nil, eventlog.ErrLogUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig()
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 40 * time.Millisecond
	d := New(cfg, l, &indexer.MockHandler{}, &deadletter.MockSink{})
	sleeps := &recordedSleeps{after: 5, cancel: cancel}
	d.sleep = sleeps.sleep

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, Stopped, d.State())
	assert.Equal(t, uint64(5), d.Stats().ClaimErrors)
	require.Len(t, sleeps.waits, 5)
	for _, w := range sleeps.waits {
		assert.Greater(t, w, time.Duration(0))
		// randomisation can push a wait up to 1.5x the cap
		assert.LessOrEqual(t, w, 60*time.Millisecond)
	}
	l.AssertNotCalled(t, "Ack", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_AckErrorBacksOffAndRedelivers(t *testing.T) {
	l := &eventlog.MockLog{}
	msgs := []eventlog.Message{{ID: testStream + "/1-0", Stream: testStream, Values: itemRecord(events.Create, "sku-1", t0)}}
	l.On("ReadBatch", mock.Anything, testStream, testGroup, "c-0", 16, 10*time.Millisecond).Return(msgs, nil).Once()
	l.On("Ack", mock.Anything, testStream, testGroup, []string{testStream + "/1-0"}).Return(eventlog.ErrLogUnavailable)

	handler := &indexer.MockHandler{}
	handler.On("Process", mock.Anything, forItem("sku-1")).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(testConfig(), l, handler, &deadletter.MockSink{})
	sleeps := &recordedSleeps{after: 1, cancel: cancel}
	d.sleep = sleeps.sleep

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, uint64(1), d.Stats().AckErrors)
	assert.Equal(t, uint64(0), d.Stats().Acked)
	assert.Len(t, sleeps.waits, 1)
}

func TestDispatcher_CancelFinishesBatchInHand(t *testing.T) {
	l := newLog(t, 1)
	appendAll(t, l, itemRecord(events.Create, "sku-1", t0), itemRecord(events.Create, "sku-2", t0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var secondCtxErr error
	handler := &indexer.MockHandler{}
	handler.On("Process", mock.Anything, forItem("sku-1")).Run(func(mock.Arguments) { cancel() }).Return(nil)
	handler.On("Process", mock.Anything, forItem("sku-2")).Run(func(args mock.Arguments) {
		secondCtxErr = args.Get(0).(context.Context).Err()
	}).Return(nil)

	d := New(testConfig(), l, handler, &deadletter.MockSink{})
	require.NoError(t, d.Run(ctx))

	assert.NoError(t, secondCtxErr)
	assert.Equal(t, int64(0), pendingCount(t, l))
	assert.Equal(t, uint64(2), d.Stats().Acked)
	assert.Equal(t, "stopped", d.Stats().State)
}

func TestDispatcher_RunTwiceRejected(t *testing.T) {
	l := newLog(t, 1)
	d := New(testConfig(), l, &indexer.MockHandler{}, &deadletter.MockSink{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Eventually(t, func() bool { return d.State() != Idle }, time.Second, time.Millisecond)
	assert.Error(t, d.Run(ctx))
	cancel()
	assert.NoError(t, <-done)
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Idle: "idle", Claiming: "claiming", Processing: "processing",
		Acking: "acking", Stopped: "stopped", State(42): "unknown",
	}
	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}
}

// ==================== pool ====================

func testPoolConfig(consumers int) PoolConfig {
	cfg := testConfig()
	cfg.Consumer = ""
	return PoolConfig{Config: cfg, ConsumerPrefix: "indexer", ConsumerCount: consumers}
}

func totalAcked(p *Pool) uint64 {
	var n uint64
	for _, s := range p.Stats() {
		n += s.Acked
	}
	return n
}

func TestPool_ProcessesEverythingAndStops(t *testing.T) {
	l := eventlog.NewMemoryLog(4, time.Minute, 0)
	for i := 0; i < 40; i++ {
		appendAll(t, l, itemRecord(events.Create, fmt.Sprintf("sku-%d", i), t0))
	}
	handler := &indexer.MockHandler{}
	handler.On("Process", mock.Anything, mock.Anything).Return(nil)

	p := NewPool(testPoolConfig(3), l, handler, &deadletter.MockSink{})
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))

	assert.Eventually(t, func() bool { return totalAcked(p) == 40 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(time.Second))

	stats := p.Stats()
	require.Len(t, stats, 3)
	names := make([]string, 0, len(stats))
	for _, s := range stats {
		names = append(names, s.Consumer)
		assert.Equal(t, "stopped", s.State)
	}
	assert.ElementsMatch(t, []string{"indexer-0", "indexer-1", "indexer-2"}, names)
	assert.Equal(t, int64(0), pendingCount(t, l))
	handler.AssertNumberOfCalls(t, "Process", 40)
}

func TestPool_StopTimeout(t *testing.T) {
	l := eventlog.NewMemoryLog(1, time.Minute, 0)
	appendAll(t, l, itemRecord(events.Create, "sku-1", t0))

	started := make(chan struct{})
	release := make(chan struct{})
	handler := &indexer.MockHandler{}
	handler.On("Process", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil)

	p := NewPool(testPoolConfig(1), l, handler, &deadletter.MockSink{})
	require.NoError(t, p.Start(context.Background()))
	<-started

	assert.ErrorIs(t, p.Stop(20*time.Millisecond), ErrStopTimeout)
	close(release)
	assert.NoError(t, p.Stop(time.Second))
	assert.Equal(t, uint64(1), totalAcked(p))
}

func TestPool_CreateGroupFailure(t *testing.T) {
	l := &eventlog.MockLog{}
	l.On("CreateGroup", mock.Anything, testStream, testGroup, eventlog.StartBeginning).Return(eventlog.ErrLogUnavailable)

	p := NewPool(testPoolConfig(2), l, &indexer.MockHandler{}, &deadletter.MockSink{})
	assert.ErrorIs(t, p.Start(context.Background()), eventlog.ErrLogUnavailable)
	assert.NoError(t, p.Stop(time.Second))
}

// ==================== end to end ====================

func TestPool_IndexesOutOfOrderEvents(t *testing.T) {
	const dim = 64
	provider, err := embedding.NewHashingProvider(dim)
	require.NoError(t, err)
	db := vector.NewHNSWIndex(vector.HNSWParams{Dimension: dim, ExactThreshold: 1000})
	l := eventlog.NewMemoryLog(2, time.Minute, 0)

	appendAll(t, l,
		itemRecord(events.Create, "sku-1", t0),
		itemRecord(events.Update, "sku-1", t0.Add(2*time.Second)),
		itemRecord(events.Create, "sku-2", t0),
		itemRecord(events.Delete, "sku-2", t0.Add(time.Second)),
		// older than the delete, must not resurrect the item
		itemRecord(events.Update, "sku-2", t0.Add(500*time.Millisecond)),
		itemRecord(events.Create, "sku-3", t0),
	)

	sink := &deadletter.MockSink{}
	p := NewPool(testPoolConfig(2), l, indexer.NewCatalogIndexer(provider, db), sink)
	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return totalAcked(p) == 6 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(time.Second))

	e, err := db.Get(context.Background(), "sku-1")
	require.NoError(t, err)
	assert.True(t, e.Version.Equal(t0.Add(2*time.Second)))
	_, err = db.Get(context.Background(), "sku-2")
	assert.ErrorIs(t, err, vector.ErrNotFound)
	assert.Equal(t, 2, db.Len())
	sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}
