package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
)

const shardCount = 64

// persister receives every accepted mutation before it becomes visible in memory.
// A persister error aborts the mutation.
type persister interface {
	saveEntry(e Entry) error
	saveTombstone(itemID string, version, removedAt time.Time) error
	dropTombstones(itemIDs []string) error
}

type record struct {
	node      *hnswNode // nil for a tombstone
	raw       []float32
	version   time.Time
	removedAt time.Time
}

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

// HNSWIndex is the in-memory Database. Mutations of one key are serialised by the key's
// shard lock; the graph itself is concurrent. compactMu is held exclusively only while
// the graph is rebuilt.
type HNSWIndex struct {
	params             HNSWParams
	tombstoneRetention time.Duration
	now                func() time.Time
	backend            string
	store              persister

	compactMu sync.RWMutex
	graph     *hnswGraph
	shards    [shardCount]shard
}

type Option func(*HNSWIndex)

func WithClock(now func() time.Time) Option {
	return func(x *HNSWIndex) { x.now = now }
}

func WithTombstoneRetention(d time.Duration) Option {
	return func(x *HNSWIndex) { x.tombstoneRetention = d }
}

func NewHNSWIndex(params HNSWParams, opts ...Option) *HNSWIndex {
	params = params.withDefaults()
	x := &HNSWIndex{
		params:             params,
		tombstoneRetention: 24 * time.Hour,
		now:                time.Now,
		backend:            "memory",
		graph:              newHNSWGraph(params),
	}
	for i := range x.shards {
		x.shards[i].records = make(map[string]*record)
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func shardOf(itemID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(itemID))
	return h.Sum32() % shardCount
}

func (x *HNSWIndex) shardFor(itemID string) *shard {
	return &x.shards[shardOf(itemID)]
}

func (x *HNSWIndex) Dimension() int {
	return x.params.Dimension
}

// Len counts live entries.
func (x *HNSWIndex) Len() int {
	x.compactMu.RLock()
	defer x.compactMu.RUnlock()
	return int(x.graph.live.Load())
}

func (x *HNSWIndex) Upsert(_ context.Context, e Entry) error {
	if e.ItemID == "" {
		return fmt.Errorf("%w: empty item id", ErrInvalidVector)
	}
	if err := checkDimension(e.Vector, x.params.Dimension); err != nil {
		return err
	}
	unit, err := normalize(e.Vector)
	if err != nil {
		return err
	}

	x.compactMu.RLock()
	defer x.compactMu.RUnlock()
	s := x.shardFor(e.ItemID)
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.records[e.ItemID]
	if current != nil && !upsertWins(current.version, current.node == nil, e.Version) {
		return ErrStaleMutation
	}
	raw := append([]float32(nil), e.Vector...)
	meta := copyMetadata(e.Metadata)
	if x.store != nil {
		if err := x.store.saveEntry(Entry{ItemID: e.ItemID, Vector: raw, Metadata: meta, Version: e.Version}); err != nil {
			return err
		}
	}

	if current != nil && current.node != nil && equalVectors(current.raw, raw) {
		current.node.meta.Store(&meta)
		current.version = e.Version
		metric.Incr(metric.VectorMutationCount, x.tags("upsert_metadata"))
		return nil
	}
	if current != nil && current.node != nil {
		x.graph.markDeleted(current.node)
	}
	n := x.graph.insert(e.ItemID, unit, meta)
	s.records[e.ItemID] = &record{node: n, raw: raw, version: e.Version}
	metric.Incr(metric.VectorMutationCount, x.tags("upsert"))
	return nil
}

func (x *HNSWIndex) Remove(_ context.Context, itemID string, version time.Time) error {
	x.compactMu.RLock()
	defer x.compactMu.RUnlock()
	s := x.shardFor(itemID)
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.records[itemID]
	if current != nil && !removeWins(current.version, version) {
		return ErrStaleMutation
	}
	removedAt := x.now()
	if x.store != nil {
		if err := x.store.saveTombstone(itemID, version, removedAt); err != nil {
			return err
		}
	}
	if current != nil && current.node != nil {
		x.graph.markDeleted(current.node)
	}
	s.records[itemID] = &record{version: version, removedAt: removedAt}
	metric.Incr(metric.VectorMutationCount, x.tags("remove"))
	return nil
}

func (x *HNSWIndex) Get(_ context.Context, itemID string) (Entry, error) {
	s := x.shardFor(itemID)
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[itemID]
	if r == nil || r.node == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	return Entry{
		ItemID:   itemID,
		Vector:   append([]float32(nil), r.raw...),
		Metadata: copyMetadata(r.node.metadata()),
		Version:  r.version,
	}, nil
}

// Query scans exhaustively while the index holds fewer than ExactThreshold live entries,
// which makes small indexes exact. Larger indexes are searched through the graph with
// the beam widened until K filtered matches are found or every node has been in reach.
func (x *HNSWIndex) Query(ctx context.Context, req QueryRequest) ([]SimilarCandidate, error) {
	start := time.Now()
	defer metric.TimingWithStart(metric.VectorQueryLatency, start, x.tags("query"))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.K <= 0 {
		return []SimilarCandidate{}, nil
	}
	if err := checkDimension(req.Vector, x.params.Dimension); err != nil {
		return nil, err
	}
	q, err := normalize(req.Vector)
	if err != nil {
		return nil, err
	}

	x.compactMu.RLock()
	defer x.compactMu.RUnlock()
	g := x.graph

	accept := func(n *hnswNode, sim float32) (SimilarCandidate, bool) {
		if n.deleted.Load() || n.key == req.ExcludeID || sim < req.MinScore {
			return SimilarCandidate{}, false
		}
		meta := n.metadata()
		if !req.Filter.Match(meta) {
			return SimilarCandidate{}, false
		}
		return SimilarCandidate{ItemID: n.key, Score: sim, Metadata: copyMetadata(meta)}, true
	}

	var results []SimilarCandidate
	if g.live.Load() <= int64(x.params.ExactThreshold) {
		g.scan(func(n *hnswNode) {
			if c, ok := accept(n, dot(q, n.vec)); ok {
				results = append(results, c)
			}
		})
		return rank(results, req.K), nil
	}

	ef := max(x.params.EfSearch, req.K+1)
	for {
		results = results[:0]
		for _, c := range g.search(q, ef) {
			if r, ok := accept(c.node, c.sim); ok {
				results = append(results, r)
			}
		}
		if len(results) >= req.K || int64(ef) >= g.total.Load() {
			break
		}
		ef *= 2
	}
	return rank(results, req.K), nil
}

// NeedsCompaction reports whether deleted nodes make up more than half of the graph.
func (x *HNSWIndex) NeedsCompaction() bool {
	x.compactMu.RLock()
	defer x.compactMu.RUnlock()
	total, live := x.graph.total.Load(), x.graph.live.Load()
	return total-live > live
}

// Compact rebuilds the graph from live entries when NeedsCompaction holds and prunes
// tombstones older than the retention window. It blocks mutations while it runs.
func (x *HNSWIndex) Compact() error {
	if err := x.pruneTombstones(); err != nil {
		return err
	}
	if !x.NeedsCompaction() {
		return nil
	}
	x.compactMu.Lock()
	defer x.compactMu.Unlock()

	type liveNode struct {
		id   uint32
		node *hnswNode
	}
	var nodes []liveNode
	x.graph.scan(func(n *hnswNode) { nodes = append(nodes, liveNode{id: n.id, node: n}) })
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })

	rebuilt := newHNSWGraph(x.params)
	replaced := make(map[*hnswNode]*hnswNode, len(nodes))
	for _, ln := range nodes {
		replaced[ln.node] = rebuilt.insert(ln.node.key, ln.node.vec, ln.node.metadata())
	}
	for i := range x.shards {
		s := &x.shards[i]
		s.mu.Lock()
		for _, r := range s.records {
			if r.node != nil {
				r.node = replaced[r.node]
			}
		}
		s.mu.Unlock()
	}
	x.graph = rebuilt
	return nil
}

func (x *HNSWIndex) pruneTombstones() error {
	cutoff := x.now().Add(-x.tombstoneRetention)
	for i := range x.shards {
		s := &x.shards[i]
		s.mu.Lock()
		var expired []string
		for id, r := range s.records {
			if r.node == nil && r.removedAt.Before(cutoff) {
				expired = append(expired, id)
			}
		}
		if len(expired) > 0 && x.store != nil {
			if err := x.store.dropTombstones(expired); err != nil {
				s.mu.Unlock()
				return err
			}
		}
		for _, id := range expired {
			delete(s.records, id)
		}
		s.mu.Unlock()
	}
	return nil
}

// restore installs a persisted entry or tombstone without consulting the persister.
func (x *HNSWIndex) restore(e Entry, tombstone bool, removedAt time.Time) error {
	s := x.shardFor(e.ItemID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if tombstone {
		s.records[e.ItemID] = &record{version: e.Version, removedAt: removedAt}
		return nil
	}
	if err := checkDimension(e.Vector, x.params.Dimension); err != nil {
		return err
	}
	unit, err := normalize(e.Vector)
	if err != nil {
		return err
	}
	n := x.graph.insert(e.ItemID, unit, e.Metadata)
	s.records[e.ItemID] = &record{node: n, raw: e.Vector, version: e.Version}
	return nil
}

func (x *HNSWIndex) tags(operation string) []string {
	return metric.BuildTag(
		metric.NewTag(metric.TagBackend, x.backend),
		metric.NewTag(metric.TagOperation, operation),
	)
}

func (x *HNSWIndex) Close() error {
	return nil
}
