package eventlog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryLog is a process-local Log with the same claim and reclaim semantics as the
// Redis backend. Nothing survives a restart.
type MemoryLog struct {
	mu         sync.Mutex
	partitions int
	minIdle    time.Duration
	maxLen     int64
	now        func() time.Time
	streams    map[string]*memStream
	notify     chan struct{}
	closed     bool
}

type memStream struct {
	lastSeq uint64
	entries []memEntry
	groups  map[string]*memGroup
}

type memEntry struct {
	seq    uint64
	values map[string]interface{}
}

type memGroup struct {
	lastDelivered uint64
	pending       map[uint64]*pendingEntry
}

type pendingEntry struct {
	consumer  string
	claimedAt time.Time
}

type MemoryOption func(*MemoryLog)

// WithClock overrides the clock used to measure pending idle time.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLog) { l.now = now }
}

func NewMemoryLog(partitions int, pendingTimeout time.Duration, maxLen int64, opts ...MemoryOption) *MemoryLog {
	if partitions < 1 {
		partitions = 1
	}
	l := &MemoryLog{
		partitions: partitions,
		minIdle:    pendingTimeout,
		maxLen:     maxLen,
		now:        time.Now,
		streams:    make(map[string]*memStream),
		notify:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLog) streamLocked(physical string) *memStream {
	s, ok := l.streams[physical]
	if !ok {
		s = &memStream{groups: make(map[string]*memGroup)}
		l.streams[physical] = s
	}
	return s
}

func (l *MemoryLog) CreateGroup(_ context.Context, stream, group, start string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogUnavailable
	}
	for _, physical := range partitionStreams(stream, l.partitions) {
		s := l.streamLocked(physical)
		if _, ok := s.groups[group]; ok {
			continue
		}
		g := &memGroup{pending: make(map[uint64]*pendingEntry)}
		if start == StartLatest {
			g.lastDelivered = s.lastSeq
		}
		s.groups[group] = g
	}
	return nil
}

func (l *MemoryLog) Append(_ context.Context, stream, partitionKey string, record map[string]interface{}) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", ErrLogUnavailable
	}
	physical := partitionFor(stream, partitionKey, l.partitions)
	s := l.streamLocked(physical)
	s.lastSeq++
	values := make(map[string]interface{}, len(record))
	for k, v := range record {
		values[k] = v
	}
	s.entries = append(s.entries, memEntry{seq: s.lastSeq, values: values})
	if l.maxLen > 0 && int64(len(s.entries)) > l.maxLen {
		s.entries = s.entries[int64(len(s.entries))-l.maxLen:]
	}
	close(l.notify)
	l.notify = make(chan struct{})
	return messageID(physical, entryID(s.lastSeq)), nil
}

func (l *MemoryLog) ReadBatch(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]Message, error) {
	var timeout <-chan time.Time
	if block > 0 {
		timer := time.NewTimer(block)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, ErrLogUnavailable
		}
		msgs, err := l.claimLocked(stream, group, consumer, count)
		wait := l.notify
		l.mu.Unlock()
		if err != nil || len(msgs) > 0 || timeout == nil {
			return msgs, err
		}
		select {
		case <-wait:
		case <-timeout:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *MemoryLog) claimLocked(stream, group, consumer string, count int) ([]Message, error) {
	now := l.now()
	var reclaimed, fresh []Message
	for _, physical := range partitionStreams(stream, l.partitions) {
		s, ok := l.streams[physical]
		if !ok {
			return nil, fmt.Errorf("%w: NOGROUP %s on %s", ErrLogUnavailable, group, physical)
		}
		g, ok := s.groups[group]
		if !ok {
			return nil, fmt.Errorf("%w: NOGROUP %s on %s", ErrLogUnavailable, group, physical)
		}
		reclaimed = append(reclaimed, l.reclaimLocked(physical, s, g, consumer, count, now)...)
	}
	if len(reclaimed) > 0 {
		return reclaimed, nil
	}
	for _, physical := range partitionStreams(stream, l.partitions) {
		s := l.streams[physical]
		g := s.groups[group]
		taken := 0
		for _, e := range s.entries {
			if taken == count {
				break
			}
			if e.seq <= g.lastDelivered {
				continue
			}
			g.lastDelivered = e.seq
			g.pending[e.seq] = &pendingEntry{consumer: consumer, claimedAt: now}
			fresh = append(fresh, Message{ID: messageID(physical, entryID(e.seq)), Stream: physical, Values: e.values})
			taken++
		}
	}
	return fresh, nil
}

// reclaimLocked hands idle pending entries to consumer, oldest first. Entries trimmed
// away by the length cap are dropped from the pending set.
func (l *MemoryLog) reclaimLocked(physical string, s *memStream, g *memGroup, consumer string, count int, now time.Time) []Message {
	seqs := make([]uint64, 0, len(g.pending))
	for seq, p := range g.pending {
		if now.Sub(p.claimedAt) >= l.minIdle {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	var out []Message
	for _, seq := range seqs {
		if len(out) == count {
			break
		}
		values, ok := s.lookup(seq)
		if !ok {
			delete(g.pending, seq)
			continue
		}
		g.pending[seq] = &pendingEntry{consumer: consumer, claimedAt: now}
		out = append(out, Message{ID: messageID(physical, entryID(seq)), Stream: physical, Values: values, Reclaimed: true})
	}
	return out
}

func (s *memStream) lookup(seq uint64) (map[string]interface{}, bool) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].seq >= seq })
	if i < len(s.entries) && s.entries[i].seq == seq {
		return s.entries[i].values, true
	}
	return nil, false
}

func (l *MemoryLog) Ack(_ context.Context, stream, group string, ids ...string) error {
	byStream, err := groupIDsByStream(stream, l.partitions, ids)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogUnavailable
	}
	for physical, entryIDs := range byStream {
		s, ok := l.streams[physical]
		if !ok {
			continue
		}
		g, ok := s.groups[group]
		if !ok {
			continue
		}
		for _, id := range entryIDs {
			seq, err := parseEntryID(id)
			if err != nil {
				return err
			}
			delete(g.pending, seq)
		}
	}
	return nil
}

func (l *MemoryLog) Pending(_ context.Context, stream, group string) (PendingSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	summary := PendingSummary{Consumers: make(map[string]int64)}
	for _, physical := range partitionStreams(stream, l.partitions) {
		s, ok := l.streams[physical]
		if !ok {
			continue
		}
		g, ok := s.groups[group]
		if !ok {
			continue
		}
		for _, p := range g.pending {
			summary.Count++
			summary.Consumers[p.consumer]++
		}
	}
	return summary, nil
}

// Close fails every later call with ErrLogUnavailable and wakes blocked readers.
func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.notify)
	}
	return nil
}

func entryID(seq uint64) string {
	return fmt.Sprintf("%d-0", seq)
}

func parseEntryID(id string) (uint64, error) {
	var seq, sub uint64
	if _, err := fmt.Sscanf(id, "%d-%d", &seq, &sub); err != nil {
		return 0, fmt.Errorf("malformed entry id %q: %w", id, err)
	}
	return seq, nil
}
