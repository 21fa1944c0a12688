package vector

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidVector     = errors.New("invalid vector")
	ErrNotFound          = errors.New("item not found in index")
	// ErrStaleMutation reports a mutation older than what the index already holds for the
	// item. Nothing was changed; callers treat it as applied.
	ErrStaleMutation = errors.New("stale mutation ignored")
)

// Database is a similarity index keyed by item id. Mutations of one key are serialised
// and ordered by Entry.Version; mutations of different keys proceed independently.
type Database interface {
	Upsert(ctx context.Context, entry Entry) error
	// Remove is idempotent and leaves a tombstone so older upserts cannot resurrect the item.
	Remove(ctx context.Context, itemID string, version time.Time) error
	Get(ctx context.Context, itemID string) (Entry, error)
	// Query returns at most K results ordered by descending score, then ascending item id.
	Query(ctx context.Context, req QueryRequest) ([]SimilarCandidate, error)
	Len() int
	Dimension() int
	Close() error
}

// Compactor is implemented by backends that need periodic housekeeping.
type Compactor interface {
	Compact() error
}
