package similar

import (
	"errors"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
)

var (
	// ErrItemNotIndexed means the item has no live vector yet. Indexing is asynchronous,
	// so callers may retry later.
	ErrItemNotIndexed = errors.New("item not indexed")
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	DefaultK    = 10
	DefaultMaxK = 100
)

// Params bound a similarity query. A nil MinScore falls back to the configured threshold.
type Params struct {
	K        int
	MinScore *float64
	Filter   *vector.Filter
}

type Config struct {
	DefaultK                   int
	MaxK                       int
	SimilarityThreshold        float64
	CacheTTLSeconds            int
	DistributedCacheTTLSeconds int
}

func (c Config) withDefaults() Config {
	if c.DefaultK <= 0 {
		c.DefaultK = DefaultK
	}
	if c.MaxK <= 0 {
		c.MaxK = DefaultMaxK
	}
	if c.DefaultK > c.MaxK {
		c.DefaultK = c.MaxK
	}
	return c
}
