package distributedcache

import (
	"context"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
)

// Database is the result cache shared by every serving replica. Errors are returned so
// callers can count them, but a failed lookup is always safe to treat as a miss.
type Database interface {
	Get(ctx context.Context, key string, metricTags []string) ([]vector.SimilarCandidate, bool, error)
	Set(ctx context.Context, key string, results []vector.SimilarCandidate, ttlSeconds int, metricTags []string) error
}
