package inmemorycache

import "github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"

// Database caches similarity results by an opaque key for a bounded number of seconds.
type Database interface {
	Get(key string, metricTags []string) ([]vector.SimilarCandidate, bool)
	Set(key string, results []vector.SimilarCandidate, ttlSeconds int, metricTags []string)
	Close()
}
