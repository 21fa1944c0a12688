package inmemorycache

import (
	"encoding/json"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/inmemorycache"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/rs/zerolog/log"
)

const cacheName = "similar_results"

type FreeCache struct {
	cache inmemorycache.InMemoryCache
}

func NewFreeCache(sizeInBytes int) (*FreeCache, error) {
	cache, err := inmemorycache.NewV1(cacheName, sizeInBytes)
	if err != nil {
		return nil, err
	}
	return &FreeCache{cache: cache}, nil
}

func (f *FreeCache) Get(key string, metricTags []string) ([]vector.SimilarCandidate, bool) {
	defer metric.TimingWithStart("in_memory_cache_get_latency", time.Now(), metricTags)
	raw, err := f.cache.Get([]byte(key))
	if err != nil {
		metric.Incr(metric.QueryCacheMiss, metricTags)
		return nil, false
	}
	var results []vector.SimilarCandidate
	if err := json.Unmarshal(raw, &results); err != nil {
		log.Warn().Err(err).Msgf("dropping undecodable cache entry %s", key)
		f.cache.Delete([]byte(key))
		metric.Incr(metric.QueryCacheMiss, metricTags)
		return nil, false
	}
	metric.Incr(metric.QueryCacheHit, metricTags)
	return results, true
}

func (f *FreeCache) Set(key string, results []vector.SimilarCandidate, ttlSeconds int, metricTags []string) {
	raw, err := json.Marshal(results)
	if err != nil {
		log.Warn().Err(err).Msgf("failed to encode cache entry %s", key)
		return
	}
	if err := f.cache.SetEx([]byte(key), raw, ttlSeconds); err != nil {
		// entries larger than a freecache segment are rejected
		log.Debug().Err(err).Msgf("cache set skipped for %s", key)
		return
	}
	metric.Incr("in_memory_cache_set", metricTags)
}

func (f *FreeCache) Close() {
	f.cache.Close()
}
