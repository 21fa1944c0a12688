package distributedcache

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	jitterPercent = 10

	distributedCacheHit     = "distributed_cache_hit"
	distributedCacheMiss    = "distributed_cache_miss"
	distributedCacheFailure = "distributed_cache_failure"
	distributedCacheCorrupt = "distributed_cache_corrupt"
	distributedCacheGetLat  = "distributed_cache_get_latency"
	distributedCacheSet     = "distributed_cache_set"
	distributedCacheSetLat  = "distributed_cache_set_latency"
)

type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache stores entries under "<namespace>:rc:<key>" so several applications can
// share one Redis.
func NewRedisCache(client redis.UniversalClient, namespace string) *RedisCache {
	return &RedisCache{client: client, prefix: namespace + ":rc:"}
}

func (r *RedisCache) Get(ctx context.Context, key string, tags []string) ([]vector.SimilarCandidate, bool, error) {
	defer metric.TimingWithStart(distributedCacheGetLat, time.Now(), tags)
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metric.Incr(distributedCacheMiss, tags)
		return nil, false, nil
	}
	if err != nil {
		metric.Incr(distributedCacheFailure, tags)
		return nil, false, err
	}
	var results []vector.SimilarCandidate
	if err := json.Unmarshal(raw, &results); err != nil {
		metric.Incr(distributedCacheCorrupt, tags)
		log.Warn().Err(err).Msgf("dropping undecodable distributed cache entry %s", key)
		r.client.Del(ctx, r.prefix+key)
		return nil, false, nil
	}
	metric.Incr(distributedCacheHit, tags)
	return results, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, results []vector.SimilarCandidate, ttlSeconds int, tags []string) error {
	if ttlSeconds <= 0 {
		return nil
	}
	defer metric.TimingWithStart(distributedCacheSetLat, time.Now(), tags)
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	ttl := time.Duration(getFinalTTLWithJitter(ttlSeconds)) * time.Second
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		metric.Incr(distributedCacheFailure, tags)
		return err
	}
	metric.Incr(distributedCacheSet, tags)
	return nil
}

// getFinalTTLWithJitter spreads expiries by up to 10% either way so entries written
// together do not all expire together.
func getFinalTTLWithJitter(ttl int) int {
	jitterRange := ttl * jitterPercent / 100
	jitter := rand.Intn(2*jitterRange+1) - jitterRange
	finalTTL := ttl + jitter
	if finalTTL < 1 {
		finalTTL = ttl
	}
	return finalTTL
}
