package inmemorycache

import (
	"fmt"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/coocood/freecache"
	"github.com/rs/zerolog/log"
)

const (
	metricUpdateInterval = 1 * time.Minute
	infiniteExpiry       = -1
	// freecache refuses anything smaller
	minSizeInBytes = 512 * 1024
)

type V1 struct {
	cacheName   string
	sizeInBytes int
	inMemCache  *freecache.Cache
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewV1 builds a freecache-backed cache and starts its metric publisher. Close stops it.
func NewV1(cacheName string, sizeInBytes int) (*V1, error) {
	if cacheName == "" {
		return nil, fmt.Errorf("cache name is required")
	}
	if sizeInBytes <= 0 {
		return nil, fmt.Errorf("invalid cache size: %d bytes", sizeInBytes)
	}
	if sizeInBytes < minSizeInBytes {
		log.Warn().Msgf("cache %s size %d is below the minimum, using %d", cacheName, sizeInBytes, minSizeInBytes)
		sizeInBytes = minSizeInBytes
	}
	v1 := &V1{
		cacheName:   cacheName,
		sizeInBytes: sizeInBytes,
		inMemCache:  freecache.NewCache(sizeInBytes),
		stop:        make(chan struct{}),
	}
	go v1.publishMetric()
	return v1, nil
}

func (imc *V1) SizeInBytes() int {
	return imc.sizeInBytes
}

func (imc *V1) Get(key []byte) ([]byte, error) {
	return imc.inMemCache.Get(key)
}

func (imc *V1) Set(key, value []byte) error {
	return imc.inMemCache.Set(key, value, infiniteExpiry)
}

func (imc *V1) SetEx(key, value []byte, expiryInSec int) error {
	return imc.inMemCache.Set(key, value, expiryInSec)
}

func (imc *V1) Delete(key []byte) bool {
	return imc.inMemCache.Del(key)
}

func (imc *V1) Close() {
	imc.stopOnce.Do(func() { close(imc.stop) })
}

// publishMetric publishes the in-memory-cache metrics every metricUpdateInterval until Close
func (imc *V1) publishMetric() {
	ticker := time.NewTicker(metricUpdateInterval)
	cacheMetricTags := metric.BuildTag(metric.NewTag("cache_name", imc.cacheName))
	defer ticker.Stop()
	for {
		select {
		case <-imc.stop:
			return
		case <-ticker.C:
			metric.Gauge(HitRate, imc.inMemCache.HitRate(), cacheMetricTags)
			metric.Gauge(ItemCount, float64(imc.inMemCache.EntryCount()), cacheMetricTags)
			metric.Gauge(EvacuateCount, float64(imc.inMemCache.EvacuateCount()), cacheMetricTags)
			metric.Gauge(ExpiryCount, float64(imc.inMemCache.ExpiredCount()), cacheMetricTags)
		}
	}
}
