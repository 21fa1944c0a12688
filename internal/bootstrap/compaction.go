package bootstrap

import (
	"context"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/rs/zerolog/log"
)

const indexSizeMetric = "vector_index_size"

// RunIndexMaintenance publishes the live index size every interval and compacts indexes
// that need housekeeping, until ctx is done.
func RunIndexMaintenance(ctx context.Context, index vector.Database, interval time.Duration) {
	if interval <= 0 {
		return
	}
	compactor, compactable := index.(vector.Compactor)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metric.Gauge(indexSizeMetric, float64(index.Len()), nil)
			if !compactable {
				continue
			}
			start := time.Now()
			if err := compactor.Compact(); err != nil {
				log.Error().Err(err).Msg("index compaction failed")
				continue
			}
			log.Debug().Msgf("index compaction took %s", time.Since(start))
		}
	}
}
