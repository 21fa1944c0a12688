package config

import (
	"errors"
	"fmt"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/enums"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
)

var ErrInvalidConfig = errors.New("invalid config")

// Validate reports every problem at once; startup aborts on any of them.
func Validate(cfg *structs.Configs) error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(cfg.AppName != "", "app_name is empty")
	check(cfg.Port > 0, "port must be positive, got %d", cfg.Port)

	check(enums.EventLogType(cfg.EventLogType).Valid(), "unknown event_log_type %q", cfg.EventLogType)
	check(cfg.StreamName != "", "stream_name is empty")
	check(cfg.StreamPartitions > 0, "stream_partitions must be positive, got %d", cfg.StreamPartitions)
	check(cfg.ConsumerGroup != "", "consumer_group is empty")
	check(cfg.ConsumerCount > 0, "consumer_count must be positive, got %d", cfg.ConsumerCount)
	check(cfg.BatchSize > 0, "batch_size must be positive, got %d", cfg.BatchSize)
	check(cfg.BlockTimeout > 0, "block_timeout must be positive")
	check(cfg.PendingTimeout > cfg.BlockTimeout, "pending_timeout (%s) must exceed block_timeout (%s)", cfg.PendingTimeout, cfg.BlockTimeout)
	check(cfg.StopTimeout > 0, "stop_timeout must be positive")
	if cfg.EventLogType == string(enums.EventLogRedis) || cfg.DeadLetterType == string(enums.DeadLetterRedis) || cfg.DistributedCacheTTL > 0 {
		check(cfg.RedisAddr != "", "redis_addr is required for redis backends")
	}
	// QDRANT writers coordinate their per-item version check through redis locks
	if cfg.VectorDbType == string(enums.QDRANT) {
		check(cfg.RedisAddr != "", "redis_addr is required for QDRANT item locks")
	}

	check(enums.VectorDbType(cfg.VectorDbType).Valid(), "unknown vector_db_type %q", cfg.VectorDbType)
	check(cfg.VectorDimension > 0, "vector_dimension must be positive, got %d", cfg.VectorDimension)
	check(cfg.HnswM >= 2, "hnsw_m must be at least 2, got %d", cfg.HnswM)
	check(cfg.HnswEfConstruction > 0 && cfg.HnswEfSearch > 0, "hnsw ef values must be positive")
	check(cfg.TombstoneRetention > 0, "tombstone_retention must be positive")
	switch enums.VectorDbType(cfg.VectorDbType) {
	case enums.BOLT:
		check(cfg.BoltPath != "", "bolt_path is required for BOLT")
	case enums.QDRANT:
		check(cfg.QdrantHost != "", "qdrant_host is required for QDRANT")
		check(cfg.QdrantCollection != "", "qdrant_collection is required for QDRANT")
	}

	check(enums.EmbeddingProviderType(cfg.EmbeddingProviderType).Valid(), "unknown embedding_provider_type %q", cfg.EmbeddingProviderType)
	if enums.EmbeddingProviderType(cfg.EmbeddingProviderType) == enums.EmbeddingRemote {
		check(cfg.EmbeddingURL != "", "embedding_url is required for REMOTE")
		check(cfg.EmbeddingRateLimit > 0, "embedding_rate_limit must be positive")
	}

	check(enums.DeadLetterType(cfg.DeadLetterType).Valid(), "unknown dead_letter_type %q", cfg.DeadLetterType)
	check(cfg.SimilarityThreshold >= -1 && cfg.SimilarityThreshold <= 1, "similarity_threshold must be within [-1,1]")
	check(cfg.MaxK > 0, "max_k must be positive")
	check(cfg.QueryCacheTTL >= 0, "query_cache_ttl_seconds must not be negative")
	check(cfg.DistributedCacheTTL >= 0, "distributed_cache_ttl_seconds must not be negative")

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// DeadLetterStream falls back to "<stream>:deadletter".
func DeadLetterStream(cfg *structs.Configs) string {
	if cfg.DeadLetterStream != "" {
		return cfg.DeadLetterStream
	}
	return cfg.StreamName + ":deadletter"
}
