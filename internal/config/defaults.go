package config

import "time"

// defaults doubles as the list of keys bound to upper-cased environment variables.
var defaults = map[string]interface{}{
	"app_name":      "catalog-sync",
	"app_env":       "local",
	"app_log_level": "INFO",
	"port":          8080,
	"auth_tokens":   "",

	"otel_exporter_otlp_endpoint": "",
	"otel_traces_sampler_arg":     0.1,
	"profiling_port":              0,

	"redis_addr":     "localhost:6379",
	"redis_password": "",
	"redis_db":       0,

	"event_log_type":    "REDIS",
	"stream_name":       "catalog:updates",
	"stream_partitions": 1,
	"stream_max_len":    0,
	"consumer_group":    "catalog-indexers",
	"consumer_prefix":   "worker",
	"consumer_count":    1,
	"batch_size":        10,
	"block_timeout":     2 * time.Second,
	"pending_timeout":   30 * time.Second,
	"stop_timeout":      5 * time.Second,

	"vector_db_type":       "MEMORY",
	"vector_dimension":     384,
	"hnsw_m":               16,
	"hnsw_ef_construction": 200,
	"hnsw_ef_search":       64,
	"exact_threshold":      1024,
	"tombstone_retention":  24 * time.Hour,
	"compaction_interval":  time.Minute,
	"bolt_path":            "catalog-index.db",
	"qdrant_host":          "",
	"qdrant_port":          6334,
	"qdrant_api_key":       "",
	"qdrant_use_tls":       false,
	"qdrant_collection":    "catalog_items",

	"embedding_provider_type":        "HASHING",
	"embedding_url":                  "",
	"embedding_timeout":              2 * time.Second,
	"embedding_rate_limit":           50.0,
	"embedding_rate_burst":           10,
	"embedding_cb_failure_threshold": uint(5),
	"embedding_cb_delay":             10 * time.Second,

	"dead_letter_type":       "REDIS",
	"dead_letter_stream":     "",
	"dead_letter_kafka_env":  "KAFKA_DEADLETTER",
	"dead_letter_max_length": 100000,

	"similarity_threshold":          0.75,
	"max_k":                         100,
	"query_cache_ttl_seconds":       0,
	"query_cache_size_bytes":        16 * 1024 * 1024,
	"distributed_cache_ttl_seconds": 0,
}
