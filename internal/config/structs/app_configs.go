package structs

import "time"

type AppConfig struct {
	Configs Configs
}

type Configs struct {
	AppName     string `mapstructure:"app_name"`
	AppEnv      string `mapstructure:"app_env"`
	AppLogLevel string `mapstructure:"app_log_level"`
	Port        int    `mapstructure:"port"`

	// AuthTokens is a comma separated allow-list for the /api routes; empty disables auth.
	AuthTokens string `mapstructure:"auth_tokens"`

	OtelEndpoint      string  `mapstructure:"otel_exporter_otlp_endpoint"`
	OtelSamplingRatio float64 `mapstructure:"otel_traces_sampler_arg"`
	ProfilingPort     int     `mapstructure:"profiling_port"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	EventLogType     string        `mapstructure:"event_log_type"`
	StreamName       string        `mapstructure:"stream_name"`
	StreamPartitions int           `mapstructure:"stream_partitions"`
	StreamMaxLen     int64         `mapstructure:"stream_max_len"`
	ConsumerGroup    string        `mapstructure:"consumer_group"`
	ConsumerPrefix   string        `mapstructure:"consumer_prefix"`
	ConsumerCount    int           `mapstructure:"consumer_count"`
	BatchSize        int           `mapstructure:"batch_size"`
	BlockTimeout     time.Duration `mapstructure:"block_timeout"`
	PendingTimeout   time.Duration `mapstructure:"pending_timeout"`
	StopTimeout      time.Duration `mapstructure:"stop_timeout"`

	VectorDbType       string        `mapstructure:"vector_db_type"`
	VectorDimension    int           `mapstructure:"vector_dimension"`
	HnswM              int           `mapstructure:"hnsw_m"`
	HnswEfConstruction int           `mapstructure:"hnsw_ef_construction"`
	HnswEfSearch       int           `mapstructure:"hnsw_ef_search"`
	ExactThreshold     int           `mapstructure:"exact_threshold"`
	TombstoneRetention time.Duration `mapstructure:"tombstone_retention"`
	CompactionInterval time.Duration `mapstructure:"compaction_interval"`
	BoltPath           string        `mapstructure:"bolt_path"`
	QdrantHost         string        `mapstructure:"qdrant_host"`
	QdrantPort         int           `mapstructure:"qdrant_port"`
	QdrantAPIKey       string        `mapstructure:"qdrant_api_key"`
	QdrantUseTLS       bool          `mapstructure:"qdrant_use_tls"`
	QdrantCollection   string        `mapstructure:"qdrant_collection"`

	EmbeddingProviderType       string        `mapstructure:"embedding_provider_type"`
	EmbeddingURL                string        `mapstructure:"embedding_url"`
	EmbeddingTimeout            time.Duration `mapstructure:"embedding_timeout"`
	EmbeddingRateLimit          float64       `mapstructure:"embedding_rate_limit"`
	EmbeddingRateBurst          int           `mapstructure:"embedding_rate_burst"`
	EmbeddingCbFailureThreshold uint          `mapstructure:"embedding_cb_failure_threshold"`
	EmbeddingCbDelay            time.Duration `mapstructure:"embedding_cb_delay"`

	DeadLetterType      string `mapstructure:"dead_letter_type"`
	DeadLetterStream    string `mapstructure:"dead_letter_stream"`
	DeadLetterKafkaEnv  string `mapstructure:"dead_letter_kafka_env"`
	DeadLetterMaxLength int64  `mapstructure:"dead_letter_max_length"`

	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxK                int     `mapstructure:"max_k"`
	QueryCacheTTL       int     `mapstructure:"query_cache_ttl_seconds"`
	QueryCacheSizeBytes int     `mapstructure:"query_cache_size_bytes"`
	DistributedCacheTTL int     `mapstructure:"distributed_cache_ttl_seconds"`
}
