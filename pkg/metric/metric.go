package metric

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ApiRequestCount   = "api_request_count"
	ApiRequestLatency = "api_request_latency"

	EventPublished       = "event_published"
	EventPublishFailed   = "event_publish_failed"
	EventProcessed       = "event_processed"
	EventProcessLatency  = "event_process_latency"
	EventDeadLettered    = "event_dead_lettered"
	EventStale           = "event_stale"
	DispatcherClaimError = "dispatcher_claim_error"
	DispatcherAckError   = "dispatcher_ack_error"
	DispatcherProcessErr = "dispatcher_process_error"
	DispatcherBatchSize  = "dispatcher_batch_size"
	VectorQueryLatency   = "vector_query_latency"
	VectorMutationCount  = "vector_mutation_count"
	EmbeddingLatency     = "embedding_latency"
	QueryCacheHit        = "query_cache_hit"
	QueryCacheMiss       = "query_cache_miss"

	ExternalApiRequestCount    = "external_api_request_count"
	ExternalApiRequestLatency  = "external_api_request_latency"
	CircuitBreakerStateChanged = "circuit_breaker_state_changed"
)

var (
	// it is safe to use one client from multiple goroutines simultaneously
	statsDClient statsd.ClientInterface = &statsd.NoOpClient{}
	// by default full sampling
	samplingRate    = 1.0
	telegrafAddress = "localhost:8125"
	appName         = ""
	initialized     = false
	once            sync.Once
)

// Init initializes the metrics client. Until it is called every metric is dropped.
func Init() {
	if initialized {
		log.Debug().Msgf("Metrics already initialized!")
		return
	}
	once.Do(func() {
		if viper.IsSet("APP_METRIC_SAMPLING_RATE") {
			samplingRate = viper.GetFloat64("APP_METRIC_SAMPLING_RATE")
		}
		if viper.IsSet("TELEGRAF_ADDRESS") {
			telegrafAddress = viper.GetString("TELEGRAF_ADDRESS")
		}
		appName = viper.GetString("APP_NAME")
		globalTags := getGlobalTags()

		client, err := statsd.New(
			telegrafAddress,
			statsd.WithTags(globalTags),
		)
		if err != nil {
			log.Panic().Err(err).Msg("StatsD client initialization failed")
		}
		statsDClient = client
		log.Info().Msgf("Metrics client initialized with telegraf address - %s, global tags - %v, and "+
			"sampling rate - %f", telegrafAddress, globalTags, samplingRate)
		initialized = true
	})
}

func getGlobalTags() []string {
	env := viper.GetString("APP_ENV")
	if len(env) == 0 {
		log.Warn().Msg("APP_ENV is not set")
	}
	service := viper.GetString("APP_NAME")
	if len(service) == 0 {
		log.Warn().Msg("APP_NAME is not set")
	}
	return []string{
		TagAsString(TagEnv, env),
		TagAsString(TagService, service),
	}
}

// Timing sends timing information
func Timing(name string, value time.Duration, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Timing(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

// TimingWithStart is a handy func when we want to measure latency of a function
// Can be used as 'defer metric.TimingWithStart("metric_name", time.Now(), []string{})' at the start of the function
func TimingWithStart(name string, startTime time.Time, tags []string) {
	Timing(name, time.Since(startTime), tags)
}

// Count Increases metric counter by value
func Count(name string, value int64, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Count(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd count")
	}
}

// Incr Increases metric counter by 1
func Incr(name string, tags []string) {
	Count(name, 1, tags)
}

func Gauge(name string, value float64, tags []string) {
	tags = append(tags, TagAsString(TagService, appName))
	if err := statsDClient.Gauge(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd gauge")
	}
}
