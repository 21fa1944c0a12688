package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/enums"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/dispatcher"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/embedding"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/producer"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/deadletter"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/distributedcache"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/inmemorycache"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/serving/handlers/similar"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/infra"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/logger"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/tracing"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrIndexNotShared is returned when a serving-only process is configured with an index
// that lives inside another process.
var ErrIndexNotShared = errors.New("vector_db_type is not shareable across processes")

// Init loads the configuration and brings up logging, metrics and tracing.
func Init(ctx context.Context) (*structs.Configs, error) {
	appConfig, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg := &appConfig.Configs
	logger.InitLogger(cfg.AppName, cfg.AppLogLevel)
	metric.Init()
	if err := tracing.Init(ctx, tracing.Config{
		ServiceName:   cfg.AppName,
		Endpoint:      cfg.OtelEndpoint,
		SamplingRatio: cfg.OtelSamplingRatio,
	}); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	return cfg, nil
}

// App holds every long-lived dependency of a process. Fields that the process role does
// not need are nil.
type App struct {
	Config    *structs.Configs
	Redis     redis.UniversalClient
	EventLog  eventlog.Log
	Index     vector.Database
	Provider  embedding.Provider
	Cache     inmemorycache.Database
	Shared    distributedcache.Database
	Producer  *producer.Producer
	Similar   *similar.Service
	Sink      deadletter.Sink
	Pool      *dispatcher.Pool
	closeFunc []func() error
}

func needsRedis(cfg *structs.Configs, withSink bool) bool {
	return enums.EventLogType(cfg.EventLogType) == enums.EventLogRedis ||
		enums.VectorDbType(cfg.VectorDbType) == enums.QDRANT ||
		cfg.DistributedCacheTTL > 0 ||
		(withSink && enums.DeadLetterType(cfg.DeadLetterType) == enums.DeadLetterRedis)
}

// NewServing wires the query and publish paths. The index must be shared because this
// process never consumes the log itself.
func NewServing(ctx context.Context, cfg *structs.Configs) (*App, error) {
	if !enums.VectorDbType(cfg.VectorDbType).Shared() {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotShared, cfg.VectorDbType)
	}
	return newApp(ctx, cfg, false)
}

// NewConsumers wires the serving paths plus the dispatcher pool that feeds the index.
func NewConsumers(ctx context.Context, cfg *structs.Configs) (*App, error) {
	return newApp(ctx, cfg, true)
}

func newApp(ctx context.Context, cfg *structs.Configs, consume bool) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	if needsRedis(cfg, consume) {
		if app.Redis, err = infra.NewRedisClient(ctx, cfg); err != nil {
			return app, err
		}
		app.onClose(app.Redis.Close)
	}
	if app.EventLog, err = eventlog.NewRepository(cfg, app.Redis); err != nil {
		return app, err
	}
	app.onClose(app.EventLog.Close)

	if app.Provider, err = embedding.NewProvider(cfg); err != nil {
		return app, err
	}
	if app.Index, err = vector.NewRepository(ctx, cfg, app.Redis); err != nil {
		return app, err
	}
	app.onClose(app.Index.Close)
	if err = checkDimensions(app.Provider, app.Index); err != nil {
		return app, err
	}

	if app.Cache, err = inmemorycache.NewRepository(cfg); err != nil {
		return app, err
	}
	if app.Cache != nil {
		cache := app.Cache
		app.onClose(func() error { cache.Close(); return nil })
	}
	if app.Shared, err = distributedcache.NewRepository(cfg, app.Redis); err != nil {
		return app, err
	}
	app.Producer = producer.NewProducer(app.EventLog, cfg.StreamName)
	app.Similar = similar.NewService(similar.Config{
		MaxK:                       cfg.MaxK,
		SimilarityThreshold:        cfg.SimilarityThreshold,
		CacheTTLSeconds:            cfg.QueryCacheTTL,
		DistributedCacheTTLSeconds: cfg.DistributedCacheTTL,
	}, app.Index, app.Provider, app.Cache, similar.WithDistributedCache(app.Shared))

	if !consume {
		return app, nil
	}
	if app.Sink, err = deadletter.NewSink(cfg, app.Redis); err != nil {
		return app, err
	}
	app.onClose(app.Sink.Close)
	app.Pool = dispatcher.NewPool(dispatcher.PoolConfig{
		Config: dispatcher.Config{
			Stream:    cfg.StreamName,
			Group:     cfg.ConsumerGroup,
			BatchSize: cfg.BatchSize,
			Block:     cfg.BlockTimeout,
		},
		ConsumerPrefix: cfg.ConsumerPrefix,
		ConsumerCount:  cfg.ConsumerCount,
	}, app.EventLog, indexer.NewCatalogIndexer(app.Provider, app.Index), app.Sink)
	return app, nil
}

// checkDimensions refuses to start when the provider would produce vectors the index rejects.
func checkDimensions(provider embedding.Provider, index vector.Database) error {
	if provider.Dimension() != index.Dimension() {
		return fmt.Errorf("%w: embedding provider produces %d dimensions, index expects %d",
			vector.ErrDimensionMismatch, provider.Dimension(), index.Dimension())
	}
	return nil
}

func (a *App) onClose(fn func() error) {
	a.closeFunc = append(a.closeFunc, fn)
}

// Close releases dependencies in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closeFunc) - 1; i >= 0; i-- {
		if err := a.closeFunc[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closeFunc = nil
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("errors while closing dependencies")
		return err
	}
	return nil
}
