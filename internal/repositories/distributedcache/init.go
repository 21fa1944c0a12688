package distributedcache

import (
	"errors"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/redis/go-redis/v9"
)

// NewRepository returns nil when the shared cache is disabled by a zero TTL.
func NewRepository(cfg *structs.Configs, client redis.UniversalClient) (Database, error) {
	if cfg.DistributedCacheTTL <= 0 {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("distributed cache needs a redis client")
	}
	return NewRedisCache(client, cfg.AppName), nil
}
