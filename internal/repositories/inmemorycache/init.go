package inmemorycache

import "github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"

// NewRepository returns nil when the result cache is disabled by a zero TTL.
func NewRepository(cfg *structs.Configs) (Database, error) {
	if cfg.QueryCacheTTL <= 0 {
		return nil, nil
	}
	cache, err := NewFreeCache(cfg.QueryCacheSizeBytes)
	if err != nil {
		return nil, err
	}
	return cache, nil
}
