package vector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/enums"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const qdrantTimeout = 5 * time.Second

func paramsFrom(cfg *structs.Configs) HNSWParams {
	return HNSWParams{
		Dimension:      cfg.VectorDimension,
		M:              cfg.HnswM,
		EfConstruction: cfg.HnswEfConstruction,
		EfSearch:       cfg.HnswEfSearch,
		ExactThreshold: cfg.ExactThreshold,
	}
}

// NewRepository builds the index named by vector_db_type. QDRANT takes its item locks
// from client so that every process writing the collection agrees on one version order.
func NewRepository(ctx context.Context, cfg *structs.Configs, client redis.UniversalClient) (Database, error) {
	retention := WithTombstoneRetention(cfg.TombstoneRetention)
	switch enums.VectorDbType(cfg.VectorDbType) {
	case enums.MEMORY:
		log.Info().Msgf("in-memory index with dimension %d", cfg.VectorDimension)
		return NewHNSWIndex(paramsFrom(cfg), retention), nil
	case enums.BOLT:
		idx, err := OpenBoltIndex(cfg.BoltPath, paramsFrom(cfg), retention)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case enums.QDRANT:
		if client == nil {
			return nil, errors.New("QDRANT needs a redis client for item locks")
		}
		idx, err := NewQdrantIndex(ctx, QdrantConfig{
			Host:        cfg.QdrantHost,
			Port:        cfg.QdrantPort,
			APIKey:      cfg.QdrantAPIKey,
			UseTLS:      cfg.QdrantUseTLS,
			Collection:  cfg.QdrantCollection,
			Dimension:   cfg.VectorDimension,
			M:           cfg.HnswM,
			EfConstruct: cfg.HnswEfConstruction,
			Timeout:     qdrantTimeout,
			Locker:      NewRedisLocker(client, cfg.AppName, 2*qdrantTimeout),
		}, cfg.TombstoneRetention)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown vector db type %q", cfg.VectorDbType)
	}
}
