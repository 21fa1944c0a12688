package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const pingTimeout = 5 * time.Second

// NewRedisClient connects to redis_addr and fails fast when the server does not answer.
func NewRedisClient(ctx context.Context, cfg *structs.Configs) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis_addr is not set")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", cfg.RedisAddr, err)
	}
	log.Info().Msgf("connected to redis at %s db %d", cfg.RedisAddr, cfg.RedisDB)
	return client, nil
}
