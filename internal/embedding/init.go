package embedding

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/enums"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/circuitbreaker"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/httpclient"
	"golang.org/x/time/rate"
)

// NewProvider builds the provider named by embedding_provider_type.
func NewProvider(cfg *structs.Configs) (Provider, error) {
	switch enums.EmbeddingProviderType(cfg.EmbeddingProviderType) {
	case enums.EmbeddingHashing:
		p, err := NewHashingProvider(cfg.VectorDimension)
		if err != nil {
			return nil, err
		}
		return p, nil
	case enums.EmbeddingRemote:
		if cfg.EmbeddingURL == "" {
			return nil, fmt.Errorf("embedding_url is required for provider %s", cfg.EmbeddingProviderType)
		}
		client := httpclient.NewConnFromConfig(&httpclient.Config{
			Name:     "embedding",
			Endpoint: cfg.EmbeddingURL,
			Timeout:  cfg.EmbeddingTimeout,
			CBConfig: &circuitbreaker.Config{
				Name:             "embedding",
				FailureThreshold: cfg.EmbeddingCbFailureThreshold,
				Delay:            cfg.EmbeddingCbDelay,
			},
		})
		var limiter *rate.Limiter
		if cfg.EmbeddingRateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), max(cfg.EmbeddingRateBurst, 1))
		}
		return NewRemoteProvider(client, limiter, cfg.VectorDimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider type %q", cfg.EmbeddingProviderType)
	}
}
