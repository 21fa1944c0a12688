package similar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/embedding"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/distributedcache"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/inmemorycache"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/rs/zerolog/log"
)

type RequestType string

const (
	RequestTypeItem   RequestType = "item"
	RequestTypeVector RequestType = "vector"
	RequestTypeText   RequestType = "text"
)

// Querier answers similarity queries against the live index.
type Querier interface {
	SimilarTo(ctx context.Context, itemID string, p Params) ([]vector.SimilarCandidate, error)
	SimilarToVector(ctx context.Context, vec []float32, p Params) ([]vector.SimilarCandidate, error)
	SimilarToText(ctx context.Context, text string, p Params) ([]vector.SimilarCandidate, error)
}

var _ Querier = (*Service)(nil)

type Service struct {
	cfg      Config
	db       vector.Database
	provider embedding.Provider
	// cache and distributedCache are nil when their level is disabled
	cache            inmemorycache.Database
	distributedCache distributedcache.Database
}

type Option func(*Service)

// WithDistributedCache adds a shared cache consulted after the in-process one.
func WithDistributedCache(db distributedcache.Database) Option {
	return func(s *Service) {
		s.distributedCache = db
	}
}

func NewService(cfg Config, db vector.Database, provider embedding.Provider, cache inmemorycache.Database, opts ...Option) *Service {
	s := &Service{cfg: cfg.withDefaults(), db: db, provider: provider, cache: cache}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.CacheTTLSeconds <= 0 {
		s.cache = nil
	}
	if s.cfg.DistributedCacheTTLSeconds <= 0 {
		s.distributedCache = nil
	}
	return s
}

func getTags(requestType RequestType) []string {
	return metric.BuildTag(metric.NewTag("request_type", string(requestType)))
}

// SimilarTo ranks items against the stored vector of itemID, excluding itemID itself.
func (s *Service) SimilarTo(ctx context.Context, itemID string, p Params) ([]vector.SimilarCandidate, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrInvalidRequest)
	}
	q, err := s.resolveParams(p)
	if err != nil {
		return nil, err
	}
	tags := getTags(RequestTypeItem)
	key := buildCacheKey(SimilarItem, itemID, q)
	if results, ok := s.cacheGet(ctx, key, tags); ok {
		return results, nil
	}

	entry, err := s.db.Get(ctx, itemID)
	if errors.Is(err, vector.ErrNotFound) {
		metric.Incr("similar_item_not_indexed", tags)
		return nil, fmt.Errorf("%w: %s", ErrItemNotIndexed, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("load vector for %s: %w", itemID, err)
	}
	results, err := s.query(ctx, entry.Vector, q, itemID, tags)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, results, tags)
	return results, nil
}

// SimilarToVector queries with a caller-supplied vector of the index dimension.
func (s *Service) SimilarToVector(ctx context.Context, vec []float32, p Params) ([]vector.SimilarCandidate, error) {
	if len(vec) != s.db.Dimension() {
		return nil, fmt.Errorf("%w: vector has %d dimensions, index has %d", ErrInvalidRequest, len(vec), s.db.Dimension())
	}
	q, err := s.resolveParams(p)
	if err != nil {
		return nil, err
	}
	tags := getTags(RequestTypeVector)
	key := buildCacheKey(SimilarVector, getHashForVector(vec), q)
	if results, ok := s.cacheGet(ctx, key, tags); ok {
		return results, nil
	}
	results, err := s.query(ctx, vec, q, "", tags)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, results, tags)
	return results, nil
}

// SimilarToText embeds text with the indexing provider and queries with the result.
func (s *Service) SimilarToText(ctx context.Context, text string, p Params) ([]vector.SimilarCandidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidRequest)
	}
	q, err := s.resolveParams(p)
	if err != nil {
		return nil, err
	}
	tags := getTags(RequestTypeText)
	key := buildCacheKey(SimilarText, getHashForText(text), q)
	if results, ok := s.cacheGet(ctx, key, tags); ok {
		return results, nil
	}
	vec, err := s.provider.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	results, err := s.query(ctx, vec, q, "", tags)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, results, tags)
	return results, nil
}

func (s *Service) query(ctx context.Context, vec []float32, q query, excludeID string, tags []string) ([]vector.SimilarCandidate, error) {
	startTime := time.Now()
	results, err := s.db.Query(ctx, vector.QueryRequest{
		Vector:    vec,
		K:         q.k,
		MinScore:  q.minScore,
		Filter:    q.filter,
		ExcludeID: excludeID,
	})
	if errors.Is(err, vector.ErrDimensionMismatch) || errors.Is(err, vector.ErrInvalidVector) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err != nil {
		log.Error().Err(err).Msg("similarity query failed")
		return nil, fmt.Errorf("query index: %w", err)
	}
	metric.Timing("similar_query_latency", time.Since(startTime), tags)
	if results == nil {
		results = []vector.SimilarCandidate{}
	}
	return results, nil
}

// cacheGet looks in-process first, then in the shared cache, backfilling the in-process
// level on a shared hit. Shared cache errors degrade to a miss.
func (s *Service) cacheGet(ctx context.Context, key string, tags []string) ([]vector.SimilarCandidate, bool) {
	if s.cache != nil {
		if results, ok := s.cache.Get(key, tags); ok {
			return results, true
		}
	}
	if s.distributedCache == nil {
		return nil, false
	}
	results, ok, err := s.distributedCache.Get(ctx, key, tags)
	if err != nil {
		log.Warn().Err(err).Msg("distributed cache lookup failed, querying index")
		return nil, false
	}
	if ok && s.cache != nil {
		s.cache.Set(key, results, s.cfg.CacheTTLSeconds, tags)
	}
	return results, ok
}

func (s *Service) cacheSet(ctx context.Context, key string, results []vector.SimilarCandidate, tags []string) {
	if s.distributedCache != nil {
		if err := s.distributedCache.Set(ctx, key, results, s.cfg.DistributedCacheTTLSeconds, tags); err != nil {
			log.Warn().Err(err).Msg("failed to write distributed cache")
		}
	}
	if s.cache != nil {
		s.cache.Set(key, results, s.cfg.CacheTTLSeconds, tags)
	}
}
