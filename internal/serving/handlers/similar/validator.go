package similar

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
)

type query struct {
	k        int
	minScore float32
	filter   *vector.Filter
}

// resolveParams applies defaults and caps, rejecting values no query could satisfy.
func (s *Service) resolveParams(p Params) (query, error) {
	q := query{k: p.K, minScore: float32(s.cfg.SimilarityThreshold), filter: p.Filter}
	if q.k < 0 {
		return query{}, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidRequest, p.K)
	}
	if q.k == 0 {
		q.k = s.cfg.DefaultK
	}
	if q.k > s.cfg.MaxK {
		q.k = s.cfg.MaxK
	}
	if p.MinScore != nil {
		if *p.MinScore < -1 || *p.MinScore > 1 {
			return query{}, fmt.Errorf("%w: min_score must be within [-1, 1], got %v", ErrInvalidRequest, *p.MinScore)
		}
		q.minScore = float32(*p.MinScore)
	}
	if f := p.Filter; f != nil && f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return query{}, fmt.Errorf("%w: price_min %v exceeds price_max %v", ErrInvalidRequest, *f.PriceMin, *f.PriceMax)
	}
	if q.filter.Empty() {
		q.filter = nil
	}
	return q, nil
}
