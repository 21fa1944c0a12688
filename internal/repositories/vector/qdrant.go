package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

// qdrantAPI is the subset of *qdrant.Client used by QdrantIndex.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

type QdrantConfig struct {
	Host        string
	Port        int
	APIKey      string
	UseTLS      bool
	Collection  string
	Dimension   int
	M           int
	EfConstruct int
	Timeout     time.Duration
	// Locker guards the per-item version check; nil only serialises inside this process.
	Locker KeyLocker
}

// QdrantIndex is the managed variant. Tombstones are points flagged deleted=true, so the
// recency check survives restarts. The read-then-write version check runs under the
// configured KeyLocker, which must be shared by every process writing the collection.
type QdrantIndex struct {
	client             qdrantAPI
	collection         string
	dim                int
	timeout            time.Duration
	tombstoneRetention time.Duration
	now                func() time.Time
	locker             KeyLocker
}

func createQdrantClient(cfg QdrantConfig) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"round_robin"}`),
		},
	})
	if err != nil {
		log.Error().Msgf("Could not create qdrant client: %v", err)
		return nil, err
	}
	return client, nil
}

func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, tombstoneRetention time.Duration) (*QdrantIndex, error) {
	client, err := createQdrantClient(cfg)
	if err != nil {
		return nil, err
	}
	q, err := newQdrantIndex(ctx, client, cfg, tombstoneRetention)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

func newQdrantIndex(ctx context.Context, client qdrantAPI, cfg QdrantConfig, tombstoneRetention time.Duration) (*QdrantIndex, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Locker == nil {
		cfg.Locker = newLocalLocker()
	}
	q := &QdrantIndex{
		client:             client,
		collection:         cfg.Collection,
		dim:                cfg.Dimension,
		timeout:            cfg.Timeout,
		tombstoneRetention: tombstoneRetention,
		now:                time.Now,
		locker:             cfg.Locker,
	}
	if err := q.ensureCollection(ctx, cfg); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, cfg QdrantConfig) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	m, ef := uint64(cfg.M), uint64(cfg.EfConstruct)
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{Config: &qdrant.VectorsConfig_Params{Params: &qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}}},
		HnswConfig: &qdrant.HnswConfigDiff{M: &m, EfConstruct: &ef},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	indexes := map[string]qdrant.FieldType{
		fieldCategory:  qdrant.FieldType_FieldTypeKeyword,
		fieldPrice:     qdrant.FieldType_FieldTypeFloat,
		payloadDeleted: qdrant.FieldType_FieldTypeBool,
	}
	for field, fieldType := range indexes {
		if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
		}); err != nil {
			return fmt.Errorf("create field index %s: %w", field, err)
		}
	}
	log.Info().Msgf("qdrant collection %s created with dimension %d", q.collection, q.dim)
	return nil
}

func (q *QdrantIndex) fetch(ctx context.Context, itemID string, withVector bool) (*qdrant.RetrievedPoint, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{pointID(itemID)},
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: withVector}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant get %s: %w", itemID, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return points[0], nil
}

func (q *QdrantIndex) write(ctx context.Context, itemID string, vec []float32, state pointState) error {
	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      pointID(itemID),
			Payload: toPayload(state),
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: vec}}},
		}},
	})
	if err != nil {
		metric.Incr("vector_db_upsert_failure", q.tags("upsert"))
		return fmt.Errorf("qdrant upsert %s: %w", itemID, err)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, e Entry) error {
	if err := checkDimension(e.Vector, q.dim); err != nil {
		return err
	}
	if _, err := normalize(e.Vector); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	unlock, err := q.locker.Lock(ctx, e.ItemID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := q.fetch(ctx, e.ItemID, false)
	if err != nil {
		return err
	}
	if existing != nil {
		s := fromPayload(existing.GetPayload())
		if !upsertWins(s.version, s.deleted, e.Version) {
			return ErrStaleMutation
		}
	}
	if err := q.write(ctx, e.ItemID, e.Vector, pointState{itemID: e.ItemID, meta: e.Metadata, version: e.Version}); err != nil {
		return err
	}
	metric.Incr(metric.VectorMutationCount, q.tags("upsert"))
	return nil
}

func (q *QdrantIndex) Remove(ctx context.Context, itemID string, version time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	unlock, err := q.locker.Lock(ctx, itemID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := q.fetch(ctx, itemID, true)
	if err != nil {
		return err
	}
	// a tombstone still needs a valid vector; reuse the old one when there is one
	vec := make([]float32, q.dim)
	vec[0] = 1
	if existing != nil {
		s := fromPayload(existing.GetPayload())
		if !removeWins(s.version, version) {
			return ErrStaleMutation
		}
		if old := existing.GetVectors().GetVector().GetData(); len(old) == q.dim {
			vec = old
		}
	}
	state := pointState{itemID: itemID, version: version, deleted: true, removedAt: q.now()}
	if err := q.write(ctx, itemID, vec, state); err != nil {
		return err
	}
	metric.Incr(metric.VectorMutationCount, q.tags("remove"))
	return nil
}

// Get returns the vector as stored by Qdrant, which normalises cosine collections.
func (q *QdrantIndex) Get(ctx context.Context, itemID string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	p, err := q.fetch(ctx, itemID, true)
	if err != nil {
		return Entry{}, err
	}
	if p == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	s := fromPayload(p.GetPayload())
	if s.deleted {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	return Entry{ItemID: itemID, Vector: p.GetVectors().GetVector().GetData(), Metadata: s.meta, Version: s.version}, nil
}

func (q *QdrantIndex) Query(ctx context.Context, req QueryRequest) ([]SimilarCandidate, error) {
	start := time.Now()
	defer metric.TimingWithStart(metric.VectorQueryLatency, start, q.tags("query"))
	if req.K <= 0 {
		return []SimilarCandidate{}, nil
	}
	if err := checkDimension(req.Vector, q.dim); err != nil {
		return nil, err
	}
	if _, err := normalize(req.Vector); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	// Qdrant cuts at limit in its own order, so keep widening until every point tied
	// with the k-th score has been seen and rank can break ties by item id.
	limit := uint64(2 * req.K)
	if req.ExcludeID != "" {
		limit++
	}
	for {
		points, err := q.search(ctx, req, limit)
		if err != nil {
			return nil, err
		}
		results := make([]SimilarCandidate, 0, len(points))
		for _, p := range points {
			s := fromPayload(p.GetPayload())
			if s.deleted || s.itemID == req.ExcludeID || p.GetScore() < req.MinScore || !req.Filter.Match(s.meta) {
				continue
			}
			results = append(results, SimilarCandidate{ItemID: s.itemID, Score: p.GetScore(), Metadata: s.meta})
		}
		results = rank(results, len(results))
		if uint64(len(points)) < limit ||
			(len(results) >= req.K && points[len(points)-1].GetScore() < results[req.K-1].Score) {
			return rank(results, req.K), nil
		}
		limit *= 2
	}
}

func (q *QdrantIndex) search(ctx context.Context, req QueryRequest, limit uint64) ([]*qdrant.ScoredPoint, error) {
	threshold := req.MinScore
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Filter:         buildQdrantFilter(req.Filter),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		metric.Incr("vector_db_query_failure", q.tags("query"))
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	return points, nil
}

// Len counts live points; it returns 0 when Qdrant cannot be reached.
func (q *QdrantIndex) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	exact := true
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         buildQdrantFilter(nil),
		Exact:          &exact,
	})
	if err != nil {
		log.Warn().Err(err).Msgf("qdrant count on %s failed", q.collection)
		return 0
	}
	return int(n)
}

// Compact deletes tombstones older than the retention window.
func (q *QdrantIndex) Compact() error {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	cutoff := float64(q.now().Add(-q.tombstoneRetention).UnixNano())
	wait := true
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				boolCondition(payloadDeleted, true),
				rangeCondition(payloadRemovedAt, &qdrant.Range{Lt: &cutoff}),
			},
		}}},
	})
	if err != nil {
		return fmt.Errorf("qdrant prune tombstones: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Dimension() int {
	return q.dim
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func (q *QdrantIndex) tags(operation string) []string {
	return metric.BuildTag(
		metric.NewTag(metric.TagBackend, "qdrant"),
		metric.NewTag(metric.TagOperation, operation),
	)
}
