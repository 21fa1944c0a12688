package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/embedding"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/handler/indexer"

// CatalogIndexer embeds created and updated items and upserts them, and removes deleted
// items. Every mutation carries the event's produced_at as its version, so replays and
// out-of-order deliveries converge on the newest state.
type CatalogIndexer struct {
	provider embedding.Provider
	db       vector.Database
}

func NewCatalogIndexer(provider embedding.Provider, db vector.Database) *CatalogIndexer {
	return &CatalogIndexer{provider: provider, db: db}
}

func (c *CatalogIndexer) Process(ctx context.Context, ev events.ChangeEvent) error {
	start := time.Now()
	tags := metric.BuildTag(metric.NewTag(metric.TagEventType, string(ev.Type)))
	defer metric.TimingWithStart(metric.EventProcessLatency, start, tags)
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "index_event")
	span.SetAttributes(
		attribute.String("event.id", ev.EventID),
		attribute.String("event.type", string(ev.Type)),
		attribute.String("item.id", ev.ItemID),
	)
	defer span.End()

	var err error
	switch ev.Type {
	case events.Create, events.Update:
		err = c.upsert(ctx, ev)
	case events.Delete:
		err = c.db.Remove(ctx, ev.ItemID, ev.ProducedAt)
	default:
		return fmt.Errorf("%w: unknown event type %q", events.ErrPoisonMessage, ev.Type)
	}
	if errors.Is(err, vector.ErrStaleMutation) {
		metric.Incr(metric.EventStale, tags)
		log.Debug().Msgf("stale %s for item %s at %s ignored", ev.Type, ev.ItemID, ev.ProducedAt)
		return nil
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *CatalogIndexer) upsert(ctx context.Context, ev events.ChangeEvent) error {
	item, err := events.DecodeItem(ev.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", events.ErrPoisonMessage, err)
	}
	vec, err := c.provider.Embed(ctx, item)
	if err != nil {
		return err
	}
	return c.db.Upsert(ctx, vector.Entry{
		ItemID:   ev.ItemID,
		Vector:   vec,
		Metadata: item.Metadata(ev.ProducedAt),
		Version:  ev.ProducedAt,
	})
}

// IsPermanent reports whether retrying err can never succeed, so the record should be
// dead-lettered instead of left pending.
func IsPermanent(err error) bool {
	return errors.Is(err, events.ErrPoisonMessage) ||
		errors.Is(err, vector.ErrInvalidVector) ||
		errors.Is(err, vector.ErrDimensionMismatch)
}
