package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/rs/zerolog/log"
)

// ErrPublishFailed wraps every failure to append an event, including invalid arguments.
// When the cause is eventlog.ErrLogUnavailable the event may or may not have been stored.
var ErrPublishFailed = errors.New("publish failed")

type Publisher interface {
	Publish(ctx context.Context, eventType, itemID string, payload []byte) (string, error)
}

// Producer appends change events to one stream, partitioned by item id so that all
// events of an item stay in order.
type Producer struct {
	log    eventlog.Log
	stream string
	now    func() time.Time
}

type Option func(*Producer)

func WithClock(now func() time.Time) Option {
	return func(p *Producer) { p.now = now }
}

func NewProducer(l eventlog.Log, stream string, opts ...Option) *Producer {
	p := &Producer{log: l, stream: stream, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish stamps produced_at, validates the event and appends it exactly once. It returns
// the id assigned by the log.
func (p *Producer) Publish(ctx context.Context, eventType, itemID string, payload []byte) (string, error) {
	t, err := events.ParseEventType(eventType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	ev := events.ChangeEvent{Type: t, ItemID: itemID, Payload: payload, ProducedAt: p.now().UTC()}
	if err := ev.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	if t != events.Delete {
		if _, err := events.DecodeItem(payload); err != nil {
			return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
		}
	}

	tags := metric.BuildTag(metric.NewTag(metric.TagStream, p.stream), metric.NewTag(metric.TagEventType, eventType))
	id, err := p.log.Append(ctx, p.stream, itemID, events.Encode(ev))
	if err != nil {
		metric.Incr(metric.EventPublishFailed, tags)
		log.Error().Err(err).Msgf("failed to publish %s event for item %s", eventType, itemID)
		return "", fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	metric.Incr(metric.EventPublished, tags)
	log.Debug().Msgf("published %s event %s for item %s", eventType, id, itemID)
	return id, nil
}

// PublishItem publishes a create or update carrying the item as JSON.
func (p *Producer) PublishItem(ctx context.Context, eventType events.EventType, item events.Item) (string, error) {
	if eventType != events.Create && eventType != events.Update {
		return "", fmt.Errorf("%w: %s is not an item event", ErrPublishFailed, eventType)
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return p.Publish(ctx, string(eventType), item.ID, payload)
}

func (p *Producer) PublishDelete(ctx context.Context, itemID string) (string, error) {
	return p.Publish(ctx, string(events.Delete), itemID, nil)
}
