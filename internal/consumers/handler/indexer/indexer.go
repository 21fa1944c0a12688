package indexer

import (
	"context"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
)

// Handler applies one decoded change event. A nil error means the event may be acked.
type Handler interface {
	Process(ctx context.Context, event events.ChangeEvent) error
}
