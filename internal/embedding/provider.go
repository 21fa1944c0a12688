package embedding

import (
	"context"
	"errors"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
)

// ErrEmbeddingFailed covers every provider failure. Callers treat it as transient.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Provider turns catalog items or free text into fixed-length vectors.
type Provider interface {
	Embed(ctx context.Context, item events.Item) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
