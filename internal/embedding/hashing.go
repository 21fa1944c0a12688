package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
)

// HashingProvider is a deterministic feature-hashing embedder. Word unigrams and bigrams
// are hashed into Dimension signed buckets with sublinear term frequency, and the result
// is L2-normalised, so texts sharing vocabulary land close together.
type HashingProvider struct {
	dim int
}

func NewHashingProvider(dim int) (*HashingProvider, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hashing provider dimension must be positive, got %d", dim)
	}
	return &HashingProvider{dim: dim}, nil
}

func (h *HashingProvider) Dimension() int {
	return h.dim
}

func (h *HashingProvider) Embed(ctx context.Context, item events.Item) ([]float32, error) {
	return h.EmbedText(ctx, item.Text())
}

func (h *HashingProvider) EmbedText(_ context.Context, text string) ([]float32, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no tokens in text", ErrEmbeddingFailed)
	}
	counts := make(map[string]int, 2*len(tokens))
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}

	acc := make([]float64, h.dim)
	for feature, tf := range counts {
		bucket, sign := h.hash(feature)
		acc[bucket] += sign * (1 + math.Log(float64(tf)))
	}
	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	if norm == 0 {
		return nil, fmt.Errorf("%w: features cancelled out", ErrEmbeddingFailed)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, h.dim)
	for i, x := range acc {
		out[i] = float32(x / norm)
	}
	return out, nil
}

func (h *HashingProvider) hash(feature string) (int, float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(h.dim)), sign
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
