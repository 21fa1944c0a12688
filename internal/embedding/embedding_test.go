package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/circuitbreaker"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / math.Sqrt(na*nb)
}

// ==============================
// HashingProvider
// ==============================

func TestHashingProvider_Deterministic(t *testing.T) {
	ctx := context.Background()
	p, err := NewHashingProvider(64)
	require.NoError(t, err)

	item := events.Item{ID: "1", Name: "Red running shoes", Category: "footwear", Attributes: map[string]string{"size": "9"}}
	a, err := p.Embed(ctx, item)
	require.NoError(t, err)
	b, err := p.Embed(ctx, item)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestHashingProvider_Similarity(t *testing.T) {
	ctx := context.Background()
	p, err := NewHashingProvider(384)
	require.NoError(t, err)

	shoes, err := p.EmbedText(ctx, "red leather running shoes for men")
	require.NoError(t, err)
	similar, err := p.EmbedText(ctx, "red leather running shoes for women")
	require.NoError(t, err)
	unrelated, err := p.EmbedText(ctx, "stainless steel kitchen knife set")
	require.NoError(t, err)

	assert.Greater(t, cosine(shoes, similar), cosine(shoes, unrelated))
	assert.Greater(t, cosine(shoes, similar), 0.5)
}

func TestHashingProvider_CaseAndPunctuationInsensitive(t *testing.T) {
	ctx := context.Background()
	p, err := NewHashingProvider(128)
	require.NoError(t, err)
	a, err := p.EmbedText(ctx, "Cotton T-Shirt, Blue")
	require.NoError(t, err)
	b, err := p.EmbedText(ctx, "cotton t shirt blue")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cosine(a, b), 1e-6)
}

func TestHashingProvider_Errors(t *testing.T) {
	_, err := NewHashingProvider(0)
	assert.Error(t, err)

	p, err := NewHashingProvider(8)
	require.NoError(t, err)
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "only punctuation", text: " ,.;!? "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.EmbedText(context.Background(), tt.text)
			assert.ErrorIs(t, err, ErrEmbeddingFailed)
		})
	}
}

// ==============================
// RemoteProvider
// ==============================

func newRemote(t *testing.T, handler http.HandlerFunc, cb *circuitbreaker.Config) *RemoteProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := httpclient.NewConnFromConfig(&httpclient.Config{Name: "embedding", Endpoint: server.URL, Timeout: time.Second, CBConfig: cb})
	return NewRemoteProvider(client, rate.NewLimiter(rate.Inf, 1), 3)
}

func TestRemoteProvider_EmbedText(t *testing.T) {
	p := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, remotePath, r.URL.Path)
		var req remoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "blue jeans", req.Text)
		_ = json.NewEncoder(w).Encode(remoteResponse{Vector: []float32{0.1, 0.2, 0.3}})
	}, nil)

	vec, err := p.EmbedText(context.Background(), "blue jeans")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, p.Dimension())
}

func TestRemoteProvider_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{name: "bad json", handler: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{name: "wrong dimension", handler: func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(remoteResponse{Vector: []float32{1, 2}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newRemote(t, tt.handler, nil)
			_, err := p.EmbedText(context.Background(), "anything")
			assert.ErrorIs(t, err, ErrEmbeddingFailed)
		})
	}
}

func TestRemoteProvider_EmptyTextSkipsCall(t *testing.T) {
	var calls atomic.Int32
	p := newRemote(t, func(w http.ResponseWriter, _ *http.Request) { calls.Add(1) }, nil)
	_, err := p.EmbedText(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRemoteProvider_CancelledContext(t *testing.T) {
	p := newRemote(t, func(w http.ResponseWriter, _ *http.Request) {}, nil)
	p.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	p.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.EmbedText(ctx, "anything")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

// ==============================
// NewProvider
// ==============================

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     structs.Configs
		wantErr bool
	}{
		{name: "hashing", cfg: structs.Configs{EmbeddingProviderType: "HASHING", VectorDimension: 16}},
		{name: "remote", cfg: structs.Configs{EmbeddingProviderType: "REMOTE", EmbeddingURL: "http://embedder:8080", VectorDimension: 16, EmbeddingRateLimit: 5}},
		{name: "remote without url", cfg: structs.Configs{EmbeddingProviderType: "REMOTE", VectorDimension: 16}, wantErr: true},
		{name: "unknown", cfg: structs.Configs{EmbeddingProviderType: "CLIP", VectorDimension: 16}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 16, p.Dimension())
		})
	}
}
