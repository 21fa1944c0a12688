package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/httpclient"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const remotePath = "/embed"

type remoteRequest struct {
	Text string `json:"text"`
}

type remoteResponse struct {
	Vector []float32 `json:"vector"`
}

// RemoteProvider delegates to an embedding service over HTTP. Calls are rate limited on
// the client side and pass through the client's circuit breaker.
type RemoteProvider struct {
	client  *httpclient.HTTPClient
	limiter *rate.Limiter
	dim     int
}

func NewRemoteProvider(client *httpclient.HTTPClient, limiter *rate.Limiter, dim int) *RemoteProvider {
	return &RemoteProvider{client: client, limiter: limiter, dim: dim}
}

func (r *RemoteProvider) Dimension() int {
	return r.dim
}

func (r *RemoteProvider) Embed(ctx context.Context, item events.Item) ([]float32, error) {
	return r.EmbedText(ctx, item.Text())
}

func (r *RemoteProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	tags := metric.BuildTag(metric.NewTag(metric.TagProvider, "remote"))
	defer metric.TimingWithStart(metric.EmbeddingLatency, start, tags)

	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmbeddingFailed)
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrEmbeddingFailed, err)
		}
	}
	req, err := httpclient.NewHttpRequestBuilder().
		WithEndpoint(r.client.Endpoint).
		WithPath(remotePath).
		WithMethod(http.MethodPost).
		WithBody(remoteRequest{Text: text}).
		WithContext(ctx).
		BuildContentTypeJson()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn().Msgf("embedding service returned %d: %s", resp.StatusCode, body)
		return nil, fmt.Errorf("%w: status %d", ErrEmbeddingFailed, resp.StatusCode)
	}
	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrEmbeddingFailed, err)
	}
	if len(out.Vector) != r.dim {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbeddingFailed, len(out.Vector), r.dim)
	}
	return out.Vector, nil
}
