package api

import (
	"encoding/json"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/dispatcher"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
)

type SimilarByVectorRequest struct {
	Vector   []float32      `json:"vector" binding:"required"`
	K        int            `json:"k"`
	MinScore *float64       `json:"min_score"`
	Filter   *vector.Filter `json:"filter"`
}

type PublishEventRequest struct {
	EventType string          `json:"event_type" binding:"required"`
	ItemID    string          `json:"item_id" binding:"required"`
	Payload   json.RawMessage `json:"payload"`
}

type PublishEventResponse struct {
	EventID string `json:"event_id"`
}

type SimilarResponse struct {
	ItemID  string                    `json:"item_id,omitempty"`
	Query   string                    `json:"query,omitempty"`
	Results []vector.SimilarCandidate `json:"results"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

type HealthResponse struct {
	Status      string             `json:"status"`
	IndexSize   int                `json:"index_size"`
	Dispatchers []dispatcher.Stats `json:"dispatchers,omitempty"`
}
