package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/dispatcher"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/embedding"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/producer"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/serving/handlers/similar"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	healthCheckPath = "/health"
	apiV1           = "/api/v1"

	errItemNotIndexed = "item_not_indexed"
	defaultRetryAfter = 2 * time.Second
)

// StatsProvider reports dispatcher state. It is nil in processes that do not consume.
type StatsProvider interface {
	Stats() []dispatcher.Stats
}

type Sizer interface {
	Len() int
}

type Handler struct {
	querier    similar.Querier
	publisher  producer.Publisher
	index      Sizer
	stats      StatsProvider
	retryAfter time.Duration
}

func NewHandler(querier similar.Querier, publisher producer.Publisher, index Sizer, stats StatsProvider) *Handler {
	return &Handler{
		querier:    querier,
		publisher:  publisher,
		index:      index,
		stats:      stats,
		retryAfter: defaultRetryAfter,
	}
}

// Register mounts the health route on router and the API routes under /api/v1, guarded by
// the given middlewares.
func (h *Handler) Register(router gin.IRouter, apiMiddlewares ...gin.HandlerFunc) {
	router.GET(healthCheckPath, h.Health)
	v1 := router.Group(apiV1, apiMiddlewares...)
	v1.GET("/items/:id/similar", h.SimilarToItem)
	v1.POST("/similar", h.SimilarToVector)
	v1.GET("/search", h.Search)
	v1.POST("/events", h.PublishEvent)
}

func (h *Handler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.index != nil {
		resp.IndexSize = h.index.Len()
	}
	if h.stats != nil {
		resp.Dispatchers = h.stats.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SimilarToItem(c *gin.Context) {
	itemID := c.Param("id")
	params, err := parseQueryParams(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	results, err := h.querier.SimilarTo(c.Request.Context(), itemID, params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SimilarResponse{ItemID: itemID, Results: results})
}

func (h *Handler) SimilarToVector(c *gin.Context) {
	var req SimilarByVectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, invalid(err.Error()))
		return
	}
	results, err := h.querier.SimilarToVector(c.Request.Context(), req.Vector, similar.Params{
		K:        req.K,
		MinScore: req.MinScore,
		Filter:   req.Filter,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SimilarResponse{Results: results})
}

func (h *Handler) Search(c *gin.Context) {
	text := c.Query("q")
	params, err := parseQueryParams(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	results, err := h.querier.SimilarToText(c.Request.Context(), text, params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SimilarResponse{Query: text, Results: results})
}

// PublishEvent is the hook the catalog CRUD layer calls after a commit.
func (h *Handler) PublishEvent(c *gin.Context) {
	var req PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, invalid(err.Error()))
		return
	}
	var payload []byte
	if p := bytes.TrimSpace(req.Payload); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		payload = p
	}
	id, err := h.publisher.Publish(c.Request.Context(), req.EventType, req.ItemID, payload)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, PublishEventResponse{EventID: id})
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", similar.ErrInvalidRequest, msg)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, similar.ErrItemNotIndexed):
		c.Header("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
		c.JSON(http.StatusNotFound, ErrorResponse{Error: errItemNotIndexed, Retryable: true})
	case errors.Is(err, similar.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, producer.ErrPublishFailed) && !errors.Is(err, eventlog.ErrLogUnavailable):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, vector.ErrDimensionMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		if !errors.Is(err, embedding.ErrEmbeddingFailed) && !errors.Is(err, eventlog.ErrLogUnavailable) {
			log.Error().Err(err).Msgf("request %s %s failed", c.Request.Method, c.FullPath())
		}
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Retryable: true})
	}
}

func parseQueryParams(c *gin.Context) (similar.Params, error) {
	var p similar.Params
	if raw := c.Query("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return p, invalid("k must be an integer")
		}
		p.K = k
	}
	if raw := c.Query("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, invalid("min_score must be a number")
		}
		p.MinScore = &v
	}
	filter := &vector.Filter{}
	for _, raw := range c.QueryArray("category") {
		for _, category := range strings.Split(raw, ",") {
			if category = strings.TrimSpace(category); category != "" {
				filter.Categories = append(filter.Categories, category)
			}
		}
	}
	for name, dst := range map[string]**float64{"price_min": &filter.PriceMin, "price_max": &filter.PriceMax} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, invalid(name + " must be a number")
		}
		*dst = &v
	}
	if !filter.Empty() {
		p.Filter = filter
	}
	return p, nil
}
