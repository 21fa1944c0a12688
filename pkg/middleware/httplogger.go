package middleware

import (
	"strconv"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	HeaderRequestID = "X-Request-Id"
	// ContextKeyRequestID holds the request id in the gin context.
	ContextKeyRequestID = "request_id"
	unknownRoute        = "unknown"
)

// HTTPLogger tags every request with an id, emits count and latency per templated route
// and writes one access line. Server errors log at error level, client errors at warn.
func HTTPLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		latency := time.Since(startTime)
		route := c.FullPath()
		if route == "" {
			route = unknownRoute
		}
		statusCode := c.Writer.Status()
		metricTags := metric.BuildTag(
			metric.NewTag(metric.TagPath, route),
			metric.NewTag(metric.TagMethod, c.Request.Method),
			metric.NewTag(metric.TagHttpStatusCode, strconv.Itoa(statusCode)),
		)
		metric.Incr(metric.ApiRequestCount, metricTags)
		metric.Timing(metric.ApiRequestLatency, latency, metricTags)

		log.WithLevel(accessLevel(statusCode)).
			Str("request_id", requestID).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", statusCode).
			Dur("latency", latency).
			Msg("access")
	}
}

func accessLevel(statusCode int) zerolog.Level {
	switch {
	case statusCode >= 500:
		return zerolog.ErrorLevel
	case statusCode >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
