package middlewares

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/gin-gonic/gin"
)

const (
	CallerIdHeader  = "catalog-sync-caller-id"
	AuthTokenHeader = "catalog-sync-auth-token"
)

// Auth requires a caller id and a token from the comma separated allow-list. An empty
// list lets every request through.
func Auth(authTokens string) gin.HandlerFunc {
	var tokens []string
	for _, t := range strings.Split(authTokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return func(c *gin.Context) {
		if len(tokens) == 0 {
			c.Next()
			return
		}
		startTime := time.Now()
		callerID := c.GetHeader(CallerIdHeader)
		if callerID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": CallerIdHeader + " header is missing"})
			return
		}
		token := c.GetHeader(AuthTokenHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": AuthTokenHeader + " header is missing"})
			return
		}
		if !slices.Contains(tokens, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid auth token"})
			return
		}
		c.Next()
		trackGenericMetrics(startTime, c.FullPath(), callerID, c.Writer.Status())
	}
}

func trackGenericMetrics(startTime time.Time, route, callerID string, statusCode int) {
	tags := metric.BuildTag(
		metric.NewTag(metric.TagPath, route),
		metric.NewTag("caller_id", callerID),
		metric.NewTag(metric.TagHttpStatusCode, strconv.Itoa(statusCode)),
	)
	metric.Incr("catalog_sync_caller_request", tags)
	metric.Timing("catalog_sync_caller_request_latency", time.Since(startTime), tags)
}
