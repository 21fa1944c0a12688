package httpframework

import (
	"errors"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var ErrEmptyAppName = errors.New("app name cannot be empty")

// New builds a gin engine with tracing, access logging and panic recovery.
// Extra middlewares run after those three. Release mode is used for prod environments.
func New(appName, env string, middlewares ...gin.HandlerFunc) (*gin.Engine, error) {
	if appName == "" {
		return nil, ErrEmptyAppName
	}
	if env == "prod" || env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(otelgin.Middleware(appName), middleware.HTTPLogger(), middleware.HTTPRecovery())
	router.Use(middlewares...)
	return router, nil
}
