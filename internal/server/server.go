package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/server/api"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/server/middlewares"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/httpframework"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg *structs.Configs, handler *api.Handler) (*gin.Engine, error) {
	router, err := httpframework.New(cfg.AppName, cfg.AppEnv)
	if err != nil {
		return nil, err
	}
	handler.Register(router, middlewares.Auth(cfg.AuthTokens))
	return router, nil
}

type Server struct {
	httpServer *http.Server
}

func New(port int, handler http.Handler) (*Server, error) {
	if port == 0 {
		return nil, errors.New("PORT not set")
	}
	return &Server{httpServer: &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}, nil
}

// Start blocks until the server fails or is shut down. A shutdown is not an error.
func (s *Server) Start() error {
	log.Info().Msgf("http server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
