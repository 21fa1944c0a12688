package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/bootstrap"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/server"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/server/api"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/profiling"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/tracing"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.Init(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if _, err := profiling.Start(cfg.ProfilingPort); err != nil {
		log.Fatal().Err(err).Msg("failed to start profiling")
	}

	app, err := bootstrap.NewServing(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise serving")
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("failed to release resources")
		}
	}()

	router, err := server.NewRouter(cfg, api.NewHandler(app.Similar, app.Producer, app.Index, nil))
	if err != nil {
		log.Error().Err(err).Msg("failed to build router")
		return
	}
	srv, err := server.New(cfg.Port, router)
	if err != nil {
		log.Error().Err(err).Msg("failed to build http server")
		return
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	tracing.ShutdownTracer(shutdownCtx)
}
