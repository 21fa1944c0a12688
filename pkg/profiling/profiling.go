package profiling

import (
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/rs/zerolog/log"
)

// Start serves net/http/pprof on port in the background. Port 0 disables profiling.
func Start(port int) (*http.Server, error) {
	if port == 0 {
		log.Info().Msg("Profiling is not enabled!")
		return nil, nil
	}
	if port < 0 {
		return nil, fmt.Errorf("invalid profiling port %d", port)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Msgf("Starting profiling server on %v", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("profiling server stopped")
		}
	}()
	return srv, nil
}
