// README: HTTP server lifecycle; serves until the context is cancelled, then drains.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const shutdownGrace = 10 * time.Second

func Serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	log.Info().Msg("http server shutting down")
	return server.Shutdown(shutdownCtx)
}
