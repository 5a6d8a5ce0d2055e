package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"zed/internal/status"
)

// ============================================================================
// Status HTTP Server
// ============================================================================
// Serves /ws/status (WebSocket) and /healthz. Shut down gracefully when the
// context is canceled.
// ============================================================================

// runStatusServer listens on addr and serves until ctx is canceled.
func runStatusServer(ctx context.Context, addr string, srv *status.Server, logger *slog.Logger) error {
	mux := http.NewServeMux()
	srv.Register(mux, "/ws/status")
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	logger.Info("status server listening", "addr", ln.Addr().String())

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		// Serve returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
