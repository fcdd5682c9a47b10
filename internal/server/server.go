// Package server holds the HTTP plumbing shared by the ingress listeners.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const defaultShutdownTimeout = 30 * time.Second

// Options describes one listener.
type Options struct {
	Addr            string
	Service         string
	Handler         http.Handler
	Logger          zerolog.Logger
	ShutdownTimeout time.Duration
}

// Middleware wraps h with the request logging chain.
func Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			idReq, _ := hlog.IDFromRequest(r)

			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Str("req_id", idReq.String()).
				Msg("HTTP Request")
		})(h)
		h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
		h = hlog.UserAgentHandler("user_agent")(h)
		h = hlog.RemoteAddrHandler("remote_addr")(h)
		h = hlog.URLHandler("url")(h)
		h = hlog.MethodHandler("method")(h)
		return hlog.NewHandler(logger)(h)
	}
}

// Run serves opts.Handler until ctx is cancelled, then shuts down gracefully.
// It returns an error only if the listener could not be started.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger.With().Str("service", opts.Service).Logger()
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           Middleware(logger)(opts.Handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", opts.Addr).Msg("Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)

	case <-ctx.Done():
		logger.Info().Msg("Shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error writing response")
	}
}

// WriteError writes {"ok":false,"error":code}.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code string) {
	WriteJSON(w, r, status, map[string]any{"ok": false, "error": code})
}
