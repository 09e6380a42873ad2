// Package server is the operator admin HTTP surface: probes, metrics and manual
// sample cache invalidation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/health"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/middleware"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
)

// SampleInvalidator is the part of the sample cache the admin surface drives.
type SampleInvalidator interface {
	Invalidate(ctx context.Context, catalog, collection string) error
	InvalidateAll(ctx context.Context) error
}

type Options struct {
	Logger  *slog.Logger
	Metrics http.Handler
	Samples SampleInvalidator
	Ready   map[string]health.Pinger
}

func NewRouter(o Options) http.Handler {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := o.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(o.Ready, 2*time.Second))
	r.Method(http.MethodGet, "/metrics", metrics)
	if o.Samples != nil {
		r.Delete("/sample-cache", invalidateSamples(logger, o.Samples))
	}
	return r
}

// DELETE /sample-cache?catalog=<url>&collection=<id>; with neither set every sample is dropped
func invalidateSamples(logger *slog.Logger, s SampleInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		catalog, collection := q.Get("catalog"), q.Get("collection")

		var (
			scope string
			err   error
		)
		switch {
		case catalog == "" && collection == "":
			scope = "all"
			err = s.InvalidateAll(r.Context())
		case catalog == "" || collection == "":
			http.Error(w, "catalog and collection must be given together", http.StatusBadRequest)
			return
		default:
			scope = "collection"
			err = s.Invalidate(r.Context(), catalog, collection)
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "sample cache invalidation failed",
				"catalog", catalog, "collection", collection, "err", err)
			http.Error(w, "invalidation failed", http.StatusBadGateway)
			return
		}
		observability.IncSampleInvalidation("admin")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"invalidated": scope,
			"catalog":     catalog,
			"collection":  collection,
		})
	}
}

// Run serves h on addr until ctx is done.
func Run(ctx context.Context, addr string, logger *slog.Logger, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
