package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/point-catalog/internal/core/config"
	"github.com/mohammed-shakir/point-catalog/internal/core/health"
	middleware "github.com/mohammed-shakir/point-catalog/internal/core/middleware"
	"github.com/mohammed-shakir/point-catalog/internal/core/router"
)

// NewHandler builds the route table. A nil metrics handler serves the
// default prometheus registry.
func NewHandler(cfg config.Config, logger *slog.Logger, handler router.CatalogHandler, metrics http.Handler, ready health.ReadinessReporter) http.Handler {
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready))
	r.Get("/metrics", metrics.ServeHTTP)
	r.Get("/catalog", router.HandleCatalog(logger, cfg, handler))
	r.Get("/catalog/index", router.HandleIndex(logger, cfg, handler))
	return r
}

// sets up http and starts serving until ctx is done
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler router.CatalogHandler, metrics http.Handler) error {
	var draining atomic.Bool
	ready := health.ReadinessFunc(func() (bool, string) {
		if draining.Load() {
			return false, "shutting down"
		}
		return true, ""
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, handler, metrics, ready),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		draining.Store(true)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
