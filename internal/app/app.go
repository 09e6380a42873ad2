// Package app wires configuration, logging, metrics, caches and the invalidation
// pipeline into the process that hosts mosaic readers.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/stac-mosaic/internal/cache/redisstore"
	"github.com/mohammed-shakir/stac-mosaic/internal/cache/sample"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/config"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/health"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/httpclient"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/server"
	"github.com/mohammed-shakir/stac-mosaic/internal/invalidation"
	"github.com/mohammed-shakir/stac-mosaic/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/stac-mosaic/internal/logger"
	"github.com/mohammed-shakir/stac-mosaic/internal/metrics"
	"github.com/mohammed-shakir/stac-mosaic/internal/mosaic"
	"github.com/mohammed-shakir/stac-mosaic/internal/raster"
)

// App owns the process-wide collaborators shared by every reader.
type App struct {
	cfg     config.Config
	Logger  *slog.Logger
	metrics *metrics.Provider
	client  *http.Client
	redis   *redisstore.Client
	Samples *sample.Cache
	Rasters *raster.Dispatcher
	events  *kafkaconsumer.Consumer
}

// New builds the app. Logs go to out (stdout when nil). A configured Redis that
// cannot be reached fails startup.
func New(ctx context.Context, cfg config.Config, out io.Writer, build metrics.BuildInfo) (*App, error) {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "stac-mosaic",
	}, out)
	log := logger.NewSlog(&zl)

	p := metrics.Init(metrics.Config{Build: build, Runtime: metrics.Runtime{
		TargetCRS:    cfg.TargetCRS,
		SampleScope:  sample.ParseScope(cfg.SampleCacheScope).String(),
		Redis:        cfg.RedisAddr != "",
		Invalidation: cfg.Invalidation.Enabled,
	}})
	observability.Init(p.Registerer(), cfg.MetricsEnabled)

	a := &App{
		cfg:     cfg,
		Logger:  log,
		metrics: p,
		client:  httpclient.NewOutbound(cfg.CatalogTimeout),
	}

	var remote sample.Remote
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("sample cache redis %s: %w", cfg.RedisAddr, err)
		}
		a.redis = rc
		remote = rc
	}
	a.Samples = sample.New(log.With("component", "sample_cache"), sample.Config{
		Scope:     sample.ParseScope(cfg.SampleCacheScope),
		TTL:       cfg.SampleCacheTTL,
		Size:      cfg.SampleCacheSize,
		OpTimeout: cfg.CacheOpTimeout,
	}, remote)
	p.TrackSampleCache(a.Samples.Len)

	a.Rasters = raster.NewDispatcher(log.With("component", "raster"),
		raster.NewHTTPOpener(a.client, cfg.RasterHeaderBytes))

	if cfg.Invalidation.Enabled {
		kc := kafkaconsumer.ConfigFrom(cfg.Invalidation)
		a.events = kafkaconsumer.New(kc, log.With("component", "kafka_consumer"),
			invalidation.NewApplier(log, a.Samples, kc.DedupeSize, "kafka"))
	}

	log.Info("stac mosaic initialised",
		"target_crs", cfg.TargetCRS,
		"sample_scope", a.Samples.Scope().String(),
		"redis", cfg.RedisAddr != "",
		"invalidation", cfg.Invalidation.Enabled,
		"metrics", cfg.MetricsEnabled)
	return a, nil
}

// OpenReader constructs a mosaic reader for uri that shares this app's caches.
func (a *App) OpenReader(ctx context.Context, uri string, engines mosaic.EngineFactory) (*mosaic.Reader, error) {
	return mosaic.New(ctx, uri, mosaic.ConfigFrom(a.cfg), mosaic.Deps{
		Logger:     a.Logger,
		HTTPClient: a.client,
		Samples:    a.Samples,
		Rasters:    a.Rasters,
		Engines:    engines,
	})
}

// AdminHandler is the operator HTTP surface.
func (a *App) AdminHandler() http.Handler {
	ready := map[string]health.Pinger{}
	if a.redis != nil {
		ready["redis"] = a.redis
	}
	return server.NewRouter(server.Options{
		Logger:  a.Logger,
		Metrics: a.metrics.Handler(),
		Samples: a.Samples,
		Ready:   ready,
	})
}

// Run serves the admin surface and, when enabled, consumes catalog events until
// ctx is done or either of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, a.cfg.Addr, a.Logger, a.AdminHandler())
	})
	if a.events != nil {
		g.Go(func() error { return a.events.Start(ctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
