package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/stac-mosaic/internal/app"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/config"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/metrics"
	"github.com/mohammed-shakir/stac-mosaic/internal/mosaic"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

// probeEngine lets -probe construct a reader without a mosaic engine linked in.
var probeEngine = mosaic.EngineFactoryFunc(func(*mosaic.Configuration, mosaic.GranuleSource, mosaic.GranuleOpener) (mosaic.Engine, error) {
	return nil, errors.New("no mosaic engine in this binary")
})

func run() int {
	probe := flag.String("probe", "", "resolve '<catalog-url>?<collection>' and print its CRS and envelope")
	flag.Parse()

	cfg := config.FromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, os.Stdout, metrics.BuildInfo{
		Version:   Version,
		Revision:  os.Getenv("BUILD_REVISION"),
		Branch:    os.Getenv("BUILD_BRANCH"),
		BuildDate: os.Getenv("BUILD_DATE"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup:", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	if *probe != "" {
		r, err := a.OpenReader(ctx, *probe, probeEngine)
		if err != nil {
			a.Logger.Error("probe failed", "uri", *probe, "err", err)
			return 1
		}
		env := r.OriginalEnvelope()
		gr := r.OriginalGridRange()
		t := r.GridToWorld(model.PixelCorner)
		fmt.Printf("collection %s\ncrs        %s\nenvelope   %s\ngrid       %dx%d\nnative     %.6f %.6f %.6f %.6f %.6f %.6f\n",
			r.Collection(), r.CRS().ID(), env, gr.Width, gr.Height, t.A, t.B, t.C, t.D, t.E, t.F)
		return 0
	}

	a.Logger.Info("starting stac mosaic admin", "addr", cfg.Addr, "version", Version)
	if err := a.Run(ctx); err != nil {
		a.Logger.Error("server exited with error", "err", err)
		return 1
	}
	a.Logger.Info("server stopped")
	return 0
}
