package mosaic

import (
	"context"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/raster"
)

// Coverage is the raster an engine produces. Readers hand it back unchanged.
type Coverage interface {
	Envelope() model.BBox
	GridRange() model.GridRange
}

// ReadParams are the caller's read parameters. Zero values fall back to reader defaults.
type ReadParams struct {
	BBox        *model.BBox
	Width       int
	Height      int
	ResolutionX float64
	ResolutionY float64
	Datetime    string
	// Extra is passed to the engine untouched.
	Extra map[string]any
}

// GranuleOpener opens the granules an engine composites.
type GranuleOpener interface {
	OpenCodec(ctx context.Context, c raster.Codec, url string) (raster.SingleImageReader, error)
}

// Engine composites granules into a coverage.
type Engine interface {
	Read(ctx context.Context, typeName string, p ReadParams) (Coverage, error)
	Close() error
}

// EngineFactory builds an engine for one configuration.
type EngineFactory interface {
	Open(cfg *Configuration, granules GranuleSource, opener GranuleOpener) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(cfg *Configuration, granules GranuleSource, opener GranuleOpener) (Engine, error)

func (f EngineFactoryFunc) Open(cfg *Configuration, granules GranuleSource, opener GranuleOpener) (Engine, error) {
	return f(cfg, granules, opener)
}
