// Package stacmosaic exposes the STAC mosaic reader to embedding coverage servers.
//
// A reader is opened for "<catalog-base-url>?<collection-id>" and delegates
// mosaicking to an EngineFactory supplied by the host.
package stacmosaic

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mohammed-shakir/stac-mosaic/internal/asset"
	"github.com/mohammed-shakir/stac-mosaic/internal/cache/sample"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/crs"
	"github.com/mohammed-shakir/stac-mosaic/internal/mosaic"
	"github.com/mohammed-shakir/stac-mosaic/internal/raster"
	"github.com/mohammed-shakir/stac-mosaic/internal/stac"
)

type (
	Reader        = mosaic.Reader
	Config        = mosaic.Config
	Configuration = mosaic.Configuration
	ReadParams    = mosaic.ReadParams
	Coverage      = mosaic.Coverage
	Engine        = mosaic.Engine
	EngineFactory = mosaic.EngineFactory
	GranuleSource = mosaic.GranuleSource
	GranuleOpener = mosaic.GranuleOpener
	Granule       = mosaic.Granule
	GranuleQuery  = mosaic.GranuleQuery
	BBox          = model.BBox
	GridRange     = model.GridRange
	Affine        = model.Affine
	PixelAnchor   = model.PixelAnchor
	Searcher      = stac.Searcher
)

const (
	PixelCorner = model.PixelCorner
	PixelCenter = model.PixelCenter
)

var (
	ErrEndpointParse           = model.ErrEndpointParse
	ErrQueryFailed             = stac.ErrQueryFailed
	ErrCatalogEmpty            = sample.ErrCatalogEmpty
	ErrNoAssetFound            = asset.ErrNoAssetFound
	ErrResolutionFailed        = crs.ErrResolutionFailed
	ErrUnsupportedAssetType    = raster.ErrUnsupportedAssetType
	ErrRasterOpenFailed        = raster.ErrRasterOpenFailed
	ErrConfigurationIncomplete = mosaic.ErrConfigurationIncomplete
)

// DefaultConfig is the reader configuration used when Open gets none.
func DefaultConfig() Config { return mosaic.DefaultConfig() }

var (
	sharedOnce    sync.Once
	sharedSamples *sample.Cache
)

// SharedSamples is the collection-keyed sample cache used by readers opened
// without WithSamples.
func SharedSamples() *sample.Cache {
	sharedOnce.Do(func() {
		sharedSamples = sample.New(nil, sample.Config{}, nil)
	})
	return sharedSamples
}

type options struct {
	cfg  Config
	deps mosaic.Deps
}

type Option func(*options)

func WithConfig(c Config) Option { return func(o *options) { o.cfg = c } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.deps.Logger = l } }

func WithHTTPClient(hc *http.Client) Option { return func(o *options) { o.deps.HTTPClient = hc } }

func WithSearcher(s Searcher) Option { return func(o *options) { o.deps.Searcher = s } }

func WithSamples(c *sample.Cache) Option { return func(o *options) { o.deps.Samples = c } }

func WithRasters(r mosaic.RasterOpener) Option { return func(o *options) { o.deps.Rasters = r } }

// Open constructs a reader for uri. Construction queries the catalog and reads one
// raster header, so it blocks until ctx is done or both complete.
func Open(ctx context.Context, uri string, engines EngineFactory, opts ...Option) (*Reader, error) {
	o := options{cfg: DefaultConfig()}
	for _, f := range opts {
		f(&o)
	}
	o.deps.Engines = engines
	if o.deps.Samples == nil {
		o.deps.Samples = SharedSamples()
	}
	return mosaic.New(ctx, uri, o.cfg, o.deps)
}
