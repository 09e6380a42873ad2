package mosaic

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mohammed-shakir/stac-mosaic/internal/asset"
	"github.com/mohammed-shakir/stac-mosaic/internal/cache/sample"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
	"github.com/mohammed-shakir/stac-mosaic/internal/crs"
	"github.com/mohammed-shakir/stac-mosaic/internal/raster"
	"github.com/mohammed-shakir/stac-mosaic/internal/stac"
)

// Format describes the coverage format served by a Reader.
type Format struct {
	Name        string
	Description string
}

var StacMosaicFormat = Format{
	Name:        "StacMosaic",
	Description: "Mosaic of the raster assets of a STAC collection",
}

// SampleSource returns the representative item of a collection.
type SampleSource interface {
	Get(ctx context.Context, ep model.CatalogEndpoint, s stac.Searcher) (*stac.Item, error)
}

// RasterOpener opens single images by asset or by codec.
type RasterOpener interface {
	Open(ctx context.Context, desc model.AssetDescriptor) (raster.SingleImageReader, error)
	GranuleOpener
}

// Deps are the collaborators of a Reader. Searcher is built from the endpoint with
// HTTPClient when nil, Samples defaults to a private collection-scoped cache.
type Deps struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Searcher   stac.Searcher
	Samples    SampleSource
	Rasters    RasterOpener
	Engines    EngineFactory
}

// Reader serves coverages of one catalog collection. Everything resolved at
// construction is immutable, so a failed read leaves the reader usable.
type Reader struct {
	cfg      Config
	endpoint model.CatalogEndpoint
	logger   *slog.Logger
	searcher stac.Searcher
	samples  SampleSource
	rasters  RasterOpener
	engines  EngineFactory
	builder  *Builder

	crs       crs.CRS
	envelope  model.BBox
	native    model.BBox
	gridRange model.GridRange
	// grid-to-world of the bootstrap image, pixel corner anchored
	gridToWorld model.Affine
}

// New parses uri ("<catalog-base-url>?<collection>") and resolves the collection's CRS,
// envelope and grid from its sample item. Any failure aborts construction.
func New(ctx context.Context, uri string, cfg Config, deps Deps) (*Reader, error) {
	ep, err := model.ParseEndpoint(uri)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	r := &Reader{
		cfg:      cfg,
		endpoint: ep,
		logger:   deps.Logger,
		searcher: deps.Searcher,
		samples:  deps.Samples,
		rasters:  deps.Rasters,
		engines:  deps.Engines,
		builder:  NewBuilder(cfg, ep),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("collection", ep.Collection, "catalog", ep.BaseURL)
	if r.engines == nil {
		return nil, fmt.Errorf("reader for %s: no mosaic engine", ep)
	}
	if r.rasters == nil {
		r.rasters = raster.NewDispatcher(r.logger, raster.NewHTTPOpener(deps.HTTPClient, 0))
	}
	if r.searcher == nil {
		c, err := stac.NewClient(r.logger, deps.HTTPClient, ep.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("reader for %s: %w", ep, err)
		}
		r.searcher = c
	}
	if r.samples == nil {
		r.samples = sample.New(r.logger, sample.Config{}, nil)
	}

	if err := r.bootstrap(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("mosaic reader ready",
		"crs", r.crs.ID(), "native_srid", r.native.SRID,
		"grid_width", r.gridRange.Width, "grid_height", r.gridRange.Height)
	return r, nil
}

func (r *Reader) bootstrap(ctx context.Context) error {
	item, err := r.samples.Get(ctx, r.endpoint, r.searcher)
	if err != nil {
		return err
	}
	desc, err := asset.Select(item)
	if err != nil {
		return fmt.Errorf("collection %q: %w", r.endpoint.Collection, err)
	}
	img, err := r.rasters.Open(ctx, desc)
	if err != nil {
		return err
	}
	defer func() { _ = img.Close() }()

	native := img.Envelope()
	if native.SRID == "" && item.EPSG() != 0 {
		native.SRID = "EPSG:" + strconv.Itoa(item.EPSG())
	}
	target, env, err := crs.NewResolver(r.cfg.TargetCRS).Resolve(native)
	if err != nil {
		return fmt.Errorf("collection %q, sample %s: %w", r.endpoint.Collection, desc.URL, err)
	}

	r.native = native
	r.crs = target
	r.envelope = env
	r.gridRange = model.GridRange{Width: r.cfg.GridWidth, Height: r.cfg.GridHeight}
	r.gridToWorld = img.GridToWorld(model.PixelCorner)
	return nil
}

func (r *Reader) Format() Format                     { return StacMosaicFormat }
func (r *Reader) CRS() crs.CRS                       { return r.crs }
func (r *Reader) OriginalEnvelope() model.BBox       { return r.envelope }
func (r *Reader) OriginalGridRange() model.GridRange { return r.gridRange }
func (r *Reader) Collection() string                 { return r.endpoint.Collection }
func (r *Reader) Source() string                     { return r.endpoint.BaseURL }

// GridToWorld returns the transform captured from the bootstrap image.
func (r *Reader) GridToWorld(anchor model.PixelAnchor) model.Affine {
	if anchor == model.PixelCenter {
		return r.gridToWorld.Shift(0.5, 0.5)
	}
	return r.gridToWorld
}

// Read rebuilds the configuration for p and returns the engine's coverage.
func (r *Reader) Read(ctx context.Context, p ReadParams) (cov Coverage, err error) {
	start := time.Now()
	defer func() {
		observability.ObserveMosaicRead(err, time.Since(start).Seconds())
		if err != nil {
			r.logger.Warn("mosaic read failed", "err", err)
		}
	}()

	lp, err := r.layerParameters(p)
	if err != nil {
		return nil, err
	}
	if p.BBox != nil {
		bb := lp.BBox
		p.BBox = &bb
	}
	item, err := r.samples.Get(ctx, r.endpoint, r.searcher)
	if err != nil {
		return nil, err
	}
	desc, err := asset.Select(item)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", r.endpoint.Collection, err)
	}
	cfg, err := r.builder.Build(lp, desc)
	if err != nil {
		return nil, err
	}

	granules := NewGranuleCatalog(r.logger, r.searcher, r.endpoint, r.cfg)
	eng, err := r.engines.Open(cfg, granules, r.rasters)
	if err != nil {
		return nil, fmt.Errorf("open mosaic engine for %q: %w", r.endpoint.Collection, err)
	}
	defer func() { _ = eng.Close() }()

	cov, err = eng.Read(ctx, cfg.TypeName, p)
	if err != nil {
		return nil, fmt.Errorf("mosaic read %q: %w", r.endpoint.Collection, err)
	}
	r.logger.Debug("mosaic read done",
		"codec", cfg.Catalog.SuggestedCodec.String(),
		"width", lp.GridWidth, "height", lp.GridHeight, "duration", time.Since(start).String())
	return cov, nil
}

// layerParameters fills p's gaps from the reader defaults. A requested bbox is
// reprojected into the reader CRS. Pixel size defaults to the envelope span over
// the grid size.
func (r *Reader) layerParameters(p ReadParams) (model.LayerParameters, error) {
	lp := model.LayerParameters{
		Collection: r.endpoint.Collection,
		GridWidth:  p.Width,
		GridHeight: p.Height,
		BBox:       r.envelope,
	}
	if lp.GridWidth <= 0 {
		lp.GridWidth = r.cfg.GridWidth
	}
	if lp.GridHeight <= 0 {
		lp.GridHeight = r.cfg.GridHeight
	}
	if p.BBox != nil && p.BBox.Valid() {
		bb, err := toCRS(*p.BBox, r.crs)
		if err != nil {
			return model.LayerParameters{}, fmt.Errorf("read bbox %s for %q: %w", p.BBox, r.endpoint.Collection, err)
		}
		lp.BBox = bb
	}
	lp.MaxResolutionX = p.ResolutionX
	if lp.MaxResolutionX <= 0 {
		lp.MaxResolutionX = lp.BBox.Width() / float64(lp.GridWidth)
	}
	lp.MaxResolutionY = p.ResolutionY
	if lp.MaxResolutionY <= 0 {
		lp.MaxResolutionY = lp.BBox.Height() / float64(lp.GridHeight)
	}
	return lp, nil
}

// toCRS reprojects b into dst. An empty SRID is taken to be dst already.
func toCRS(b model.BBox, dst crs.CRS) (model.BBox, error) {
	if b.SRID == "" || b.SRID == dst.ID() {
		b.SRID = dst.ID()
		return b, nil
	}
	src, err := crs.Decode(b.SRID)
	if err != nil {
		return model.BBox{}, err
	}
	if src.EPSG == dst.EPSG {
		b.SRID = dst.ID()
		return b, nil
	}
	tr, err := crs.FindTransform(src, dst, true)
	if err != nil {
		return model.BBox{}, err
	}
	return tr.Envelope(b)
}
