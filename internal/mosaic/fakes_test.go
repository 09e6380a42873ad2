package mosaic

import (
	"context"
	"errors"
	"sync"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/raster"
	"github.com/mohammed-shakir/stac-mosaic/internal/stac"
)

type fakeSearcher struct {
	mu       sync.Mutex
	features []*stac.Item
	err      error
	requests []stac.SearchRequest
}

func (f *fakeSearcher) Search(_ context.Context, req stac.SearchRequest) (*stac.ItemCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	n := len(f.features)
	if req.Limit > 0 && req.Limit < n {
		n = req.Limit
	}
	return &stac.ItemCollection{Type: "FeatureCollection", Features: f.features[:n]}, nil
}

func stacItem(id, mediaType, href string, epsg int) *stac.Item {
	it := &stac.Item{
		Type: "Feature", ID: id,
		BBox:   []float64{14.1, 46.9, 15.4, 47.8},
		Assets: map[string]stac.Asset{"B4": {Href: href, Type: mediaType, Roles: []string{"data"}}},
	}
	if epsg != 0 {
		it.Properties = map[string]any{"proj:epsg": float64(epsg)}
	}
	return it
}

// fakeImage is a 100x100 UTM 33N image with 30m pixels.
type fakeImage struct {
	codec raster.Codec
	url   string
	srid  string
}

func (f *fakeImage) Codec() raster.Codec { return f.codec }
func (f *fakeImage) Source() string      { return f.url }
func (f *fakeImage) EPSG() int           { return 32633 }
func (f *fakeImage) Close() error        { return nil }
func (f *fakeImage) GridRange() model.GridRange {
	return model.GridRange{Width: 100, Height: 100}
}
func (f *fakeImage) GridToWorld(anchor model.PixelAnchor) model.Affine {
	t := model.Affine{A: 30, C: 500000, E: -30, F: 5300000}
	if anchor == model.PixelCenter {
		return t.Shift(0.5, 0.5)
	}
	return t
}
func (f *fakeImage) Envelope() model.BBox {
	return model.BBox{X1: 500000, Y1: 5297000, X2: 503000, Y2: 5300000, SRID: f.srid}
}

type fakeOpener struct {
	mu    sync.Mutex
	calls []string
	err   error
	srid  string
}

func (f *fakeOpener) open(c raster.Codec, url string) (raster.SingleImageReader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c.String()+":"+url)
	if f.err != nil {
		return nil, f.err
	}
	srid := f.srid
	if srid == "" {
		srid = "EPSG:32633"
	}
	if srid == "none" {
		srid = ""
	}
	return &fakeImage{codec: c, url: url, srid: srid}, nil
}

func (f *fakeOpener) OpenGeoTIFF(_ context.Context, url string) (raster.SingleImageReader, error) {
	return f.open(raster.CodecGeoTIFF, url)
}

func (f *fakeOpener) OpenJPEG2000(_ context.Context, url string) (raster.SingleImageReader, error) {
	return f.open(raster.CodecJPEG2000, url)
}

func (f *fakeOpener) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeCoverage struct {
	env  model.BBox
	grid model.GridRange
}

func (c *fakeCoverage) Envelope() model.BBox       { return c.env }
func (c *fakeCoverage) GridRange() model.GridRange { return c.grid }

// fakeEngines opens the first granule through the opener on every read.
type fakeEngines struct {
	mu      sync.Mutex
	configs []*Configuration
	failing int
	closed  int
}

type fakeEngine struct {
	parent   *fakeEngines
	cfg      *Configuration
	granules GranuleSource
	opener   GranuleOpener
}

func (f *fakeEngines) Open(cfg *Configuration, granules GranuleSource, opener GranuleOpener) (Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	return &fakeEngine{parent: f, cfg: cfg, granules: granules, opener: opener}, nil
}

func (f *fakeEngines) last() *Configuration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.configs) == 0 {
		return nil
	}
	return f.configs[len(f.configs)-1]
}

func (e *fakeEngine) Read(ctx context.Context, typeName string, p ReadParams) (Coverage, error) {
	e.parent.mu.Lock()
	fail := e.parent.failing > 0
	if fail {
		e.parent.failing--
	}
	e.parent.mu.Unlock()
	if fail {
		return nil, errors.New("engine exploded")
	}
	if typeName != e.cfg.TypeName {
		return nil, errors.New("type name mismatch")
	}
	gs, err := e.granules.Granules(ctx, GranuleQuery{BBox: p.BBox, Limit: 10})
	if err != nil {
		return nil, err
	}
	if len(gs) == 0 {
		return nil, errors.New("no granules")
	}
	img, err := e.opener.OpenCodec(ctx, e.cfg.Catalog.SuggestedCodec, gs[0].Location)
	if err != nil {
		return nil, err
	}
	defer func() { _ = img.Close() }()
	return &fakeCoverage{env: img.Envelope(), grid: model.GridRange{Width: p.Width, Height: p.Height}}, nil
}

func (e *fakeEngine) Close() error {
	e.parent.mu.Lock()
	e.parent.closed++
	e.parent.mu.Unlock()
	return nil
}
