package mosaic

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mohammed-shakir/stac-mosaic/internal/asset"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/crs"
	"github.com/mohammed-shakir/stac-mosaic/internal/raster"
	"github.com/mohammed-shakir/stac-mosaic/internal/stac"
)

// Granule is one catalog item the engine may composite.
type Granule struct {
	ID        string
	Location  string
	MediaType string
	Codec     raster.Codec
	// CRS is the granule's native CRS ("EPSG:n").
	CRS       string
	Footprint model.BBox
}

type GranuleQuery struct {
	// BBox limits granules to an area, nil means the whole collection.
	BBox     *model.BBox
	Datetime string
	Limit    int
}

// GranuleSource is what an engine queries for granules.
type GranuleSource interface {
	Granules(ctx context.Context, q GranuleQuery) ([]Granule, error)
}

// GranuleCatalog lists granules of one collection straight from the catalog.
type GranuleCatalog struct {
	searcher stac.Searcher
	endpoint model.CatalogEndpoint
	cfg      Config
	logger   *slog.Logger
}

var _ GranuleSource = (*GranuleCatalog)(nil)

func NewGranuleCatalog(logger *slog.Logger, s stac.Searcher, ep model.CatalogEndpoint, cfg Config) *GranuleCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &GranuleCatalog{searcher: s, endpoint: ep, cfg: cfg.withDefaults(), logger: logger}
}

// Granules returns the granules matching q. Items without a usable raster asset are
// skipped.
func (g *GranuleCatalog) Granules(ctx context.Context, q GranuleQuery) ([]Granule, error) {
	req := stac.SearchRequest{
		Limit:       q.Limit,
		Collections: []string{g.endpoint.Collection},
		Datetime:    q.Datetime,
	}
	if req.Limit <= 0 || req.Limit > g.cfg.GranuleLimit {
		req.Limit = g.cfg.GranuleLimit
	}
	if q.BBox != nil {
		bb, err := toWGS84(*q.BBox)
		if err != nil {
			return nil, fmt.Errorf("granule query bbox: %w", err)
		}
		req.BBox = bb.Slice()
	}

	res, err := g.searcher.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]Granule, 0, len(res.Features))
	for _, it := range res.Features {
		gr, err := g.granule(it)
		if err != nil {
			g.logger.Debug("granule skipped", "collection", g.endpoint.Collection, "err", err)
			continue
		}
		out = append(out, gr)
	}
	g.logger.Debug("granules listed",
		"collection", g.endpoint.Collection, "features", len(res.Features), "granules", len(out))
	return out, nil
}

func (g *GranuleCatalog) granule(it *stac.Item) (Granule, error) {
	if it == nil {
		return Granule{}, fmt.Errorf("nil item")
	}
	desc, err := asset.Select(it)
	if err != nil {
		return Granule{}, err
	}
	codec, err := raster.CodecFor(desc.MediaType)
	if err != nil {
		return Granule{}, fmt.Errorf("item %q: %w", it.ID, err)
	}
	gr := Granule{
		ID:        it.ID,
		Location:  desc.URL,
		MediaType: desc.MediaType,
		Codec:     codec,
		CRS:       g.cfg.TargetCRS,
	}
	if code := it.EPSG(); code != 0 {
		gr.CRS = "EPSG:" + strconv.Itoa(code)
	}
	if len(it.BBox) >= 4 {
		// 2D [w,s,e,n] or 3D [w,s,zmin,e,n,zmax]
		if len(it.BBox) >= 6 {
			gr.Footprint = model.BBox{X1: it.BBox[0], Y1: it.BBox[1], X2: it.BBox[3], Y2: it.BBox[4], SRID: "EPSG:4326"}
		} else {
			gr.Footprint = model.BBox{X1: it.BBox[0], Y1: it.BBox[1], X2: it.BBox[2], Y2: it.BBox[3], SRID: "EPSG:4326"}
		}
	}
	return gr, nil
}

// toWGS84 reprojects b for the catalog's bbox filter.
func toWGS84(b model.BBox) (model.BBox, error) {
	if b.SRID == "" || b.SRID == "EPSG:4326" {
		b.SRID = "EPSG:4326"
		return b, nil
	}
	src, err := crs.Decode(b.SRID)
	if err != nil {
		return model.BBox{}, err
	}
	dst, err := crs.ForEPSG(4326)
	if err != nil {
		return model.BBox{}, err
	}
	tr, err := crs.FindTransform(src, dst, true)
	if err != nil {
		return model.BBox{}, err
	}
	return tr.Envelope(b)
}
