package mosaic

import (
	"errors"
	"fmt"
	"math"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/crs"
	"github.com/mohammed-shakir/stac-mosaic/internal/raster"
)

// ErrConfigurationIncomplete is returned instead of a partially built configuration.
var ErrConfigurationIncomplete = errors.New("mosaic configuration incomplete")

const (
	// DBType names the catalog-backed granule index.
	DBType = "stac-mosaic"
	// PathTypeURL marks granule locations as URLs rather than filesystem paths.
	PathTypeURL = "url"
	// CollectorReprojecting reprojects each granule into the mosaic CRS before compositing.
	CollectorReprojecting = "reprojecting"
)

// CatalogProperties point the engine's granule catalog at the STAC endpoint.
type CatalogProperties struct {
	ServiceURL        string
	Collection        string
	DBType            string
	Namespace         string
	LocationAttribute string
	PathType          string
	SuggestedCodec    raster.Codec
	Heterogeneous     bool
	HeterogeneousCRS  bool
	Caching           bool
}

// Level is the pixel size of one resolution level.
type Level struct {
	X, Y float64
}

// Configuration is everything the engine needs for one read. It is not modified after
// Build returns it.
type Configuration struct {
	TypeName               string
	CRS                    crs.CRS
	CRSAttribute           string
	Levels                 []Level
	GranuleCollector       string
	ExpandToRGB            bool
	CheckAuxiliaryMetadata bool
	Catalog                CatalogProperties
}

// Validate reports the first missing required property.
func (c *Configuration) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil configuration", ErrConfigurationIncomplete)
	case c.TypeName == "":
		return fmt.Errorf("%w: type name", ErrConfigurationIncomplete)
	case c.CRS.IsZero():
		return fmt.Errorf("%w: crs", ErrConfigurationIncomplete)
	case c.CRSAttribute == "":
		return fmt.Errorf("%w: crs attribute", ErrConfigurationIncomplete)
	case len(c.Levels) == 0:
		return fmt.Errorf("%w: resolution levels", ErrConfigurationIncomplete)
	case c.Catalog.ServiceURL == "" || c.Catalog.Collection == "":
		return fmt.Errorf("%w: catalog endpoint", ErrConfigurationIncomplete)
	case c.Catalog.LocationAttribute == "":
		return fmt.Errorf("%w: location attribute", ErrConfigurationIncomplete)
	case c.Catalog.SuggestedCodec == 0:
		return fmt.Errorf("%w: suggested codec", ErrConfigurationIncomplete)
	}
	for _, l := range c.Levels {
		if !(l.X > 0 && l.Y > 0) || math.IsInf(l.X, 0) || math.IsInf(l.Y, 0) {
			return fmt.Errorf("%w: resolution %gx%g", ErrConfigurationIncomplete, l.X, l.Y)
		}
	}
	return nil
}

// Builder assembles configurations for one catalog endpoint.
type Builder struct {
	cfg      Config
	endpoint model.CatalogEndpoint
}

func NewBuilder(cfg Config, ep model.CatalogEndpoint) *Builder {
	return &Builder{cfg: cfg.withDefaults(), endpoint: ep}
}

// Build returns the configuration for lp with the codec hint taken from desc.
func (b *Builder) Build(lp model.LayerParameters, desc model.AssetDescriptor) (*Configuration, error) {
	target, err := crs.Decode(b.cfg.TargetCRS)
	if err != nil {
		return nil, fmt.Errorf("%w: crs %q: %w", ErrConfigurationIncomplete, b.cfg.TargetCRS, err)
	}
	codec, err := raster.CodecFor(desc.MediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: asset %s: %w", ErrConfigurationIncomplete, desc.URL, err)
	}

	coll := lp.Collection
	if coll == "" {
		coll = b.endpoint.Collection
	}
	cfg := &Configuration{
		TypeName:         b.cfg.TypeName,
		CRS:              target,
		CRSAttribute:     b.cfg.CRSAttribute,
		Levels:           []Level{{X: lp.MaxResolutionX, Y: lp.MaxResolutionY}},
		GranuleCollector: CollectorReprojecting,
		Catalog: CatalogProperties{
			ServiceURL:        b.endpoint.BaseURL,
			Collection:        coll,
			DBType:            DBType,
			Namespace:         b.cfg.TypeName,
			LocationAttribute: b.cfg.LocationAttribute,
			PathType:          PathTypeURL,
			SuggestedCodec:    codec,
			Heterogeneous:     true,
			HeterogeneousCRS:  true,
			Caching:           false,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
