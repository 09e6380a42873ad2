// Package mosaic turns a catalog collection into a mosaic configuration and reads
// coverages through an external mosaic engine.
package mosaic

import (
	"github.com/mohammed-shakir/stac-mosaic/internal/core/config"
)

// Config is the static configuration owned by one reader.
type Config struct {
	TargetCRS         string
	GridWidth         int
	GridHeight        int
	LocationAttribute string
	TypeName          string
	CRSAttribute      string
	// GranuleLimit caps the items a granule query returns.
	GranuleLimit int
}

func DefaultConfig() Config {
	return Config{
		TargetCRS:         "EPSG:4326",
		GridWidth:         1000,
		GridHeight:        500,
		LocationAttribute: "location",
		TypeName:          "stac_mosaic",
		CRSAttribute:      "crs",
		GranuleLimit:      10000,
	}
}

// ConfigFrom copies the reader settings out of the process configuration.
func ConfigFrom(c config.Config) Config {
	return Config{
		TargetCRS:         c.TargetCRS,
		GridWidth:         c.GridWidthDefault,
		GridHeight:        c.GridHeightDefault,
		LocationAttribute: c.LocationAttribute,
		TypeName:          c.TypeName,
		CRSAttribute:      c.CRSAttribute,
		GranuleLimit:      c.GranuleLimit,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetCRS == "" {
		c.TargetCRS = d.TargetCRS
	}
	if c.GridWidth <= 0 {
		c.GridWidth = d.GridWidth
	}
	if c.GridHeight <= 0 {
		c.GridHeight = d.GridHeight
	}
	if c.LocationAttribute == "" {
		c.LocationAttribute = d.LocationAttribute
	}
	if c.TypeName == "" {
		c.TypeName = d.TypeName
	}
	if c.CRSAttribute == "" {
		c.CRSAttribute = d.CRSAttribute
	}
	if c.GranuleLimit <= 0 {
		c.GranuleLimit = d.GranuleLimit
	}
	return c
}
