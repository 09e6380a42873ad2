// Package model defines core domain types shared across the service.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrEndpointParse reports a construction URI that does not name a catalog and collection.
var ErrEndpointParse = errors.New("malformed catalog endpoint")

// CatalogEndpoint is the catalog base URL plus the collection served by one reader.
type CatalogEndpoint struct {
	BaseURL    string
	Collection string
}

// ParseEndpoint splits "<catalog-base-url>?<collection-id>" on the first '?'.
// The collection is kept verbatim, no query decoding is applied.
func ParseEndpoint(uri string) (CatalogEndpoint, error) {
	i := strings.IndexByte(uri, '?')
	if i <= 0 {
		return CatalogEndpoint{}, fmt.Errorf("%w: %q has no '?<collection>' suffix", ErrEndpointParse, uri)
	}
	base, coll := uri[:i], uri[i+1:]
	if coll == "" {
		return CatalogEndpoint{}, fmt.Errorf("%w: %q has an empty collection", ErrEndpointParse, uri)
	}
	return CatalogEndpoint{BaseURL: base, Collection: coll}, nil
}

func (e CatalogEndpoint) String() string {
	return e.BaseURL + "?" + e.Collection
}

// AssetDescriptor is the raster asset picked from a catalog item.
type AssetDescriptor struct {
	MediaType string
	URL       string
}

// BBox is an envelope in the CRS named by SRID ("EPSG:4326" style).
type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Valid reports finite, ordered bounds.
func (b BBox) Valid() bool {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Slice returns [minx, miny, maxx, maxy] for catalog bbox parameters.
func (b BBox) Slice() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

// GridRange is the pixel extent of a coverage.
type GridRange struct {
	X, Y          int
	Width, Height int
}

// PixelAnchor selects which point of a pixel the grid-to-world transform maps to.
type PixelAnchor int

const (
	PixelCorner PixelAnchor = iota
	PixelCenter
)

func (a PixelAnchor) String() string {
	if a == PixelCenter {
		return "center"
	}
	return "corner"
}

// Affine maps pixel (col,row) to world (x,y):
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

func (t Affine) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// Shift translates the pixel origin by (dc, dr) pixels.
func (t Affine) Shift(dc, dr float64) Affine {
	x, y := t.Apply(dc, dr)
	out := t
	out.C, out.F = x, y
	return out
}

// LayerParameters are the request-scoped values of one read.
type LayerParameters struct {
	Collection string
	GridWidth  int
	GridHeight int
	// pixel size of the single resolution level
	MaxResolutionX float64
	MaxResolutionY float64
	BBox           BBox
}
