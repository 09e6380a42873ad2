// Package crs decodes coordinate reference system identifiers and transforms
// envelopes between them. All supported systems share the WGS84 ellipsoid and
// transforms pivot through geographic WGS84 coordinates.
package crs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
)

// ErrUnsupported is returned for identifiers that do not decode to a known CRS.
var ErrUnsupported = errors.New("unsupported crs")

const (
	datumWGS84 = "WGS84"
	datumNAD83 = "NAD83"
)

// CRS is a decoded coordinate reference system.
type CRS struct {
	EPSG       int
	Name       string
	Geographic bool
	Datum      string
	// Extent is the canonical full extent in the CRS's own units.
	Extent model.BBox
	proj   Projection
}

func (c CRS) ID() string { return "EPSG:" + strconv.Itoa(c.EPSG) }

func (c CRS) String() string { return c.ID() + " (" + c.Name + ")" }

func (c CRS) IsZero() bool { return c.EPSG == 0 }

// Decode parses "EPSG:n", "urn:ogc:def:crs:EPSG::n", ".../def/crs/EPSG/0/n" and "CRS:84".
func Decode(id string) (CRS, error) {
	s := strings.ToUpper(strings.TrimSpace(id))
	switch {
	case s == "":
		return CRS{}, fmt.Errorf("%w: empty identifier", ErrUnsupported)
	case s == "CRS:84" || s == "URN:OGC:DEF:CRS:OGC:1.3:CRS84":
		return ForEPSG(4326)
	case strings.HasPrefix(s, "EPSG:"), strings.HasPrefix(s, "URN:OGC:DEF:CRS:EPSG:"):
		code := s[strings.LastIndexByte(s, ':')+1:]
		return decodeCode(id, code)
	case strings.Contains(s, "/DEF/CRS/EPSG/"):
		code := s[strings.LastIndexByte(s, '/')+1:]
		return decodeCode(id, code)
	default:
		return CRS{}, fmt.Errorf("%w: %q", ErrUnsupported, id)
	}
}

func decodeCode(id, code string) (CRS, error) {
	n, err := strconv.Atoi(code)
	if err != nil {
		return CRS{}, fmt.Errorf("%w: %q: bad code: %w", ErrUnsupported, id, err)
	}
	return ForEPSG(n)
}

// ForEPSG returns the CRS for a numeric EPSG code.
func ForEPSG(code int) (CRS, error) {
	switch {
	case code == 4326:
		return CRS{
			EPSG: 4326, Name: "WGS 84", Geographic: true, Datum: datumWGS84,
			Extent: model.BBox{X1: -180, Y1: -90, X2: 180, Y2: 90, SRID: "EPSG:4326"},
			proj:   geographic{},
		}, nil
	case code == 4269:
		return CRS{
			EPSG: 4269, Name: "NAD83", Geographic: true, Datum: datumNAD83,
			Extent: model.BBox{X1: -180, Y1: -90, X2: 180, Y2: 90, SRID: "EPSG:4269"},
			proj:   geographic{},
		}, nil
	case code == 3857:
		return CRS{
			EPSG: 3857, Name: "WGS 84 / Pseudo-Mercator", Datum: datumWGS84,
			Extent: model.BBox{X1: -originShift, Y1: -originShift, X2: originShift, Y2: originShift, SRID: "EPSG:3857"},
			proj:   webMercator{},
		}, nil
	case code >= 32601 && code <= 32660:
		zone := code - 32600
		return CRS{
			EPSG: code, Name: fmt.Sprintf("WGS 84 / UTM zone %dN", zone), Datum: datumWGS84,
			Extent: model.BBox{X1: 166021.44, Y1: 0, X2: 833978.56, Y2: 9329005.18, SRID: "EPSG:" + strconv.Itoa(code)},
			proj:   utm{zone: zone},
		}, nil
	case code >= 32701 && code <= 32760:
		zone := code - 32700
		return CRS{
			EPSG: code, Name: fmt.Sprintf("WGS 84 / UTM zone %dS", zone), Datum: datumWGS84,
			Extent: model.BBox{X1: 166021.44, Y1: 1116915.04, X2: 833978.56, Y2: 10000000, SRID: "EPSG:" + strconv.Itoa(code)},
			proj:   utm{zone: zone, south: true},
		}, nil
	default:
		return CRS{}, fmt.Errorf("%w: EPSG:%d", ErrUnsupported, code)
	}
}
