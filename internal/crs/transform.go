package crs

import (
	"fmt"
	"math"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
)

// samples per envelope edge when densifying
const edgeSamples = 21

// Transform maps coordinates from Source to Target.
type Transform struct {
	Source CRS
	Target CRS
	// Approximate is set when a datum shift was ignored (lenient lookup).
	Approximate bool
}

// FindTransform returns the transform from src to dst. Datums other than WGS84 have no
// shift parameters here, so a datum change is only accepted when lenient is set.
func FindTransform(src, dst CRS, lenient bool) (Transform, error) {
	if src.proj == nil || dst.proj == nil {
		return Transform{}, fmt.Errorf("%w: undecoded crs in transform %s -> %s", ErrUnsupported, src.ID(), dst.ID())
	}
	approx := src.Datum != dst.Datum
	if approx && !lenient {
		return Transform{}, fmt.Errorf("no datum shift from %s (%s) to %s (%s)", src.ID(), src.Datum, dst.ID(), dst.Datum)
	}
	return Transform{Source: src, Target: dst, Approximate: approx}, nil
}

func (t Transform) Identity() bool { return t.Source.EPSG == t.Target.EPSG }

func (t Transform) Point(x, y float64) (float64, float64, error) {
	if t.Identity() {
		return x, y, nil
	}
	lon, lat := t.Source.proj.ToWGS84(x, y)
	ox, oy := t.Target.proj.FromWGS84(lon, lat)
	if !finite(ox) || !finite(oy) {
		return 0, 0, fmt.Errorf("point (%g,%g) has no image in %s", x, y, t.Target.ID())
	}
	return ox, oy, nil
}

// Envelope transforms b by sampling its edges and returns the bounding box of the result.
func (t Transform) Envelope(b model.BBox) (model.BBox, error) {
	if !b.Valid() {
		return model.BBox{}, fmt.Errorf("invalid envelope %s", b)
	}
	out := model.BBox{
		X1: math.Inf(1), Y1: math.Inf(1),
		X2: math.Inf(-1), Y2: math.Inf(-1),
		SRID: t.Target.ID(),
	}
	add := func(x, y float64) error {
		ox, oy, err := t.Point(x, y)
		if err != nil {
			return err
		}
		out.X1, out.X2 = math.Min(out.X1, ox), math.Max(out.X2, ox)
		out.Y1, out.Y2 = math.Min(out.Y1, oy), math.Max(out.Y2, oy)
		return nil
	}
	for i := 0; i < edgeSamples; i++ {
		f := float64(i) / float64(edgeSamples-1)
		x := b.X1 + f*b.Width()
		y := b.Y1 + f*b.Height()
		for _, p := range [4][2]float64{{x, b.Y1}, {x, b.Y2}, {b.X1, y}, {b.X2, y}} {
			if err := add(p[0], p[1]); err != nil {
				return model.BBox{}, err
			}
		}
	}
	if !out.Valid() {
		return model.BBox{}, fmt.Errorf("envelope %s collapses in %s", b, t.Target.ID())
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
