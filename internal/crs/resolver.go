package crs

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
)

// ErrResolutionFailed wraps any failure to establish the target CRS of a reader.
var ErrResolutionFailed = errors.New("crs resolution failed")

// Resolver establishes the configured output CRS for a collection.
type Resolver struct {
	Target  string
	Lenient bool
}

func NewResolver(target string) *Resolver {
	return &Resolver{Target: target, Lenient: true}
}

// Resolve decodes the target CRS, transforms native into it and then replaces the bounds
// with the target's canonical full extent. The native envelope comes from one sample
// item, so only the CRS of the transformed envelope is kept, never its footprint.
func (r *Resolver) Resolve(native model.BBox) (CRS, model.BBox, error) {
	target, err := Decode(r.Target)
	if err != nil {
		return CRS{}, model.BBox{}, fmt.Errorf("%w: target %q: %w", ErrResolutionFailed, r.Target, err)
	}
	src, err := Decode(native.SRID)
	if err != nil {
		return CRS{}, model.BBox{}, fmt.Errorf("%w: native %q: %w", ErrResolutionFailed, native.SRID, err)
	}
	tr, err := FindTransform(src, target, r.Lenient)
	if err != nil {
		return CRS{}, model.BBox{}, fmt.Errorf("%w: %s -> %s: %w", ErrResolutionFailed, src.ID(), target.ID(), err)
	}
	env, err := tr.Envelope(native)
	if err != nil {
		return CRS{}, model.BBox{}, fmt.Errorf("%w: %s -> %s: %w", ErrResolutionFailed, src.ID(), target.ID(), err)
	}

	env.X1, env.Y1, env.X2, env.Y2 = target.Extent.X1, target.Extent.Y1, target.Extent.X2, target.Extent.Y2
	env.SRID = target.ID()
	return target, env, nil
}
