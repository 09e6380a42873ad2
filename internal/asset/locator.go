// Package asset picks the raster asset of a catalog item that the reader opens.
package asset

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/raster"
	"github.com/mohammed-shakir/stac-mosaic/internal/stac"
)

// ErrNoAssetFound means the item carries no raster-typed asset.
var ErrNoAssetFound = errors.New("no raster asset found")

// Select returns one raster asset of item. The choice is stable: assets are visited in
// key order, codec-backed media types win over other image/* types, and preview roles
// are never picked as a fallback. Classification only looks at the declared type, the
// href is never inspected.
func Select(item *stac.Item) (model.AssetDescriptor, error) {
	if item == nil {
		return model.AssetDescriptor{}, fmt.Errorf("%w: nil item", ErrNoAssetFound)
	}

	keys := make([]string, 0, len(item.Assets))
	for k := range item.Assets {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var fallback *model.AssetDescriptor
	for _, k := range keys {
		a := item.Assets[k]
		if a.Href == "" || !isRaster(a.Type) {
			continue
		}
		d := model.AssetDescriptor{MediaType: a.Type, URL: a.Href}
		if _, err := raster.CodecFor(a.Type); err == nil {
			return d, nil
		}
		if fallback == nil && !isPreview(a.Roles) {
			fallback = &d
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return model.AssetDescriptor{}, fmt.Errorf("%w: item %q has %d assets, none raster-typed",
		ErrNoAssetFound, item.ID, len(item.Assets))
}

func isRaster(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

func isPreview(roles []string) bool {
	for _, r := range roles {
		if r == "thumbnail" || r == "overview" || r == "visual-preview" {
			return true
		}
	}
	return false
}
