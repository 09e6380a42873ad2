// Package raster opens single georeferenced images and reports their header metadata.
package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedAssetType is returned for media types without a codec reader.
	ErrUnsupportedAssetType = errors.New("unsupported asset type")
	// ErrRasterOpenFailed wraps any failure to construct a codec reader.
	ErrRasterOpenFailed = errors.New("raster open failed")
)

// Codec names a single-image reader implementation.
type Codec int

const (
	CodecGeoTIFF Codec = iota + 1
	CodecJPEG2000
)

func (c Codec) String() string {
	switch c {
	case CodecGeoTIFF:
		return "geotiff"
	case CodecJPEG2000:
		return "jpeg2000"
	default:
		return "unknown"
	}
}

// media type -> codec, matched on the exact string
var codecs = map[string]Codec{
	"image/jp2":              CodecJPEG2000,
	"image/vnd.stac.geotiff": CodecGeoTIFF,
	"image/x.geotiff":        CodecGeoTIFF,
}

// CodecFor returns the codec registered for mediaType.
func CodecFor(mediaType string) (Codec, error) {
	c, ok := codecs[mediaType]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAssetType, mediaType)
	}
	return c, nil
}

// MediaTypes lists the media types with a codec reader.
func MediaTypes() []string {
	out := make([]string, 0, len(codecs))
	for mt := range codecs {
		out = append(out, mt)
	}
	return out
}
