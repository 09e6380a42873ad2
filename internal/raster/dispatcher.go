package raster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
)

// Dispatcher picks the codec reader for an asset by its media type.
type Dispatcher struct {
	opener Opener
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger, opener Opener) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{opener: opener, logger: logger}
}

// Open returns a reader for desc. Unknown media types fail with ErrUnsupportedAssetType,
// codec failures are wrapped in ErrRasterOpenFailed.
func (d *Dispatcher) Open(ctx context.Context, desc model.AssetDescriptor) (SingleImageReader, error) {
	c, err := CodecFor(desc.MediaType)
	if err != nil {
		return nil, fmt.Errorf("%w, asset %s", err, desc.URL)
	}
	return d.OpenCodec(ctx, c, desc.URL)
}

// OpenCodec opens url with the reader for c.
func (d *Dispatcher) OpenCodec(ctx context.Context, c Codec, url string) (SingleImageReader, error) {
	var (
		r   SingleImageReader
		err error
	)
	switch c {
	case CodecGeoTIFF:
		r, err = d.opener.OpenGeoTIFF(ctx, url)
	case CodecJPEG2000:
		r, err = d.opener.OpenJPEG2000(ctx, url)
	default:
		return nil, fmt.Errorf("%w: codec %s, asset %s", ErrUnsupportedAssetType, c, url)
	}
	observability.IncRasterOpen(c.String(), err)
	if err != nil {
		d.logger.Warn("raster open failed", "codec", c.String(), "url", url, "err", err)
		return nil, fmt.Errorf("%w: %s reader for %s: %w", ErrRasterOpenFailed, c, url, err)
	}
	d.logger.Debug("raster opened", "codec", c.String(), "url", url,
		"width", r.GridRange().Width, "height", r.GridRange().Height, "epsg", r.EPSG())
	return r, nil
}
