package raster

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
)

// SingleImageReader exposes the georeferencing of one raster file.
type SingleImageReader interface {
	Codec() Codec
	Source() string
	Envelope() model.BBox
	GridRange() model.GridRange
	GridToWorld(anchor model.PixelAnchor) model.Affine
	EPSG() int
	Close() error
}

// Opener constructs codec readers for a location.
type Opener interface {
	OpenGeoTIFF(ctx context.Context, url string) (SingleImageReader, error)
	OpenJPEG2000(ctx context.Context, url string) (SingleImageReader, error)
}

// HTTPOpener reads raster headers over HTTP range requests or from local paths.
type HTTPOpener struct {
	Client *http.Client
	// HeaderBytes is the size of the first ranged read.
	HeaderBytes int
}

var _ Opener = (*HTTPOpener)(nil)

func NewHTTPOpener(hc *http.Client, headerBytes int) *HTTPOpener {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPOpener{Client: hc, HeaderBytes: headerBytes}
}

func (o *HTTPOpener) OpenGeoTIFF(ctx context.Context, url string) (SingleImageReader, error) {
	return o.open(ctx, CodecGeoTIFF, url, parseTIFF)
}

func (o *HTTPOpener) OpenJPEG2000(ctx context.Context, url string) (SingleImageReader, error) {
	return o.open(ctx, CodecJPEG2000, url, parseJP2)
}

func (o *HTTPOpener) open(ctx context.Context, c Codec, url string, parse func(io.ReaderAt) (geoHeader, error)) (SingleImageReader, error) {
	src, err := openSource(ctx, o.Client, url, o.HeaderBytes)
	if err != nil {
		return nil, err
	}
	h, err := parse(src)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	r, err := newImageReader(c, url, h)
	// headers are fully decoded, nothing else is read from src
	_ = src.Close()
	if err != nil {
		return nil, err
	}
	return r, nil
}

// imageReader is the decoded header of one file.
type imageReader struct {
	codec  Codec
	url    string
	width  int
	height int
	epsg   int
	corner model.Affine
}

func newImageReader(c Codec, url string, h geoHeader) (*imageReader, error) {
	if h.Width <= 0 || h.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", h.Width, h.Height)
	}
	t, err := h.gridToWorld()
	if err != nil {
		return nil, err
	}
	return &imageReader{
		codec:  c,
		url:    url,
		width:  h.Width,
		height: h.Height,
		epsg:   h.EPSG,
		corner: t,
	}, nil
}

func (r *imageReader) Codec() Codec   { return r.codec }
func (r *imageReader) Source() string { return r.url }
func (r *imageReader) EPSG() int      { return r.epsg }
func (r *imageReader) Close() error   { return nil }

func (r *imageReader) GridRange() model.GridRange {
	return model.GridRange{Width: r.width, Height: r.height}
}

func (r *imageReader) GridToWorld(anchor model.PixelAnchor) model.Affine {
	if anchor == model.PixelCenter {
		return r.corner.Shift(0.5, 0.5)
	}
	return r.corner
}

// Envelope is the bounding box of the four image corners. SRID is empty when the
// file names no EPSG code.
func (r *imageReader) Envelope() model.BBox {
	b := model.BBox{
		X1: math.Inf(1), Y1: math.Inf(1),
		X2: math.Inf(-1), Y2: math.Inf(-1),
	}
	w, h := float64(r.width), float64(r.height)
	for _, p := range [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x, y := r.corner.Apply(p[0], p[1])
		b.X1, b.X2 = math.Min(b.X1, x), math.Max(b.X2, x)
		b.Y1, b.Y2 = math.Min(b.Y1, y), math.Max(b.Y2, y)
	}
	if r.epsg != 0 {
		b.SRID = "EPSG:" + strconv.Itoa(r.epsg)
	}
	return b
}
