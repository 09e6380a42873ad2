package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
)

// TIFF tag IDs.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
)

// GeoKey IDs and values.
const (
	gkRasterType       = 1025
	gkGeographicType   = 2048
	gkProjectedCSType  = 3072
	rasterPixelIsPoint = 2
	geoKeyUserDefined  = 32767
)

const (
	classicTIFFMagic    = 42
	bigTIFFMagic        = 43
	classicEntrySize    = 12
	bigTIFFEntrySize    = 20
	classicInlineLength = 4
	bigTIFFInlineLength = 8
	maxEntriesPerIFD    = 4096
	maxTagValueBytes    = 1 << 20
)

// TIFF data types.
const (
	dtByte   = 1
	dtASCII  = 2
	dtShort  = 3
	dtLong   = 4
	dtSByte  = 6
	dtUndef  = 7
	dtSShort = 8
	dtSLong  = 9
	dtFloat  = 11
	dtDouble = 12
	dtLong8  = 16
	dtSLong8 = 17
	dtIFD8   = 18
)

var errNotGeoreferenced = errors.New("image carries no georeferencing")

// geoHeader is the georeferencing read from the first image directory.
type geoHeader struct {
	Width, Height  int
	EPSG           int
	PixelIsPoint   bool
	PixelScale     []float64
	Tiepoint       []float64
	Transformation []float64
}

type tiffEntry struct {
	tag   uint16
	dt    uint16
	count uint64
	value []byte
}

// parseTIFF reads the header and first IFD of a classic or Big TIFF.
func parseTIFF(r io.ReaderAt) (geoHeader, error) {
	var hdr [16]byte
	if _, err := r.ReadAt(hdr[:8], 0); err != nil {
		return geoHeader{}, fmt.Errorf("reading TIFF header: %w", err)
	}

	var bo binary.ByteOrder
	switch string(hdr[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return geoHeader{}, fmt.Errorf("invalid TIFF byte order: %x", hdr[0:2])
	}

	var ifdOff uint64
	big := false
	switch magic := bo.Uint16(hdr[2:4]); magic {
	case classicTIFFMagic:
		ifdOff = uint64(bo.Uint32(hdr[4:8]))
	case bigTIFFMagic:
		big = true
		if _, err := r.ReadAt(hdr[8:16], 8); err != nil {
			return geoHeader{}, fmt.Errorf("reading BigTIFF header: %w", err)
		}
		ifdOff = bo.Uint64(hdr[8:16])
	default:
		return geoHeader{}, fmt.Errorf("invalid TIFF magic: %d", magic)
	}

	entries, err := readIFD(r, bo, ifdOff, big)
	if err != nil {
		return geoHeader{}, fmt.Errorf("parsing IFD at offset %d: %w", ifdOff, err)
	}
	return buildGeoHeader(entries, bo), nil
}

func readIFD(r io.ReaderAt, bo binary.ByteOrder, off uint64, big bool) ([]tiffEntry, error) {
	countLen, entrySize, inline := 2, classicEntrySize, classicInlineLength
	if big {
		countLen, entrySize, inline = 8, bigTIFFEntrySize, bigTIFFInlineLength
	}

	buf := make([]byte, countLen)
	if _, err := r.ReadAt(buf, int64(off)); err != nil {
		return nil, err
	}
	var n uint64
	if big {
		n = bo.Uint64(buf)
	} else {
		n = uint64(bo.Uint16(buf))
	}
	if n == 0 || n > maxEntriesPerIFD {
		return nil, fmt.Errorf("implausible entry count %d", n)
	}

	raw := make([]byte, int(n)*entrySize)
	if _, err := r.ReadAt(raw, int64(off)+int64(countLen)); err != nil {
		return nil, err
	}

	entries := make([]tiffEntry, 0, n)
	for i := 0; i < int(n); i++ {
		b := raw[i*entrySize : (i+1)*entrySize]
		e := tiffEntry{tag: bo.Uint16(b[0:2]), dt: bo.Uint16(b[2:4])}
		var val []byte
		if big {
			e.count = bo.Uint64(b[4:12])
			val = b[12:20]
		} else {
			e.count = uint64(bo.Uint32(b[4:8]))
			val = b[8:12]
		}
		if !wanted(e.tag) {
			continue
		}

		elem := uint64(dataTypeSize(e.dt))
		if e.count > maxTagValueBytes/elem {
			return nil, fmt.Errorf("tag %d: %d values of %d bytes", e.tag, e.count, elem)
		}
		size := e.count * elem
		if size <= uint64(inline) {
			e.value = append([]byte(nil), val...)
		} else {
			var at uint64
			if big {
				at = bo.Uint64(val)
			} else {
				at = uint64(bo.Uint32(val))
			}
			e.value = make([]byte, size)
			if _, err := r.ReadAt(e.value, int64(at)); err != nil {
				return nil, fmt.Errorf("resolving entry tag %d: %w", e.tag, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func wanted(tag uint16) bool {
	switch tag {
	case tagImageWidth, tagImageLength, tagModelPixelScale, tagModelTiepoint,
		tagModelTransformation, tagGeoKeyDirectory:
		return true
	}
	return false
}

func dataTypeSize(dt uint16) int {
	switch dt {
	case dtByte, dtASCII, dtSByte, dtUndef:
		return 1
	case dtShort, dtSShort:
		return 2
	case dtLong, dtSLong, dtFloat:
		return 4
	case dtDouble, dtLong8, dtSLong8, dtIFD8:
		return 8
	default:
		return 1
	}
}

func buildGeoHeader(entries []tiffEntry, bo binary.ByteOrder) geoHeader {
	var h geoHeader
	for _, e := range entries {
		switch e.tag {
		case tagImageWidth:
			h.Width = int(getUint(e, bo))
		case tagImageLength:
			h.Height = int(getUint(e, bo))
		case tagModelPixelScale:
			h.PixelScale = getFloat64Slice(e, bo)
		case tagModelTiepoint:
			h.Tiepoint = getFloat64Slice(e, bo)
		case tagModelTransformation:
			h.Transformation = getFloat64Slice(e, bo)
		case tagGeoKeyDirectory:
			h.EPSG, h.PixelIsPoint = parseGeoKeys(getUint16Slice(e, bo))
		}
	}
	return h
}

func getUint(e tiffEntry, bo binary.ByteOrder) uint64 {
	switch e.dt {
	case dtShort:
		return uint64(bo.Uint16(e.value))
	case dtLong:
		return uint64(bo.Uint32(e.value))
	case dtLong8:
		return bo.Uint64(e.value)
	default:
		return uint64(e.value[0])
	}
}

func getUint16Slice(e tiffEntry, bo binary.ByteOrder) []uint16 {
	if e.dt != dtShort {
		return nil
	}
	out := make([]uint16, valueCount(e, 2))
	for i := range out {
		out[i] = bo.Uint16(e.value[i*2:])
	}
	return out
}

func getFloat64Slice(e tiffEntry, bo binary.ByteOrder) []float64 {
	elem := 8
	if e.dt == dtFloat {
		elem = 4
	}
	out := make([]float64, valueCount(e, elem))
	for i := range out {
		switch e.dt {
		case dtDouble:
			out[i] = math.Float64frombits(bo.Uint64(e.value[i*8:]))
		case dtFloat:
			out[i] = float64(math.Float32frombits(bo.Uint32(e.value[i*4:])))
		default:
			return nil
		}
	}
	return out
}

// valueCount is e.count bounded by the bytes actually held.
func valueCount(e tiffEntry, elem int) int {
	n := uint64(len(e.value) / elem)
	if e.count < n {
		n = e.count
	}
	return int(n)
}

// parseGeoKeys reads the EPSG code and raster type from a GeoKeyDirectory.
func parseGeoKeys(keys []uint16) (epsg int, pixelIsPoint bool) {
	if len(keys) < 4 {
		return 0, false
	}
	// header: KeyDirectoryVersion, KeyRevision, MinorRevision, NumberOfKeys
	n := int(keys[3])
	var geographic, projected int
	for i := 0; i < n; i++ {
		base := 4 + i*4
		if base+3 >= len(keys) {
			break
		}
		id, loc, val := keys[base], keys[base+1], keys[base+3]
		if loc != 0 {
			// value lives in another tag, not a short code
			continue
		}
		switch id {
		case gkRasterType:
			pixelIsPoint = val == rasterPixelIsPoint
		case gkProjectedCSType:
			if val != 0 && val != geoKeyUserDefined {
				projected = int(val)
			}
		case gkGeographicType:
			if val != 0 && val != geoKeyUserDefined {
				geographic = int(val)
			}
		}
	}
	if projected != 0 {
		return projected, pixelIsPoint
	}
	return geographic, pixelIsPoint
}

// gridToWorld returns the pixel-corner anchored transform of the image.
func (h geoHeader) gridToWorld() (model.Affine, error) {
	var t model.Affine
	switch {
	case len(h.Transformation) >= 16:
		m := h.Transformation
		t = model.Affine{A: m[0], B: m[1], C: m[3], D: m[4], E: m[5], F: m[7]}
	case len(h.PixelScale) >= 2 && len(h.Tiepoint) >= 6:
		sx, sy := h.PixelScale[0], h.PixelScale[1]
		i, j, x, y := h.Tiepoint[0], h.Tiepoint[1], h.Tiepoint[3], h.Tiepoint[4]
		t = model.Affine{A: sx, C: x - i*sx, E: -sy, F: y + j*sy}
	default:
		return model.Affine{}, errNotGeoreferenced
	}
	if t.A == 0 && t.B == 0 || t.D == 0 && t.E == 0 {
		return model.Affine{}, fmt.Errorf("degenerate grid-to-world transform %+v", t)
	}
	if h.PixelIsPoint {
		// tiepoints reference pixel centers
		t = t.Shift(-0.5, -0.5)
	}
	return t, nil
}
