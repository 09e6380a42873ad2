package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	boxSignature = "jP  "
	boxHeader    = "jp2h"
	boxImageHdr  = "ihdr"
	boxUUID      = "uuid"
	boxCodestrm  = "jp2c"

	jp2Magic    = 0x0D0A870A
	maxJP2Boxes = 256
)

// GeoJP2 carries a degenerate GeoTIFF in a uuid box with this id.
var geoJP2UUID = []byte{
	0xb1, 0x4b, 0xf8, 0xbd, 0x08, 0x3d, 0x4b, 0x43,
	0xa5, 0xae, 0x8c, 0xd7, 0xd5, 0xa6, 0xce, 0x03,
}

type jp2Box struct {
	typ     string
	off     int64 // start of content
	size    int64 // content length, -1 when the box runs to end of file
	hdrSize int64
}

func readBox(r io.ReaderAt, off int64) (jp2Box, error) {
	var hdr [16]byte
	if _, err := r.ReadAt(hdr[:8], off); err != nil {
		return jp2Box{}, err
	}
	l := uint64(binary.BigEndian.Uint32(hdr[0:4]))
	b := jp2Box{typ: string(hdr[4:8]), hdrSize: 8}
	switch l {
	case 0:
		b.size = -1
	case 1:
		if _, err := r.ReadAt(hdr[8:16], off+8); err != nil {
			return jp2Box{}, err
		}
		l = binary.BigEndian.Uint64(hdr[8:16])
		b.hdrSize = 16
		fallthrough
	default:
		if l < uint64(b.hdrSize) {
			return jp2Box{}, fmt.Errorf("box %q at %d: length %d", b.typ, off, l)
		}
		b.size = int64(l) - b.hdrSize
	}
	b.off = off + b.hdrSize
	return b, nil
}

// parseJP2 walks the JP2 boxes in front of the codestream. Size comes from ihdr,
// georeferencing from the GeoJP2 uuid box.
func parseJP2(r io.ReaderAt) (geoHeader, error) {
	sig, err := readBox(r, 0)
	if err != nil {
		return geoHeader{}, fmt.Errorf("reading signature box: %w", err)
	}
	var magic [4]byte
	if sig.typ != boxSignature || sig.size != 4 {
		return geoHeader{}, fmt.Errorf("not a JP2 file: first box %q", sig.typ)
	}
	if _, err := r.ReadAt(magic[:], sig.off); err != nil || binary.BigEndian.Uint32(magic[:]) != jp2Magic {
		return geoHeader{}, fmt.Errorf("not a JP2 file: bad signature")
	}

	var (
		h        geoHeader
		haveSize bool
		haveGeo  bool
	)
	off := sig.off + sig.size
	for i := 0; i < maxJP2Boxes; i++ {
		b, err := readBox(r, off)
		if err == io.EOF {
			break
		}
		if err != nil {
			return geoHeader{}, fmt.Errorf("box at %d: %w", off, err)
		}
		switch b.typ {
		case boxHeader:
			w, ht, err := readImageHeader(r, b)
			if err != nil {
				return geoHeader{}, err
			}
			h.Width, h.Height, haveSize = w, ht, true
		case boxUUID:
			g, ok, err := readGeoJP2(r, b)
			if err != nil {
				return geoHeader{}, err
			}
			if ok {
				h.EPSG, h.PixelIsPoint = g.EPSG, g.PixelIsPoint
				h.PixelScale, h.Tiepoint, h.Transformation = g.PixelScale, g.Tiepoint, g.Transformation
				haveGeo = true
			}
		}
		if b.typ == boxCodestrm || b.size < 0 || haveSize && haveGeo {
			break
		}
		off = b.off + b.size
	}

	if !haveSize {
		return geoHeader{}, fmt.Errorf("JP2 has no image header box")
	}
	if !haveGeo {
		return geoHeader{}, errNotGeoreferenced
	}
	return h, nil
}

func readImageHeader(r io.ReaderAt, super jp2Box) (width, height int, err error) {
	end := super.off + super.size
	for off := super.off; super.size < 0 || off < end; {
		b, err := readBox(r, off)
		if err != nil {
			return 0, 0, fmt.Errorf("jp2h child at %d: %w", off, err)
		}
		if b.typ == boxImageHdr {
			var buf [8]byte
			if _, err := r.ReadAt(buf[:], b.off); err != nil {
				return 0, 0, fmt.Errorf("reading ihdr: %w", err)
			}
			height = int(binary.BigEndian.Uint32(buf[0:4]))
			width = int(binary.BigEndian.Uint32(buf[4:8]))
			return width, height, nil
		}
		if b.size < 0 {
			break
		}
		off = b.off + b.size
	}
	return 0, 0, fmt.Errorf("jp2h without ihdr")
}

func readGeoJP2(r io.ReaderAt, b jp2Box) (geoHeader, bool, error) {
	if b.size >= 0 && b.size < int64(len(geoJP2UUID)) {
		return geoHeader{}, false, nil
	}
	id := make([]byte, len(geoJP2UUID))
	if _, err := r.ReadAt(id, b.off); err != nil {
		return geoHeader{}, false, fmt.Errorf("reading uuid: %w", err)
	}
	if !bytes.Equal(id, geoJP2UUID) {
		return geoHeader{}, false, nil
	}
	start := b.off + int64(len(id))
	n := b.size - int64(len(id))
	if b.size < 0 {
		n = math.MaxInt64 - start
	}
	g, err := parseTIFF(io.NewSectionReader(r, start, n))
	if err != nil {
		return geoHeader{}, false, fmt.Errorf("GeoJP2 box: %w", err)
	}
	return g, true, nil
}
