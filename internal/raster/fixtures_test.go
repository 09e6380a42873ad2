package raster

import (
	"bytes"
	"encoding/binary"
	"math"
)

type tagSpec struct {
	tag   uint16
	dt    uint16
	count int
	data  []byte
}

func shorts(bo binary.ByteOrder, vals ...uint16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		bo.PutUint16(b[i*2:], v)
	}
	return b
}

func doubles(bo binary.ByteOrder, vals ...float64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		bo.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func shortTag(bo binary.ByteOrder, tag uint16, vals ...uint16) tagSpec {
	return tagSpec{tag: tag, dt: dtShort, count: len(vals), data: shorts(bo, vals...)}
}

func doubleTag(bo binary.ByteOrder, tag uint16, vals ...float64) tagSpec {
	return tagSpec{tag: tag, dt: dtDouble, count: len(vals), data: doubles(bo, vals...)}
}

// encodeTIFF writes a single-IFD TIFF with tags as given.
func encodeTIFF(bo binary.ByteOrder, big bool, tags []tagSpec) []byte {
	hdrLen, countLen, entrySize, inline, nextLen := 8, 2, 12, 4, 4
	if big {
		hdrLen, countLen, entrySize, inline, nextLen = 16, 8, 20, 8, 8
	}
	dataOff := hdrLen + countLen + len(tags)*entrySize + nextLen

	var out bytes.Buffer
	if bo == binary.ByteOrder(binary.LittleEndian) {
		out.WriteString("II")
	} else {
		out.WriteString("MM")
	}
	if big {
		_ = binary.Write(&out, bo, uint16(bigTIFFMagic))
		_ = binary.Write(&out, bo, uint16(8))
		_ = binary.Write(&out, bo, uint16(0))
		_ = binary.Write(&out, bo, uint64(hdrLen))
		_ = binary.Write(&out, bo, uint64(len(tags)))
	} else {
		_ = binary.Write(&out, bo, uint16(classicTIFFMagic))
		_ = binary.Write(&out, bo, uint32(hdrLen))
		_ = binary.Write(&out, bo, uint16(len(tags)))
	}

	var ext []byte
	for _, t := range tags {
		_ = binary.Write(&out, bo, t.tag)
		_ = binary.Write(&out, bo, t.dt)
		val := make([]byte, inline)
		if len(t.data) <= inline {
			copy(val, t.data)
		} else {
			at := dataOff + len(ext)
			if big {
				bo.PutUint64(val, uint64(at))
			} else {
				bo.PutUint32(val, uint32(at))
			}
			ext = append(ext, t.data...)
			if len(ext)%2 == 1 {
				ext = append(ext, 0)
			}
		}
		if big {
			_ = binary.Write(&out, bo, uint64(t.count))
		} else {
			_ = binary.Write(&out, bo, uint32(t.count))
		}
		out.Write(val)
	}
	out.Write(make([]byte, nextLen))
	out.Write(ext)
	return out.Bytes()
}

type geoTIFFOpts struct {
	bo           binary.ByteOrder
	big          bool
	width        uint16
	height       uint16
	epsg         uint16
	geographic   bool
	pixelIsPoint bool
	scale        []float64
	tiepoint     []float64
	matrix       []float64
}

func geoTIFF(o geoTIFFOpts) []byte {
	bo := o.bo
	if bo == nil {
		bo = binary.LittleEndian
	}
	rasterType := uint16(1)
	if o.pixelIsPoint {
		rasterType = rasterPixelIsPoint
	}
	crsKey := uint16(gkProjectedCSType)
	modelType := uint16(1)
	if o.geographic {
		crsKey, modelType = gkGeographicType, 2
	}
	tags := []tagSpec{
		shortTag(bo, tagImageWidth, o.width),
		shortTag(bo, tagImageLength, o.height),
	}
	if o.scale != nil {
		tags = append(tags, doubleTag(bo, tagModelPixelScale, o.scale...))
	}
	if o.tiepoint != nil {
		tags = append(tags, doubleTag(bo, tagModelTiepoint, o.tiepoint...))
	}
	if o.matrix != nil {
		tags = append(tags, doubleTag(bo, tagModelTransformation, o.matrix...))
	}
	tags = append(tags, shortTag(bo, tagGeoKeyDirectory,
		1, 1, 0, 3,
		1024, 0, 1, modelType,
		gkRasterType, 0, 1, rasterType,
		crsKey, 0, 1, o.epsg,
	))
	return encodeTIFF(bo, o.big, tags)
}

func box(typ string, content []byte) []byte {
	b := make([]byte, 8, 8+len(content))
	binary.BigEndian.PutUint32(b, uint32(8+len(content)))
	copy(b[4:], typ)
	return append(b, content...)
}

// geoJP2 builds a JP2 file with an ihdr of width x height and a GeoJP2 box.
func geoJP2(width, height uint32, geo []byte) []byte {
	var f []byte
	f = append(f, box(boxSignature, []byte{0x0D, 0x0A, 0x87, 0x0A})...)
	f = append(f, box("ftyp", []byte("jp2 \x00\x00\x00\x00jp2 "))...)

	ihdr := make([]byte, 14)
	binary.BigEndian.PutUint32(ihdr[0:], height)
	binary.BigEndian.PutUint32(ihdr[4:], width)
	binary.BigEndian.PutUint16(ihdr[8:], 3)
	ihdr[10], ihdr[11] = 7, 7
	f = append(f, box(boxHeader, append(box("colr", []byte{1, 0, 0, 0, 0, 0, 16}), box(boxImageHdr, ihdr)...))...)

	if geo != nil {
		f = append(f, box(boxUUID, append(append([]byte(nil), geoJP2UUID...), geo...))...)
	}
	f = append(f, box(boxCodestrm, []byte{0xff, 0x4f, 0xff, 0x51})...)
	return f
}
