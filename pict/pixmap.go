package pict

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/ysh86/pictdec/packbits"
)

// pack types
const (
	packDefault uint16 = iota
	packNone
	packDropPad
	packRun16
	packRunPlanar
)

// PixMap describes the pixels carried by a bits opcode. Plain 1-bit BitMaps
// are represented with IsPixMap false and PixelSize 1.
type PixMap struct {
	BaseAddr   uint32
	RowBytes   int
	IsPixMap   bool
	Bounds     image.Rectangle
	Version    uint16
	PackType   uint16
	PackSize   uint32
	HRes, VRes uint32
	PixelType  uint16
	PixelSize  int
	CmpCount   int
	CmpSize    int
	PlaneBytes uint32
	TableAddr  uint32

	// HasColorTable reports whether a color table followed the descriptor.
	HasColorTable bool
}

func (pm *PixMap) String() string {
	if !pm.IsPixMap {
		return fmt.Sprintf("BitMap rowBytes=%d bounds=%v", pm.RowBytes, pm.Bounds)
	}
	return fmt.Sprintf("PixMap rowBytes=%d bounds=%v pack=%d depth=%d cmp=%dx%d",
		pm.RowBytes, pm.Bounds, pm.PackType, pm.PixelSize, pm.CmpCount, pm.CmpSize)
}

// parsePixMap reads a BitMap or PixMap starting at the rowBytes word. A
// direct pixmap is always a PixMap.
func parsePixMap(c *Cursor, direct bool) (*PixMap, error) {
	pm := &PixMap{}
	rowWord, err := c.U16()
	if err != nil {
		return nil, err
	}
	pm.IsPixMap = direct || rowWord&0x8000 != 0
	if pm.IsPixMap {
		pm.RowBytes = int(rowWord & 0x3fff)
	} else {
		pm.RowBytes = int(rowWord & 0x7fff)
	}
	if pm.Bounds, err = c.Rect(); err != nil {
		return nil, err
	}
	if !pm.IsPixMap {
		pm.PixelSize, pm.CmpCount, pm.CmpSize = 1, 1, 1
		return pm, nil
	}

	b, err := c.Bytes(36)
	if err != nil {
		return nil, err
	}
	be := binary.BigEndian
	pm.Version = be.Uint16(b[0:])
	pm.PackType = be.Uint16(b[2:])
	pm.PackSize = be.Uint32(b[4:])
	pm.HRes = be.Uint32(b[8:])
	pm.VRes = be.Uint32(b[12:])
	pm.PixelType = be.Uint16(b[16:])
	pm.PixelSize = int(be.Uint16(b[18:]))
	pm.CmpCount = int(be.Uint16(b[20:]))
	pm.CmpSize = int(be.Uint16(b[22:]))
	pm.PlaneBytes = be.Uint32(b[24:])
	pm.TableAddr = be.Uint32(b[28:])
	return pm, nil
}

// row layouts
const (
	layoutIndexed = iota
	layoutRGB555
	layoutXRGB
	layoutPlanar
	layoutRGB
)

// rowFormat says how to read and expand each row of a pixmap.
type rowFormat struct {
	layout int
	depth  int
	width  int

	raw      bool // rows stored without byte counts
	words    bool // packbits in 16-bit units
	stored   int  // bytes per stored raw row
	unpacked int  // bytes per unpacked row
	planes   int
}

// format validates the descriptor and derives its row format. packed is
// false for the BitsRect opcodes, whose rows are never compressed.
func (pm *PixMap) format(offset int, packed bool) (rowFormat, error) {
	if pm.Bounds.Dx() < 0 || pm.Bounds.Dy() < 0 {
		return rowFormat{}, newError(MalformedOpcodePayload, offset, "inverted bounds %v", pm.Bounds)
	}
	f := rowFormat{depth: pm.PixelSize, width: pm.Bounds.Dx()}
	switch pm.PixelSize {
	case 1, 2, 4, 8:
		f.layout = layoutIndexed
	case 16:
		f.layout = layoutRGB555
	case 24:
		f.layout = layoutRGB
	case 32:
		f.layout = layoutXRGB
	default:
		return rowFormat{}, newError(UnsupportedPixelDepth, offset, "depth %d", pm.PixelSize)
	}
	if pm.RowBytes*8 < f.width*pm.PixelSize {
		return rowFormat{}, newError(RowSizeMismatch, offset, "rowBytes %d too small for %d pixels of %d bits",
			pm.RowBytes, f.width, pm.PixelSize)
	}

	f.raw = !packed || pm.RowBytes < 8 || pm.PackType == packNone
	f.stored = pm.RowBytes
	f.unpacked = pm.RowBytes
	if pm.PixelSize == 32 && !f.raw {
		switch pm.PackType {
		case packDropPad:
			f.raw = true
			f.layout = layoutRGB
			f.stored = f.width * 3
			f.unpacked = f.stored
		case packDefault, packRunPlanar:
			if pm.CmpCount != 3 && pm.CmpCount != 4 {
				return rowFormat{}, newError(MalformedOpcodePayload, offset, "component count %d", pm.CmpCount)
			}
			f.layout = layoutPlanar
			f.planes = pm.CmpCount
			f.unpacked = f.width * pm.CmpCount
		default:
			return rowFormat{}, newError(MalformedOpcodePayload, offset, "pack type %d for depth 32", pm.PackType)
		}
	}
	if pm.PixelSize == 16 && !f.raw {
		switch pm.PackType {
		case packDefault, packRun16:
			f.words = true
		default:
			return rowFormat{}, newError(MalformedOpcodePayload, offset, "pack type %d for depth 16", pm.PackType)
		}
	}
	return f, nil
}

// skipRows walks the pixel data of height rows without inflating it.
func (f *rowFormat) skipRows(c *Cursor, height, rowBytes int) error {
	for y := 0; y < height; y++ {
		n := f.stored
		if !f.raw {
			var err error
			if n, err = rowCount(c, rowBytes); err != nil {
				return err
			}
		}
		if err := c.Skip(n); err != nil {
			return err
		}
	}
	return nil
}

func rowCount(c *Cursor, rowBytes int) (int, error) {
	if rowBytes > 250 {
		n, err := c.U16()
		return int(n), err
	}
	n, err := c.U8()
	return int(n), err
}

// readRow returns the next unpacked row. buf must hold f.unpacked bytes.
func (f *rowFormat) readRow(c *Cursor, rowBytes int, buf []byte) ([]byte, error) {
	if f.raw {
		return c.Bytes(f.stored)
	}
	start := c.Offset()
	n, err := rowCount(c, rowBytes)
	if err != nil {
		return nil, err
	}
	packed, err := c.Bytes(n)
	if err != nil {
		return nil, err
	}
	unpack := packbits.Unpack
	if f.words {
		unpack = packbits.UnpackWords
	}
	nDst, nSrc, err := unpack(buf[:f.unpacked], packed)
	if err == nil && (nDst != f.unpacked || nSrc != len(packed)) {
		err = fmt.Errorf("%w: row inflated to %d bytes from %d of %d, want %d",
			packbits.ErrLengthMismatch, nDst, nSrc, len(packed), f.unpacked)
	}
	if err != nil {
		return nil, wrapError(PackbitsLengthMismatch, start, err, "")
	}
	return buf[:f.unpacked], nil
}

// expand converts an unpacked row into RGBA. Indexed pixels are resolved
// through t.
func (f *rowFormat) expand(dst, row []byte, t *ColorTable, offset int) error {
	switch f.layout {
	case layoutIndexed:
		mask := 1<<uint(f.depth) - 1
		perByte := 8 / f.depth
		for x := 0; x < f.width; x++ {
			b := row[x/perByte]
			shift := uint(8 - f.depth*(x%perByte+1))
			v := int(b>>shift) & mask
			c, ok := t.Lookup(v)
			if !ok {
				return newError(PaletteIndexOutOfRange, offset, "pixel value %d with %d color table entries", v, t.Len())
			}
			dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = c.R, c.G, c.B, 0xff
		}
	case layoutRGB555:
		for x := 0; x < f.width; x++ {
			v := uint16(row[2*x])<<8 | uint16(row[2*x+1])
			r, g, b := uint8(v>>10&0x1f), uint8(v>>5&0x1f), uint8(v&0x1f)
			dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = r<<3|r>>2, g<<3|g>>2, b<<3|b>>2, 0xff
		}
	case layoutXRGB:
		for x := 0; x < f.width; x++ {
			dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = row[4*x+1], row[4*x+2], row[4*x+3], 0xff
		}
	case layoutRGB:
		for x := 0; x < f.width; x++ {
			dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = row[3*x], row[3*x+1], row[3*x+2], 0xff
		}
	case layoutPlanar:
		// alpha comes first when there are four planes
		p := (f.planes - 3) * f.width
		r, g, b := row[p:p+f.width], row[p+f.width:p+2*f.width], row[p+2*f.width:p+3*f.width]
		for x := 0; x < f.width; x++ {
			dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = r[x], g[x], b[x], 0xff
		}
	}
	return nil
}
