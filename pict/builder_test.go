package pict

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"

	"github.com/ysh86/pictdec/packbits"
)

// picture assembles PICT streams for tests.
type picture struct {
	bytes.Buffer
	v2 bool
}

func newPicture(frame image.Rectangle, v2 bool) *picture {
	p := &picture{v2: v2}
	p.u16(0)
	p.rect(frame)
	if !v2 {
		p.Write([]byte{0x11, 0x01})
		return p
	}
	p.Write([]byte{0x00, 0x11, 0x02, 0xff})
	p.op(Header)
	p.u16(0xfffe)
	p.u16(0)
	p.u32(72 << 16)
	p.u32(72 << 16)
	p.rect(frame)
	p.u32(0)
	return p
}

func (p *picture) u8(v uint8) { p.WriteByte(v) }

func (p *picture) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	p.Write(b[:])
}

func (p *picture) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	p.Write(b[:])
}

func (p *picture) rect(r image.Rectangle) {
	p.u16(uint16(r.Min.Y))
	p.u16(uint16(r.Min.X))
	p.u16(uint16(r.Max.Y))
	p.u16(uint16(r.Max.X))
}

func (p *picture) op(code uint16) {
	if !p.v2 {
		p.u8(uint8(code))
		return
	}
	if p.Len()%2 != 0 {
		p.u8(0)
	}
	p.u16(code)
}

// region writes a region; lines holds the inversion points per row, each
// line starting with its y.
func (p *picture) region(bounds image.Rectangle, lines ...[]int) {
	size := 10
	if len(lines) > 0 {
		size += 2
		for _, l := range lines {
			size += 2*len(l) + 2
		}
	}
	p.u16(uint16(size))
	p.rect(bounds)
	if len(lines) == 0 {
		return
	}
	for _, l := range lines {
		for _, v := range l {
			p.u16(uint16(v))
		}
		p.u16(regionEnd)
	}
	p.u16(regionEnd)
}

// pixMap writes a PixMap descriptor starting at the rowBytes word.
func (p *picture) pixMap(rowBytes int, bounds image.Rectangle, packType, depth, cmpCount, cmpSize int) {
	p.u16(uint16(rowBytes) | 0x8000)
	p.rect(bounds)
	p.u16(0)
	p.u16(uint16(packType))
	p.u32(0)
	p.u32(72 << 16)
	p.u32(72 << 16)
	if depth > 8 {
		p.u16(16)
	} else {
		p.u16(0)
	}
	p.u16(uint16(depth))
	p.u16(uint16(cmpCount))
	p.u16(uint16(cmpSize))
	p.u32(0)
	p.u32(0)
	p.u32(0)
}

func (p *picture) colorTable(colors ...color.RGBA) {
	p.u32(0)
	p.u16(0)
	p.u16(uint16(len(colors) - 1))
	for i, c := range colors {
		p.u16(uint16(i))
		p.u16(uint16(c.R) * 0x101)
		p.u16(uint16(c.G) * 0x101)
		p.u16(uint16(c.B) * 0x101)
	}
}

// packedRows writes rows with their byte counts.
func (p *picture) packedRows(rowBytes int, words bool, rows ...[]byte) {
	for _, row := range rows {
		enc := packbits.Encode(row)
		if words {
			var err error
			if enc, err = packbits.EncodeWords(row); err != nil {
				panic(err)
			}
		}
		if rowBytes > 250 {
			p.u16(uint16(len(enc)))
		} else {
			p.u8(uint8(len(enc)))
		}
		p.Write(enc)
	}
}

// indexed writes a PackBitsRect of 8-bit pixels drawn at its own bounds.
func (p *picture) indexed(bounds image.Rectangle, colors []color.RGBA, rows ...[]byte) {
	rowBytes := bounds.Dx()
	if rowBytes < 8 {
		rowBytes = 8
	}
	p.op(PackBitsRect)
	p.pixMap(rowBytes, bounds, 0, 8, 1, 8)
	p.colorTable(colors...)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	for _, row := range rows {
		padded := make([]byte, rowBytes)
		copy(padded, row)
		p.packedRows(rowBytes, false, padded)
	}
}

// direct writes an unpacked 32-bit DirectBitsRect from src to dst. Pixels
// are given as RGBA and stored as xRGB.
func (p *picture) direct(bounds, src, dst image.Rectangle, mode uint16, px ...color.RGBA) {
	p.op(DirectBitsRect)
	p.u32(0xff)
	p.pixMap(4*bounds.Dx(), bounds, 1, 32, 3, 8)
	p.rect(src)
	p.rect(dst)
	p.u16(mode)
	for _, c := range px {
		p.Write([]byte{0, c.R, c.G, c.B})
	}
}

func (p *picture) end() []byte {
	p.op(EndPic)
	return append([]byte{}, p.Bytes()...)
}

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)
