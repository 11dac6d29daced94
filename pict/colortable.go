package pict

import (
	"encoding/binary"
	"fmt"
	"image/color"
)

const deviceTable = 0x8000

// ColorEntry is one color table slot with 16-bit components.
type ColorEntry struct {
	Index   uint16
	R, G, B uint16
}

func (e ColorEntry) RGBA() color.RGBA {
	return color.RGBA{R: uint8(e.R >> 8), G: uint8(e.G >> 8), B: uint8(e.B >> 8), A: 0xff}
}

// ColorTable maps pixel values of indexed pixmaps to colors.
type ColorTable struct {
	Seed    uint32
	Flags   uint16
	Entries []ColorEntry

	lookup [256]color.RGBA
	valid  [256]bool
	max    int
}

func parseColorTable(c *Cursor) (*ColorTable, error) {
	start := c.Offset()
	t := &ColorTable{max: -1}
	var err error
	if t.Seed, err = c.U32(); err != nil {
		return nil, err
	}
	if t.Flags, err = c.U16(); err != nil {
		return nil, err
	}
	size, err := c.I16()
	if err != nil {
		return nil, err
	}
	count := int(size) + 1
	if count < 0 {
		return nil, newError(MalformedOpcodePayload, start, "color table size %d", size)
	}
	b, err := c.Bytes(count * 8)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint16]bool, count)
	t.Entries = make([]ColorEntry, count)
	for i := range t.Entries {
		e := &t.Entries[i]
		be := b[8*i:]
		e.Index = binary.BigEndian.Uint16(be[0:])
		e.R = binary.BigEndian.Uint16(be[2:])
		e.G = binary.BigEndian.Uint16(be[4:])
		e.B = binary.BigEndian.Uint16(be[6:])
		if t.Flags&deviceTable != 0 {
			e.Index = uint16(i)
		}
		if seen[e.Index] {
			return nil, newError(MalformedOpcodePayload, start, "duplicate color table index %d", e.Index)
		}
		seen[e.Index] = true
		if int(e.Index) < len(t.lookup) {
			t.lookup[e.Index] = e.RGBA()
			t.valid[e.Index] = true
			if int(e.Index) > t.max {
				t.max = int(e.Index)
			}
		}
	}
	return t, nil
}

// Len returns the number of entries.
func (t *ColorTable) Len() int { return len(t.Entries) }

// Lookup resolves a pixel value.
func (t *ColorTable) Lookup(v int) (color.RGBA, bool) {
	if t == nil || v < 0 || v >= len(t.lookup) || !t.valid[v] {
		return color.RGBA{}, false
	}
	return t.lookup[v], true
}

// Palette returns the table as a dense palette indexed by pixel value.
// Missing slots are opaque black.
func (t *ColorTable) Palette() color.Palette {
	p := make(color.Palette, t.max+1)
	for i := range p {
		if t.valid[i] {
			p[i] = t.lookup[i]
		} else {
			p[i] = color.RGBA{A: 0xff}
		}
	}
	return p
}

// equal reports whether t and u resolve every pixel value alike.
func (t *ColorTable) equal(u *ColorTable) bool {
	return t == u || t.valid == u.valid && t.lookup == u.lookup
}

func (t *ColorTable) String() string {
	return fmt.Sprintf("seed=%08x flags=%04x entries=%d", t.Seed, t.Flags, len(t.Entries))
}

// bitmapTable resolves the pixels of a 1-bit BitMap: 0 is white, 1 is black.
var bitmapTable = func() *ColorTable {
	t := &ColorTable{max: 1, Entries: []ColorEntry{
		{Index: 0, R: 0xffff, G: 0xffff, B: 0xffff},
		{Index: 1},
	}}
	for _, e := range t.Entries {
		t.lookup[e.Index] = e.RGBA()
		t.valid[e.Index] = true
	}
	return t
}()
