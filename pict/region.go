package pict

import (
	"fmt"
	"image"
)

const regionEnd = 0x7fff

// Region is a QuickDraw region: a bounding rectangle and, for
// non-rectangular regions, the inversion points of each scanline where the
// shape changes.
type Region struct {
	Bounds image.Rectangle
	Lines  []RegionLine
}

// RegionLine lists the columns where membership flips, starting at row Y.
type RegionLine struct {
	Y  int
	Xs []int
}

// Rectangular reports whether the region is its bounding rectangle.
func (r *Region) Rectangular() bool { return len(r.Lines) == 0 }

func (r *Region) String() string {
	if r.Rectangular() {
		return fmt.Sprintf("%v", r.Bounds)
	}
	return fmt.Sprintf("%v (%d lines)", r.Bounds, len(r.Lines))
}

func rectRegion(r image.Rectangle) *Region {
	return &Region{Bounds: r.Canon()}
}

// parseRegion reads a size-prefixed region; the size includes the size word.
func parseRegion(c *Cursor) (*Region, error) {
	start := c.Offset()
	size, err := c.U16()
	if err != nil {
		return nil, err
	}
	if size < 10 || size%2 != 0 {
		return nil, newError(MalformedOpcodePayload, start, "region size %d", size)
	}
	bounds, err := c.Rect()
	if err != nil {
		return nil, err
	}
	r := &Region{Bounds: bounds.Canon()}
	if size == 10 {
		return r, nil
	}
	data, err := c.Bytes(int(size) - 10)
	if err != nil {
		return nil, err
	}
	words := make([]int, len(data)/2)
	for i := range words {
		words[i] = int(int16(uint16(data[2*i])<<8 | uint16(data[2*i+1])))
	}
	for i := 0; ; {
		if i >= len(words) {
			return nil, newError(MalformedOpcodePayload, start, "region data not terminated")
		}
		y := words[i]
		i++
		if y == regionEnd {
			break
		}
		line := RegionLine{Y: y}
		for {
			if i >= len(words) {
				return nil, newError(MalformedOpcodePayload, start, "region line %d not terminated", y)
			}
			x := words[i]
			i++
			if x == regionEnd {
				break
			}
			line.Xs = append(line.Xs, x)
		}
		if n := len(r.Lines); n > 0 && r.Lines[n-1].Y >= y {
			return nil, newError(MalformedOpcodePayload, start, "region lines out of order at y=%d", y)
		}
		r.Lines = append(r.Lines, line)
	}
	return r, nil
}

// regionMask tells which columns of [minX, maxX) lie inside a region for
// rows visited in increasing order.
type regionMask struct {
	r          *Region
	minX, maxX int

	next    int
	toggles []bool
	base    bool
	dirty   bool
	inside  []bool
}

func newRegionMask(r *Region, minX, maxX int) *regionMask {
	m := &regionMask{r: r, minX: minX, maxX: maxX}
	if !r.Rectangular() && maxX > minX {
		m.toggles = make([]bool, maxX-minX)
		m.inside = make([]bool, maxX-minX)
	}
	return m
}

// row returns the membership of columns [minX, maxX) at row y, or nil for a
// rectangular region.
func (m *regionMask) row(y int) []bool {
	if m.r.Rectangular() {
		return nil
	}
	for m.next < len(m.r.Lines) && m.r.Lines[m.next].Y <= y {
		for _, x := range m.r.Lines[m.next].Xs {
			switch {
			case x < m.minX:
				m.base = !m.base
			case x < m.maxX:
				m.toggles[x-m.minX] = !m.toggles[x-m.minX]
			}
		}
		m.next++
		m.dirty = true
	}
	if m.dirty {
		in := m.base
		for i, t := range m.toggles {
			if t {
				in = !in
			}
			m.inside[i] = in
		}
		m.dirty = false
	}
	return m.inside
}
