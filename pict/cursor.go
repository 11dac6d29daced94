package pict

import (
	"encoding/binary"
	"image"
)

// Cursor reads big-endian values from a borrowed byte slice. A failed read
// returns an UnexpectedEndOfData error and leaves the position unchanged.
type Cursor struct {
	data []byte
	pos  int
}

func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Offset returns the current position.
func (c *Cursor) Offset() int { return c.pos }

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return len(c.data) - c.pos }

func (c *Cursor) need(n int) error {
	if n < 0 || n > c.Len() {
		return newError(UnexpectedEndOfData, c.pos, "need %d bytes, have %d", n, c.Len())
	}
	return nil
}

func (c *Cursor) U8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

func (c *Cursor) U16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *Cursor) I16() (int16, error) {
	v, err := c.U16()
	return int16(v), err
}

func (c *Cursor) U32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

// Bytes returns the next n bytes. The slice aliases the input.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// Sub returns a cursor over the next n bytes, keeping absolute offsets, and
// advances c past them.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	s := &Cursor{data: c.data[:c.pos+n], pos: c.pos}
	c.pos += n
	return s, nil
}

func (c *Cursor) PeekU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	return c.data[c.pos], nil
}

func (c *Cursor) PeekU16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(c.data[c.pos:]), nil
}

// Align skips up to n-1 bytes so that the position, measured from base, is a
// multiple of n.
func (c *Cursor) Align(base, n int) error {
	if r := (c.pos - base) % n; r != 0 {
		return c.Skip(n - r)
	}
	return nil
}

// Rect reads a QuickDraw rectangle: top, left, bottom, right.
func (c *Cursor) Rect() (image.Rectangle, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return image.Rectangle{}, err
	}
	return rectAt(b), nil
}

func rectAt(b []byte) image.Rectangle {
	var r image.Rectangle
	r.Min.Y = int(int16(binary.BigEndian.Uint16(b[0:])))
	r.Min.X = int(int16(binary.BigEndian.Uint16(b[2:])))
	r.Max.Y = int(int16(binary.BigEndian.Uint16(b[4:])))
	r.Max.X = int(int16(binary.BigEndian.Uint16(b[6:])))
	return r
}

// Point reads a QuickDraw point: v, h.
func (c *Cursor) Point() (image.Point, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return image.Point{}, err
	}
	return image.Point{
		Y: int(int16(binary.BigEndian.Uint16(b[0:]))),
		X: int(int16(binary.BigEndian.Uint16(b[2:]))),
	}, nil
}
