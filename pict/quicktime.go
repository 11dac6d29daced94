package pict

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
)

const imageDescriptionSize = 86

// OpQTcomp is a QuickTime compressed image embedded in the picture. Data
// aliases the parsed input.
type OpQTcomp struct {
	op
	Size      uint32
	Version   uint16
	Matrix    [9]uint32
	MatteRect image.Rectangle
	Mode      uint16
	SrcRect   image.Rectangle
	Accuracy  uint32
	Mask      []byte

	// image description
	Compressor string
	Width      int
	Height     int
	Depth      int
	Name       string
	Data       []byte
}

func parseQuickTime(c *Cursor, o op) (Record, error) {
	q := &OpQTcomp{op: o}
	var err error
	if q.Size, err = c.U32(); err != nil {
		return nil, err
	}
	if int64(q.Size) > int64(c.Len()) {
		return nil, newError(MalformedOpcodePayload, o.Offset, "payload of %d bytes, %d left", q.Size, c.Len())
	}
	sc, err := c.Sub(int(q.Size))
	if err != nil {
		return nil, err
	}
	if err := q.parse(sc); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *OpQTcomp) parse(c *Cursor) error {
	var err error
	if q.Version, err = c.U16(); err != nil {
		return err
	}
	for i := range q.Matrix {
		if q.Matrix[i], err = c.U32(); err != nil {
			return err
		}
	}
	matteSize, err := c.U32()
	if err != nil {
		return err
	}
	if q.MatteRect, err = c.Rect(); err != nil {
		return err
	}
	if q.Mode, err = c.U16(); err != nil {
		return err
	}
	if q.SrcRect, err = c.Rect(); err != nil {
		return err
	}
	if q.Accuracy, err = c.U32(); err != nil {
		return err
	}
	maskSize, err := c.U32()
	if err != nil {
		return err
	}
	if int64(matteSize)+int64(maskSize) > int64(c.Len()) {
		return newError(MalformedOpcodePayload, c.Offset(), "matte %d and mask %d bytes, %d left", matteSize, maskSize, c.Len())
	}
	if err := c.Skip(int(matteSize)); err != nil {
		return err
	}
	if q.Mask, err = c.Bytes(int(maskSize)); err != nil {
		return err
	}

	start := c.Offset()
	idSize, err := c.U32()
	if err != nil {
		return err
	}
	if idSize < imageDescriptionSize || int64(idSize)-4 > int64(c.Len()) {
		return newError(MalformedOpcodePayload, start, "image description size %d", idSize)
	}
	id, err := c.Bytes(int(idSize) - 4)
	if err != nil {
		return err
	}
	be := binary.BigEndian
	q.Compressor = string(id[0:4])
	// reserved, version, revision, vendor and qualities come first
	q.Width = int(be.Uint16(id[28:]))
	q.Height = int(be.Uint16(id[30:]))
	dataSize := be.Uint32(id[40:])
	name := id[46:78]
	if n := int(name[0]); n < len(name) {
		q.Name = string(name[1 : 1+n])
	}
	q.Depth = int(be.Uint16(id[78:]))

	if int64(dataSize) > int64(c.Len()) {
		return newError(MalformedOpcodePayload, c.Offset(), "image data of %d bytes, %d left", dataSize, c.Len())
	}
	if q.Data, err = c.Bytes(int(dataSize)); err != nil {
		return err
	}
	// the payload may carry padding after the image data
	return c.Skip(c.Len())
}

// placement maps a w x h image into picture coordinates using the scale and
// translation of the matrix.
func (q *OpQTcomp) placement(w, h int) image.Rectangle {
	fixed := func(v uint32) float64 { return float64(int32(v)) / 65536 }
	sx, sy := fixed(q.Matrix[0]), fixed(q.Matrix[4])
	if sx <= 0 {
		sx = 1
	}
	if sy <= 0 {
		sy = 1
	}
	tx, ty := int(fixed(q.Matrix[6])), int(fixed(q.Matrix[7]))
	return image.Rect(tx, ty, tx+int(float64(w)*sx+0.5), ty+int(float64(h)*sy+0.5))
}

func (q *OpQTcomp) Dump(w io.Writer) {
	fmt.Fprintf(w, "  Op QTcomp: %q %dx%d depth=%d name=%q SrcRect=%+v, %d data bytes\n",
		q.Compressor, q.Width, q.Height, q.Depth, q.Name, q.SrcRect, len(q.Data))
}

// DumpTo writes the compressed image data, a JFIF stream for "jpeg".
func (q *OpQTcomp) DumpTo(w io.Writer) (int64, error) {
	return io.Copy(w, bytes.NewReader(q.Data))
}
