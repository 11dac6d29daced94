package pict

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
)

// DefaultMaxPixels bounds the frame area, and so the allocation, of a
// decoded picture.
const DefaultMaxPixels = 1 << 24

// workFactor bounds the destination pixels one Decode call may visit to
// workFactor*MaxPixels plus the input length.
const workFactor = 8

// Options configures a Decoder. The zero value is usable.
type Options struct {
	// MaxPixels rejects pictures whose frame holds more pixels. Zero means
	// DefaultMaxPixels.
	MaxPixels int
}

// Decoder decodes pictures. It keeps no state between calls and may be
// used from several goroutines.
type Decoder struct {
	opts Options
}

func NewDecoder(opts Options) *Decoder {
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Decoder{opts: opts}
}

// DecodeBytes decodes a complete picture with default options.
func DecodeBytes(data []byte) (*Image, error) {
	return NewDecoder(Options{}).Decode(data)
}

// Decode decodes a complete picture. On failure no image is returned.
func (d *Decoder) Decode(data []byte) (*Image, error) {
	s := &decodeState{data: data, maxPixels: d.opts.MaxPixels}
	return s.run()
}

type decodeStep int

const (
	stepStart decodeStep = iota
	stepHeader
	stepOpcodes
	stepDone
	stepFailed
)

// decodeState is the mutable state of one Decode call.
type decodeState struct {
	step      decodeStep
	data      []byte
	maxPixels int

	file  *File
	p     *parser
	frame image.Rectangle
	clip  *Region
	img   *Image

	// palette is the color table of the last indexed pixmap
	palette *ColorTable
	used    *ColorTable
	mixed   bool

	work, budget int64
	err          error
}

func (s *decodeState) run() (*Image, error) {
	for s.step != stepDone && s.step != stepFailed {
		var err error
		switch s.step {
		case stepStart:
			err = s.readHeader()
			s.step = stepHeader
		case stepHeader:
			s.img = newImage(s.frame)
			s.clip = rectRegion(s.frame)
			s.step = stepOpcodes
		case stepOpcodes:
			var r Record
			if r, err = s.p.next(); err == nil {
				err = s.apply(r)
				if e, ok := err.(*Error); ok && e.Opcode < 0 {
					e.Opcode = int(r.Code())
				}
			}
		}
		if err != nil {
			s.err = err
			s.step = stepFailed
		}
	}
	if s.step == stepFailed {
		return nil, s.err
	}
	if !s.mixed && s.used != nil {
		s.img.Palette = s.used.Palette()
	}
	return s.img, nil
}

func (s *decodeState) readHeader() error {
	s.file = &File{data: s.data}
	p, err := s.file.parseHeader()
	if err != nil {
		return err
	}
	s.frame = s.file.Frame
	if int64(s.frame.Dx())*int64(s.frame.Dy()) > int64(s.maxPixels) {
		return newError(InvalidHeader, 2, "frame %v exceeds %d pixels", s.frame, s.maxPixels)
	}
	s.p = p
	s.budget = workFactor*int64(s.maxPixels) + int64(len(s.data))
	return nil
}

func (s *decodeState) apply(r Record) error {
	switch r := r.(type) {
	case *OpClip:
		s.clip = r.Region
	case *OpColorTable:
		s.palette = r.Table
	case *OpPackBitsRect:
		table := bitmapTable
		if r.PixMap.IsPixMap {
			table = s.palette
		}
		return s.drawBits(&r.Bits, table)
	case *OpDirectBitsRect:
		return s.drawBits(&r.Bits, nil)
	case *OpShortComment:
		s.img.Comments = append(s.img.Comments, Comment{Kind: r.Kind})
	case *OpLongComment:
		s.img.Comments = append(s.img.Comments, Comment{Kind: r.Kind, Data: append([]byte{}, r.Data...)})
	case *OpQTcomp:
		return s.drawQuickTime(r)
	case *OpEndPic:
		s.step = stepDone
	}
	return nil
}

func (s *decodeState) drawBits(b *Bits, table *ColorTable) error {
	f := &b.format
	pm := b.PixMap
	if f.layout == layoutIndexed && table == nil {
		return newError(PaletteIndexOutOfRange, b.dataOffset, "indexed pixels without a color table")
	}
	c := NewCursor(b.Data)
	buf := make([]byte, f.unpacked)
	rgba := make([]byte, 4*f.width)
	next := func() ([]byte, error) {
		start := c.Offset()
		row, err := f.readRow(c, pm.RowBytes, buf)
		if err == nil {
			err = f.expand(rgba, row, table, start)
		}
		if err != nil {
			if e, ok := err.(*Error); ok {
				e.Offset += b.dataOffset
			}
			return nil, err
		}
		return rgba, nil
	}
	err := s.blit(blitOp{
		offset: b.dataOffset,
		bounds: pm.Bounds,
		src:    b.SrcRect,
		dst:    b.DstRect,
		mode:   b.Mode,
		mask:   b.Mask,
		next:   next,
	})
	if err != nil {
		return err
	}
	if pm.PixelSize > s.img.Depth {
		s.img.Depth = pm.PixelSize
	}
	switch {
	case f.layout != layoutIndexed:
		s.mixed = true
	case s.used == nil:
		s.used = table
	case !s.used.equal(table):
		s.mixed = true
	}
	return nil
}

func (s *decodeState) drawQuickTime(q *OpQTcomp) error {
	if q.Compressor != "jpeg" {
		return nil
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(q.Data))
	if err != nil {
		return wrapError(MalformedOpcodePayload, q.Offset, err, "jpeg")
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(s.maxPixels) {
		return newError(MalformedOpcodePayload, q.Offset, "jpeg of %dx%d exceeds %d pixels", cfg.Width, cfg.Height, s.maxPixels)
	}
	m, err := jpeg.Decode(bytes.NewReader(q.Data))
	if err != nil {
		return wrapError(MalformedOpcodePayload, q.Offset, err, "jpeg")
	}
	bounds := image.Rect(0, 0, m.Bounds().Dx(), m.Bounds().Dy())
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, m, m.Bounds().Min, draw.Src)
	y := 0
	next := func() ([]byte, error) {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+4*bounds.Dx()]
		y++
		return row, nil
	}
	if err := s.blit(blitOp{offset: q.Offset, bounds: bounds, src: bounds, dst: q.placement(bounds.Dx(), bounds.Dy()), next: next}); err != nil {
		return err
	}
	if s.img.Depth < 32 {
		s.img.Depth = 32
	}
	s.mixed = true
	return nil
}

// blitOp copies source rows, delivered top to bottom by next, from src to
// dst. Rows of bounds are all consumed even when nothing is visible.
type blitOp struct {
	offset int
	bounds image.Rectangle
	src    image.Rectangle
	dst    image.Rectangle
	mode   uint16
	mask   *Region
	next   func() ([]byte, error)
}

// visibleArea is the part of dst that lies in the frame, the clip and the
// mask, and maps onto a source pixel inside bounds.
func (s *decodeState) visibleArea(op *blitOp) image.Rectangle {
	src := op.src.Intersect(op.bounds)
	if src.Empty() || op.dst.Empty() {
		return image.Rectangle{}
	}
	area := op.dst.Intersect(s.frame).Intersect(s.clip.Bounds)
	if op.mask != nil {
		area = area.Intersect(op.mask.Bounds)
	}
	return area.Intersect(image.Rect(
		unscale(src.Min.X, op.dst.Min.X, op.dst.Dx(), op.src.Min.X, op.src.Dx()),
		unscale(src.Min.Y, op.dst.Min.Y, op.dst.Dy(), op.src.Min.Y, op.src.Dy()),
		unscale(src.Max.X, op.dst.Min.X, op.dst.Dx(), op.src.Min.X, op.src.Dx()),
		unscale(src.Max.Y, op.dst.Min.Y, op.dst.Dy(), op.src.Min.Y, op.src.Dy()),
	))
}

// spend charges area against the work budget, once for the copy and once
// more for each non-rectangular mask.
func (s *decodeState) spend(op *blitOp, area image.Rectangle) error {
	n := int64(1)
	if !s.clip.Rectangular() {
		n++
	}
	if op.mask != nil && !op.mask.Rectangular() {
		n++
	}
	s.work += n * int64(area.Dx()) * int64(area.Dy())
	if s.work > s.budget {
		return newError(MalformedOpcodePayload, op.offset, "drawing exceeds %d pixels of work", s.budget)
	}
	return nil
}

func (s *decodeState) blit(op blitOp) error {
	area := s.visibleArea(&op)
	visible := !area.Empty()
	var clipMask, rgnMask *regionMask
	if visible {
		if err := s.spend(&op, area); err != nil {
			return err
		}
		clipMask = newRegionMask(s.clip, area.Min.X, area.Max.X)
		if op.mask != nil {
			rgnMask = newRegionMask(op.mask, area.Min.X, area.Max.X)
		}
	}

	drawn := image.Rectangle{}
	dy := area.Min.Y
	for sy := op.bounds.Min.Y; sy < op.bounds.Max.Y; sy++ {
		row, err := op.next()
		if err != nil {
			return err
		}
		for visible && dy < area.Max.Y {
			ty := scale(dy, op.dst.Min.Y, op.dst.Dy(), op.src.Min.Y, op.src.Dy())
			if ty > sy {
				break
			}
			if ty == sy {
				s.drawRow(&op, area, row, dy, clipMask, rgnMask)
				drawn = drawn.Union(image.Rect(area.Min.X, dy, area.Max.X, dy+1))
			}
			dy++
		}
	}
	if !drawn.Empty() {
		s.img.Drawn = s.img.Drawn.Union(drawn.Sub(s.frame.Min))
	}
	return nil
}

func (s *decodeState) drawRow(op *blitOp, area image.Rectangle, row []byte, dy int, clipMask, rgnMask *regionMask) {
	cm := clipMask.row(dy)
	var mm []bool
	if rgnMask != nil {
		mm = rgnMask.row(dy)
	}
	line := s.img.Pix[(dy-s.frame.Min.Y)*s.img.Stride:]
	for dx := area.Min.X; dx < area.Max.X; dx++ {
		i := dx - area.Min.X
		if (cm != nil && !cm[i]) || (mm != nil && !mm[i]) {
			continue
		}
		tx := scale(dx, op.dst.Min.X, op.dst.Dx(), op.src.Min.X, op.src.Dx())
		if tx < op.bounds.Min.X || tx >= op.bounds.Max.X {
			continue
		}
		p := 4 * (tx - op.bounds.Min.X)
		q := 4 * (dx - s.frame.Min.X)
		transfer(line[q:q+4], row[p:p+4], op.mode)
	}
}

// scale maps coordinate d of a destination span onto the source span.
func scale(d, dMin, dLen, sMin, sLen int) int {
	return sMin + int(int64(d-dMin)*int64(sLen)/int64(dLen))
}

// unscale returns the first destination coordinate that scale maps to s or
// beyond. s must not be below sMin.
func unscale(s, dMin, dLen, sMin, sLen int) int {
	n := int64(s-sMin) * int64(dLen)
	return dMin + int((n+int64(sLen)-1)/int64(sLen))
}

// transfer modes
const (
	srcCopy = iota
	srcOr
	srcXor
	srcBic
	notSrcCopy
)

const ditherCopy = 0x40

func transfer(dst, src []byte, mode uint16) {
	m := mode &^ ditherCopy
	if m > 7 {
		m = srcCopy
	}
	r, g, b := src[0], src[1], src[2]
	if m >= notSrcCopy {
		r, g, b = ^r, ^g, ^b
		m -= notSrcCopy
	}
	white := r == 0xff && g == 0xff && b == 0xff
	switch m {
	case srcCopy:
		dst[0], dst[1], dst[2], dst[3] = r, g, b, 0xff
	case srcOr:
		if !white {
			dst[0], dst[1], dst[2], dst[3] = r, g, b, 0xff
		}
	case srcXor:
		if !white {
			dst[0], dst[1], dst[2] = ^dst[0], ^dst[1], ^dst[2]
		}
	case srcBic:
		if !white {
			dst[0], dst[1], dst[2], dst[3] = 0xff, 0xff, 0xff, 0xff
		}
	}
}
