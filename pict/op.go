package pict

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// opcode
const (
	NOP            uint16 = 0x0000
	Clip           uint16 = 0x0001
	BkPixPat       uint16 = 0x0012
	PnPixPat       uint16 = 0x0013
	FillPixPat     uint16 = 0x0014
	Version        uint16 = 0x0011
	LongText       uint16 = 0x0028
	BitsRect       uint16 = 0x0090
	BitsRgn        uint16 = 0x0091
	PackBitsRect   uint16 = 0x0098
	PackBitsRgn    uint16 = 0x0099
	DirectBitsRect uint16 = 0x009a
	DirectBitsRgn  uint16 = 0x009b
	ShortComment   uint16 = 0x00a0
	LongComment    uint16 = 0x00a1
	EndPic         uint16 = 0x00ff
	Header         uint16 = 0x0c00
	QTcomp         uint16 = 0x8200
)

// Record is one parsed opcode. The set of record types is closed; opcodes
// without a dedicated type come back as *OpUnsupported.
type Record interface {
	Code() uint16
	Pos() int
	Dump(w io.Writer)
	record()
}

type op struct {
	Opcode uint16
	Offset int
}

func (o *op) Code() uint16 { return o.Opcode }
func (o *op) Pos() int     { return o.Offset }
func (o *op) record()      {}

type OpNop struct{ op }

func (o *OpNop) Dump(w io.Writer) { fmt.Fprintf(w, "  Op Nop\n") }

type OpVersion struct {
	op
	Version int
}

func (o *OpVersion) Dump(w io.Writer) { fmt.Fprintf(w, "  Op Version: %d\n", o.Version) }

type OpHeader struct {
	op
	Version int16
	ResH    uint32
	ResV    uint32
	SrcRect image.Rectangle
}

func (o *OpHeader) parse(c *Cursor) error {
	b, err := c.Bytes(24)
	if err != nil {
		return err
	}
	o.Version = int16(binary.BigEndian.Uint16(b[0:]))
	if o.Version == -1 {
		// bounds as 16.16 fixed point
		var v [4]int
		for i := range v {
			v[i] = int(int32(binary.BigEndian.Uint32(b[4+4*i:])) >> 16)
		}
		o.SrcRect = image.Rect(v[1], v[0], v[3], v[2])
		return nil
	}
	o.ResH = binary.BigEndian.Uint32(b[4:])
	o.ResV = binary.BigEndian.Uint32(b[8:])
	o.SrcRect = rectAt(b[12:])
	return nil
}

func (o *OpHeader) Dump(w io.Writer) {
	fmt.Fprintf(w, "  Op Header: v%d %d.%d,%d.%d %+v\n",
		o.Version,
		o.ResH>>16,
		o.ResH&0xffff,
		o.ResV>>16,
		o.ResV&0xffff,
		o.SrcRect)
}

type OpClip struct {
	op
	Region *Region
}

func (o *OpClip) Dump(w io.Writer) { fmt.Fprintf(w, "  Op Clip: %v\n", o.Region) }

// OpColorTable precedes the indexed pixmap record that embeds it.
type OpColorTable struct {
	op
	Table *ColorTable
}

func (o *OpColorTable) Dump(w io.Writer) { fmt.Fprintf(w, "  Op ColorTable: %v\n", o.Table) }

// Bits is the payload shared by the bitmap and pixmap opcodes. Data aliases
// the parsed input.
type Bits struct {
	PixMap  *PixMap
	Table   *ColorTable
	SrcRect image.Rectangle
	DstRect image.Rectangle
	Mode    uint16
	Mask    *Region
	Data    []byte

	format     rowFormat
	dataOffset int
}

func (b *Bits) dump(w io.Writer, name string) {
	fmt.Fprintf(w, "  Op %s: %v, SrcRect=%+v, DstRect=%+v, Mode=%d", name, b.PixMap, b.SrcRect, b.DstRect, b.Mode)
	if b.Mask != nil {
		fmt.Fprintf(w, ", Mask=%v", b.Mask)
	}
	fmt.Fprintf(w, ", %d data bytes\n", len(b.Data))
}

// OpPackBitsRect covers BitsRect, BitsRgn, PackBitsRect and PackBitsRgn.
type OpPackBitsRect struct {
	op
	Bits
}

func (o *OpPackBitsRect) Dump(w io.Writer) {
	o.dump(w, "PackBitsRect")
	if !o.PixMap.IsPixMap {
		o.dumpBitMap(w)
	}
}

const maxDumpWidth = 128

// dumpBitMap draws the rows of a BitMap, @ for a set pixel.
func (b *Bits) dumpBitMap(w io.Writer) {
	width := b.PixMap.Bounds.Dx()
	if width > maxDumpWidth {
		return
	}
	c := NewCursor(b.Data)
	buf := make([]byte, b.format.unpacked)
	line := make([]byte, width)
	for y := 0; y < b.PixMap.Bounds.Dy(); y++ {
		row, err := b.format.readRow(c, b.PixMap.RowBytes, buf)
		if err != nil {
			fmt.Fprintf(w, "    %02d: %v\n", y, err)
			return
		}
		for x := range line {
			line[x] = ' '
			if row[x/8]&(0x80>>uint(x%8)) != 0 {
				line[x] = '@'
			}
		}
		fmt.Fprintf(w, "    %02d: %s\n", y, line)
	}
}

// OpDirectBitsRect covers DirectBitsRect and DirectBitsRgn.
type OpDirectBitsRect struct {
	op
	Bits
}

func (o *OpDirectBitsRect) Dump(w io.Writer) { o.dump(w, "DirectBitsRect") }

type OpShortComment struct {
	op
	Kind int16
}

func (o *OpShortComment) Dump(w io.Writer) { fmt.Fprintf(w, "  Op ShortComment: kind=%d\n", o.Kind) }

const maxDumpText = 64

type OpLongComment struct {
	op
	Kind int16
	Data []byte
}

// Text decodes the payload as Windows-1252.
func (o *OpLongComment) Text() (string, error) {
	s, err := charmap.Windows1252.NewDecoder().Bytes(o.Data)
	if err != nil {
		return "", wrapError(MalformedOpcodePayload, o.Offset, err, "comment text")
	}
	return string(s), nil
}

func (o *OpLongComment) Dump(w io.Writer) {
	fmt.Fprintf(w, "  Op LongComment: kind=%d, %d bytes", o.Kind, len(o.Data))
	if len(o.Data) > 0 && len(o.Data) <= maxDumpText {
		if s, err := o.Text(); err == nil {
			fmt.Fprintf(w, " %q", s)
		}
	}
	fmt.Fprintln(w)
}

type OpLongText struct {
	op
	Location image.Point
	Text     string
}

func (o *OpLongText) Dump(w io.Writer) {
	fmt.Fprintf(w, "  Op LongText: %v %q\n", o.Location, o.Text)
}

type OpEndPic struct{ op }

func (o *OpEndPic) Dump(w io.Writer) { fmt.Fprintf(w, "  Op EndPic\n") }

// OpUnsupported is an opcode that was skipped. Length is the payload size.
type OpUnsupported struct {
	op
	Length int
}

func (o *OpUnsupported) Dump(w io.Writer) {
	fmt.Fprintf(w, "  Op %04x: skipped %d bytes\n", o.Opcode, o.Length)
}

// tagWidth is the opcode size, one byte until a version 2 marker is seen.
type tagWidth int

const (
	byteTags tagWidth = 1
	wordTags tagWidth = 2
)

// parser yields the records of one picture in order.
type parser struct {
	c       *Cursor
	base    int
	width   tagWidth
	version int
	pending Record
}

func newParser(c *Cursor, base int) *parser {
	return &parser{c: c, base: base, width: byteTags, version: 1}
}

func (p *parser) next() (Record, error) {
	if p.pending != nil {
		r := p.pending
		p.pending = nil
		return r, nil
	}
	if p.width == wordTags {
		if err := p.c.Align(p.base, 2); err != nil {
			return nil, err
		}
	}
	start := p.c.Offset()
	var opcode uint16
	if p.width == wordTags {
		v, err := p.c.U16()
		if err != nil {
			return nil, err
		}
		opcode = v
	} else {
		v, err := p.c.U8()
		if err != nil {
			return nil, err
		}
		opcode = uint16(v)
	}
	r, err := p.parseOp(op{Opcode: opcode, Offset: start})
	if err != nil {
		if e, ok := err.(*Error); ok && e.Opcode < 0 {
			e.Opcode = int(opcode)
		}
		return nil, err
	}
	return r, nil
}

func (p *parser) parseOp(o op) (Record, error) {
	c := p.c
	switch o.Opcode {
	case NOP:
		return &OpNop{o}, nil
	case Version:
		return p.parseVersion(o)
	case Header:
		r := &OpHeader{op: o}
		return r, r.parse(c)
	case Clip:
		rgn, err := parseRegion(c)
		if err != nil {
			return nil, err
		}
		return &OpClip{op: o, Region: rgn}, nil
	case BitsRect, BitsRgn, PackBitsRect, PackBitsRgn, DirectBitsRect, DirectBitsRgn:
		return p.parseBits(o)
	case ShortComment:
		k, err := c.I16()
		if err != nil {
			return nil, err
		}
		return &OpShortComment{op: o, Kind: k}, nil
	case LongComment:
		k, err := c.I16()
		if err != nil {
			return nil, err
		}
		n, err := c.U16()
		if err != nil {
			return nil, err
		}
		data, err := c.Bytes(int(n))
		if err != nil {
			return nil, err
		}
		return &OpLongComment{op: o, Kind: k, Data: data}, nil
	case LongText:
		loc, err := c.Point()
		if err != nil {
			return nil, err
		}
		n, err := c.U8()
		if err != nil {
			return nil, err
		}
		raw, err := c.Bytes(int(n))
		if err != nil {
			return nil, err
		}
		text, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, wrapError(MalformedOpcodePayload, o.Offset, err, "text")
		}
		return &OpLongText{op: o, Location: loc, Text: string(text)}, nil
	case QTcomp:
		return parseQuickTime(c, o)
	case EndPic:
		return &OpEndPic{o}, nil
	}

	start := c.Offset()
	if err := p.skip(o.Opcode); err != nil {
		return nil, err
	}
	return &OpUnsupported{op: o, Length: c.Offset() - start}, nil
}

func (p *parser) parseVersion(o op) (Record, error) {
	c := p.c
	if p.width == wordTags {
		v, err := c.U16()
		if err != nil {
			return nil, err
		}
		if v != 0x02ff {
			return nil, newError(MalformedOpcodePayload, o.Offset, "invalid version: %04x", v)
		}
		return &OpVersion{op: o, Version: 2}, nil
	}
	v, err := c.U8()
	if err != nil {
		return nil, err
	}
	switch v {
	case 1:
		p.version = 1
	case 2:
		ff, err := c.U8()
		if err != nil {
			return nil, err
		}
		if ff != 0xff {
			return nil, newError(MalformedOpcodePayload, o.Offset, "invalid version: 02%02x", ff)
		}
		p.version = 2
		p.width = wordTags
	default:
		return nil, newError(MalformedOpcodePayload, o.Offset, "invalid version: %d", v)
	}
	return &OpVersion{op: o, Version: p.version}, nil
}

func (p *parser) parseBits(o op) (Record, error) {
	c := p.c
	direct := o.Opcode == DirectBitsRect || o.Opcode == DirectBitsRgn
	var baseAddr uint32
	if direct {
		var err error
		if baseAddr, err = c.U32(); err != nil {
			return nil, err
		}
	}
	pm, err := parsePixMap(c, direct)
	if err != nil {
		return nil, err
	}
	pm.BaseAddr = baseAddr
	b := Bits{PixMap: pm}
	if pm.IsPixMap && !direct {
		if b.Table, err = parseColorTable(c); err != nil {
			return nil, err
		}
		pm.HasColorTable = true
	}
	if b.SrcRect, err = c.Rect(); err != nil {
		return nil, err
	}
	if b.DstRect, err = c.Rect(); err != nil {
		return nil, err
	}
	if b.Mode, err = c.U16(); err != nil {
		return nil, err
	}
	if o.Opcode&1 != 0 {
		if b.Mask, err = parseRegion(c); err != nil {
			return nil, err
		}
	}
	if direct && pm.PixelSize <= 8 {
		return nil, newError(UnsupportedPixelDepth, o.Offset, "depth %d in a direct pixmap", pm.PixelSize)
	}
	packed := o.Opcode != BitsRect && o.Opcode != BitsRgn
	if b.format, err = pm.format(o.Offset, packed); err != nil {
		return nil, err
	}
	start := c.Offset()
	b.dataOffset = start
	if err := b.format.skipRows(c, pm.Bounds.Dy(), pm.RowBytes); err != nil {
		return nil, err
	}
	b.Data = c.data[start:c.Offset():c.Offset()]

	var r Record
	if direct {
		r = &OpDirectBitsRect{op: o, Bits: b}
	} else {
		r = &OpPackBitsRect{op: o, Bits: b}
	}
	if b.Table != nil {
		p.pending = r
		return &OpColorTable{op: o, Table: b.Table}, nil
	}
	return r, nil
}

// skip advances past the payload of an opcode without a dedicated record,
// following the QuickDraw opcode table.
func (p *parser) skip(opcode uint16) error {
	c := p.c
	switch {
	case opcode <= 0x00ff:
		if n, ok := fixedLength[opcode]; ok {
			return c.Skip(n)
		}
	case opcode <= 0x7fff:
		return c.Skip(int(opcode>>8) * 2)
	case opcode <= 0x80ff:
		return nil
	default:
		return skipLong(c)
	}

	switch {
	case opcode == BkPixPat || opcode == PnPixPat || opcode == FillPixPat:
		return skipPixPat(c)
	case opcode >= 0x0024 && opcode <= 0x0027, opcode >= 0x002c && opcode <= 0x002f,
		opcode >= 0x0092 && opcode <= 0x0097, opcode >= 0x009c && opcode <= 0x009f,
		opcode >= 0x00a2 && opcode <= 0x00af:
		n, err := c.U16()
		if err != nil {
			return err
		}
		return c.Skip(int(n))
	case opcode == 0x0029 || opcode == 0x002a:
		return skipText(c, 1)
	case opcode == 0x002b:
		return skipText(c, 2)
	case opcode >= 0x0070 && opcode <= 0x0077:
		start := c.Offset()
		n, err := c.U16()
		if err != nil {
			return err
		}
		if n < 10 {
			return newError(MalformedOpcodePayload, start, "polygon size %d", n)
		}
		return c.Skip(int(n) - 2)
	case opcode >= 0x0080 && opcode <= 0x0087:
		_, err := parseRegion(c)
		return err
	case opcode >= 0x00b0 && opcode <= 0x00cf:
		return nil
	case opcode >= 0x00d0 && opcode <= 0x00fe:
		return skipLong(c)
	}
	return newError(MalformedOpcodePayload, c.Offset(), "no skip rule for opcode %04x", opcode)
}

func skipLong(c *Cursor) error {
	start := c.Offset()
	n, err := c.U32()
	if err != nil {
		return err
	}
	if int64(n) > int64(c.Len()) {
		return newError(MalformedOpcodePayload, start, "payload of %d bytes, %d left", n, c.Len())
	}
	return c.Skip(int(n))
}

func skipText(c *Cursor, prefix int) error {
	if err := c.Skip(prefix); err != nil {
		return err
	}
	n, err := c.U8()
	if err != nil {
		return err
	}
	return c.Skip(int(n))
}

// skipPixPat walks a pixel pattern: type, 1-bit pattern, then either an RGB
// color or a pixmap with its color table and pixel data.
func skipPixPat(c *Cursor) error {
	start := c.Offset()
	patType, err := c.U16()
	if err != nil {
		return err
	}
	if err := c.Skip(8); err != nil {
		return err
	}
	switch patType {
	case 1:
	case 2:
		return c.Skip(6)
	default:
		return newError(MalformedOpcodePayload, start, "pattern type %d", patType)
	}
	pm, err := parsePixMap(c, true)
	if err != nil {
		return err
	}
	if _, err := parseColorTable(c); err != nil {
		return err
	}
	f, err := pm.format(start, true)
	if err != nil {
		return err
	}
	return f.skipRows(c, pm.Bounds.Dy(), pm.RowBytes)
}

// payload sizes of the fixed-length opcodes up to 0x00ff
var fixedLength = func() map[uint16]int {
	m := map[uint16]int{
		0x0002: 8, 0x0003: 2, 0x0004: 1, 0x0005: 2, 0x0006: 4, 0x0007: 4,
		0x0008: 2, 0x0009: 8, 0x000a: 8, 0x000b: 4, 0x000c: 4, 0x000d: 2,
		0x000e: 4, 0x000f: 4, 0x0010: 8, 0x0015: 2, 0x0016: 2,
		0x0017: 0, 0x0018: 0, 0x0019: 0,
		0x001a: 6, 0x001b: 6, 0x001c: 0, 0x001d: 6, 0x001e: 0, 0x001f: 6,
		0x0020: 8, 0x0021: 4, 0x0022: 6, 0x0023: 2,
	}
	for code := uint16(0x0030); code <= 0x006f; code++ {
		switch code & 0x00f8 {
		case 0x30, 0x40, 0x50:
			m[code] = 8
		case 0x60:
			m[code] = 12
		case 0x68:
			m[code] = 4
		default:
			m[code] = 0
		}
	}
	for code := uint16(0x0078); code <= 0x007f; code++ {
		m[code] = 0
	}
	for code := uint16(0x0088); code <= 0x008f; code++ {
		m[code] = 0
	}
	return m
}()
