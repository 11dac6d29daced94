package pict

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func checkPixels(t *testing.T, m *Image, want [][]color.RGBA) {
	t.Helper()
	for y, row := range want {
		for x, c := range row {
			if got := m.RGBAAt(x, y); got != c {
				t.Errorf("pixel (%d,%d): expected %v, got %v", x, y, c, got)
			}
		}
	}
}

func decodeOK(t *testing.T, data []byte) *Image {
	t.Helper()
	m, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return m
}

func expectKind(t *testing.T, data []byte, kind Kind) *Error {
	t.Helper()
	m, err := DecodeBytes(data)
	if !errors.Is(err, kind) {
		t.Fatalf("Expected %v, got %v", kind, err)
	}
	if m != nil {
		t.Errorf("Expected no image on failure")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Expected *Error, got %T", err)
	}
	return e
}

func TestDecodeEmpty(t *testing.T) {
	m := decodeOK(t, newPicture(image.Rect(0, 0, 3, 2), true).end())
	if m.Width != 3 || m.Height != 2 || m.Stride != 12 || len(m.Pix) != 24 {
		t.Fatalf("Unexpected geometry %dx%d stride %d", m.Width, m.Height, m.Stride)
	}
	for i, b := range m.Pix {
		if b != 0xff {
			t.Fatalf("Expected a white canvas, byte %d is %02x", i, b)
		}
	}
	if m.Depth != 0 || m.Palette != nil || !m.Drawn.Empty() {
		t.Errorf("Expected nothing drawn, got depth %d palette %v drawn %v", m.Depth, m.Palette, m.Drawn)
	}
}

func TestDecodeFrameOffset(t *testing.T) {
	frame := image.Rect(100, 50, 102, 51)
	p := newPicture(frame, true)
	p.direct(frame, frame, frame, 0, red, blue)
	m := decodeOK(t, p.end())
	if m.Frame != frame || m.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Fatalf("Unexpected frame %v bounds %v", m.Frame, m.Bounds())
	}
	checkPixels(t, m, [][]color.RGBA{{red, blue}})
	if rgba := m.RGBA(); rgba.RGBAAt(1, 0) != blue {
		t.Errorf("Expected blue in the RGBA copy, got %v", rgba.RGBAAt(1, 0))
	}
	if m.Drawn != image.Rect(0, 0, 2, 1) {
		t.Errorf("Expected drawn %v, got %v", image.Rect(0, 0, 2, 1), m.Drawn)
	}
}

func TestDecodeTooShort(t *testing.T) {
	for _, data := range [][]byte{nil, {0x00}, {0, 0, 0, 0, 0, 0, 0, 0, 0}} {
		expectKind(t, data, InvalidHeader)
	}
}

func TestDecodeInvertedFrame(t *testing.T) {
	expectKind(t, newPicture(image.Rectangle{Min: image.Pt(0, 10), Max: image.Pt(10, 0)}, true).end(), InvalidHeader)
}

func TestDecodeMaxPixels(t *testing.T) {
	data := newPicture(image.Rect(0, 0, 4, 4), true).end()
	if _, err := NewDecoder(Options{MaxPixels: 15}).Decode(data); !errors.Is(err, InvalidHeader) {
		t.Errorf("Expected InvalidHeader, got %v", err)
	}
	if _, err := NewDecoder(Options{MaxPixels: 16}).Decode(data); err != nil {
		t.Errorf("Decode failed: %v", err)
	}
}

func TestDecodeMissingEnd(t *testing.T) {
	p := newPicture(image.Rect(0, 0, 2, 2), true)
	p.op(NOP)
	e := expectKind(t, p.Bytes(), UnexpectedEndOfData)
	if e.Offset != p.Len() {
		t.Errorf("Expected offset %d, got %d", p.Len(), e.Offset)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	data := append(newPicture(image.Rect(0, 0, 1, 1), true).end(), 0xde, 0xad, 0xbe)
	decodeOK(t, data)
}

func TestDecodeIndexed(t *testing.T) {
	bounds := image.Rect(0, 0, 8, 2)
	p := newPicture(bounds, true)
	p.indexed(bounds, []color.RGBA{red, green, blue, black},
		[]byte{0, 1, 2, 3, 0, 1, 2, 3},
		[]byte{3, 3, 3, 3, 3, 3, 3, 3})
	m := decodeOK(t, p.end())
	checkPixels(t, m, [][]color.RGBA{
		{red, green, blue, black, red, green, blue, black},
		{black, black, black, black, black, black, black, black},
	})
	if m.Depth != 8 {
		t.Errorf("Expected depth 8, got %d", m.Depth)
	}
	if len(m.Palette) != 4 || m.Palette[1] != green {
		t.Errorf("Unexpected palette %v", m.Palette)
	}
	if m.Drawn != bounds {
		t.Errorf("Expected drawn %v, got %v", bounds, m.Drawn)
	}
}

func TestDecodeIndexedBands(t *testing.T) {
	colors := []color.RGBA{red, green}
	p := newPicture(image.Rect(0, 0, 8, 2), true)
	p.indexed(image.Rect(0, 0, 8, 1), colors, []byte{0, 1})
	p.indexed(image.Rect(0, 1, 8, 2), colors, []byte{1, 0})
	m := decodeOK(t, p.end())
	checkPixels(t, m, [][]color.RGBA{{red, green}, {green, red}})
	if len(m.Palette) != 2 {
		t.Errorf("Expected the shared palette, got %v", m.Palette)
	}

	p = newPicture(image.Rect(0, 0, 8, 1), true)
	p.indexed(image.Rect(0, 0, 8, 1), colors, []byte{0, 1})
	p.direct(image.Rect(0, 0, 1, 1), image.Rect(0, 0, 1, 1), image.Rect(0, 0, 1, 1), 0, blue)
	m = decodeOK(t, p.end())
	if m.Palette != nil {
		t.Errorf("Expected no palette after direct pixels, got %v", m.Palette)
	}
	if m.Depth != 32 {
		t.Errorf("Expected depth 32, got %d", m.Depth)
	}
}

func TestDecodeBitmap(t *testing.T) {
	bounds := image.Rect(0, 0, 8, 1)
	p := newPicture(bounds, false)
	p.op(BitsRect)
	p.u16(1)
	p.rect(bounds)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	p.u8(0xa1)
	m := decodeOK(t, p.end())
	checkPixels(t, m, [][]color.RGBA{{black, white, black, white, white, white, white, black}})
	if m.Depth != 1 {
		t.Errorf("Expected depth 1, got %d", m.Depth)
	}
	if len(m.Palette) != 2 || m.Palette[0] != white || m.Palette[1] != black {
		t.Errorf("Unexpected palette %v", m.Palette)
	}
}

func TestDecodePackedBitmap(t *testing.T) {
	bounds := image.Rect(0, 0, 80, 1)
	p := newPicture(bounds, false)
	p.op(PackBitsRect)
	p.u16(10)
	p.rect(bounds)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	row := make([]byte, 10)
	row[9] = 0x01
	p.packedRows(10, false, row)
	m := decodeOK(t, p.end())
	if got := m.RGBAAt(79, 0); got != black {
		t.Errorf("Expected black at the end of the row, got %v", got)
	}
	if got := m.RGBAAt(78, 0); got != white {
		t.Errorf("Expected white, got %v", got)
	}
}

func TestDecodeDirectPlanar(t *testing.T) {
	for _, cmpCount := range []int{3, 4} {
		bounds := image.Rect(0, 0, 4, 1)
		p := newPicture(bounds, true)
		p.op(DirectBitsRect)
		p.u32(0xff)
		p.pixMap(16, bounds, 4, 32, cmpCount, 8)
		p.rect(bounds)
		p.rect(bounds)
		p.u16(0)
		var row []byte
		if cmpCount == 4 {
			row = append(row, 0, 0, 0, 0)
		}
		row = append(row, 0xff, 0, 0, 10)
		row = append(row, 0, 0xff, 0, 20)
		row = append(row, 0, 0, 0xff, 30)
		p.packedRows(16, false, row)
		m := decodeOK(t, p.end())
		checkPixels(t, m, [][]color.RGBA{{red, green, blue, {R: 10, G: 20, B: 30, A: 0xff}}})
		if m.Depth != 32 || m.Palette != nil {
			t.Errorf("Expected depth 32 and no palette, got %d and %v", m.Depth, m.Palette)
		}
	}
}

func TestDecodeDirect16(t *testing.T) {
	bounds := image.Rect(0, 0, 4, 1)
	p := newPicture(bounds, true)
	p.op(DirectBitsRect)
	p.u32(0xff)
	p.pixMap(8, bounds, 0, 16, 3, 5)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	p.packedRows(8, true, []byte{0x7c, 0x00, 0x03, 0xe0, 0x00, 0x1f, 0x7f, 0xff})
	m := decodeOK(t, p.end())
	checkPixels(t, m, [][]color.RGBA{{red, green, blue, white}})
	if m.Depth != 16 {
		t.Errorf("Expected depth 16, got %d", m.Depth)
	}
}

func TestDecodeDirectDropPad(t *testing.T) {
	bounds := image.Rect(0, 0, 2, 1)
	p := newPicture(bounds, true)
	p.op(DirectBitsRect)
	p.u32(0xff)
	p.pixMap(8, bounds, 2, 32, 3, 8)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	p.Write([]byte{0xff, 0, 0, 0, 0, 0xff})
	checkPixels(t, decodeOK(t, p.end()), [][]color.RGBA{{red, blue}})
}

func TestDecodeClip(t *testing.T) {
	frame := image.Rect(0, 0, 4, 4)
	p := newPicture(frame, true)
	p.op(Clip)
	p.region(image.Rect(1, 1, 3, 3))
	px := make([]color.RGBA, 16)
	for i := range px {
		px[i] = black
	}
	p.direct(frame, frame, frame, 0, px...)
	m := decodeOK(t, p.end())
	checkPixels(t, m, [][]color.RGBA{
		{white, white, white, white},
		{white, black, black, white},
		{white, black, black, white},
		{white, white, white, white},
	})
	if m.Drawn != image.Rect(1, 1, 3, 3) {
		t.Errorf("Expected drawn %v, got %v", image.Rect(1, 1, 3, 3), m.Drawn)
	}
}

func TestDecodeMaskRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 2, 2)
	p := newPicture(bounds, true)
	p.op(DirectBitsRgn)
	p.u32(0xff)
	p.pixMap(8, bounds, 1, 32, 3, 8)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	p.region(bounds, []int{0, 0, 2}, []int{1, 1, 2}, []int{2, 0, 1})
	for i := 0; i < 4; i++ {
		p.Write([]byte{0, 0, 0, 0})
	}
	checkPixels(t, decodeOK(t, p.end()), [][]color.RGBA{{black, black}, {black, white}})
}

func TestDecodeScaled(t *testing.T) {
	src := image.Rect(0, 0, 2, 1)
	frame := image.Rect(0, 0, 4, 2)
	p := newPicture(frame, true)
	p.direct(src, src, frame, 0, red, blue)
	m := decodeOK(t, p.end())
	checkPixels(t, m, [][]color.RGBA{
		{red, red, blue, blue},
		{red, red, blue, blue},
	})
}

func TestDecodeSourceRect(t *testing.T) {
	bounds := image.Rect(0, 0, 2, 2)
	p := newPicture(image.Rect(0, 0, 1, 1), true)
	p.direct(bounds, image.Rect(1, 1, 2, 2), image.Rect(0, 0, 1, 1), 0, red, green, blue, black)
	checkPixels(t, decodeOK(t, p.end()), [][]color.RGBA{{black}})
}

func TestDecodeTransferModes(t *testing.T) {
	for _, tc := range []struct {
		mode uint16
		src  color.RGBA
		want color.RGBA
	}{
		{srcCopy, black, black},
		{ditherCopy | srcCopy, red, red},
		{srcOr, white, red},
		{srcOr, blue, blue},
		{srcXor, black, color.RGBA{G: 0xff, B: 0xff, A: 0xff}},
		{srcBic, black, white},
		{notSrcCopy, black, white},
		{notSrcCopy + srcOr, white, black},
		{32, blue, blue},
	} {
		frame := image.Rect(0, 0, 1, 1)
		p := newPicture(frame, true)
		p.direct(frame, frame, frame, 0, red)
		p.direct(frame, frame, frame, tc.mode, tc.src)
		if got := decodeOK(t, p.end()).RGBAAt(0, 0); got != tc.want {
			t.Errorf("mode %d with %v: expected %v, got %v", tc.mode, tc.src, tc.want, got)
		}
	}
}

func TestDecodeSkipsUnsupported(t *testing.T) {
	frame := image.Rect(0, 0, 2, 2)
	p := newPicture(frame, true)
	p.op(0x001a) // RGBFgCol
	p.Write(make([]byte, 6))
	p.op(0x0030) // frameRect
	p.rect(frame)
	p.op(0x0009) // PnPat
	p.Write(make([]byte, 8))
	p.op(0x00a5)
	p.u16(3)
	p.Write([]byte{1, 2, 3})
	p.op(0x0100)
	p.u16(0)
	p.op(0x8000)
	p.op(0x8201)
	p.u32(5)
	p.Write(make([]byte, 5))
	p.op(0x0070) // framePoly
	p.u16(10)
	p.rect(frame)
	data := p.end()

	m := decodeOK(t, data)
	for _, b := range m.Pix {
		if b != 0xff {
			t.Fatalf("Skipped opcodes changed the canvas")
		}
	}
	if !m.Drawn.Empty() {
		t.Errorf("Expected nothing drawn, got %v", m.Drawn)
	}

	f, _ := NewFile(data)
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	n := 0
	for _, r := range f.Records {
		if _, ok := r.(*OpUnsupported); ok {
			n++
		}
	}
	if n != 8 {
		t.Errorf("Expected 8 skipped records, got %d", n)
	}
}

func TestDecodePaletteOutOfRange(t *testing.T) {
	bounds := image.Rect(0, 0, 8, 1)
	p := newPicture(bounds, true)
	p.indexed(bounds, []color.RGBA{red, green}, []byte{0, 1, 5})
	e := expectKind(t, p.end(), PaletteIndexOutOfRange)
	if e.Opcode != int(PackBitsRect) {
		t.Errorf("Expected opcode %04x, got %04x", PackBitsRect, e.Opcode)
	}
}

func TestDecodeRowSizeMismatch(t *testing.T) {
	bounds := image.Rect(0, 0, 8, 1)
	p := newPicture(bounds, true)
	p.op(PackBitsRect)
	p.pixMap(4, bounds, 0, 8, 1, 8)
	p.colorTable(red)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	p.Write(make([]byte, 4))
	expectKind(t, p.end(), RowSizeMismatch)
}

func TestDecodeUnsupportedDepth(t *testing.T) {
	bounds := image.Rect(0, 0, 8, 1)
	p := newPicture(bounds, true)
	p.op(PackBitsRect)
	p.pixMap(8, bounds, 0, 3, 1, 3)
	p.colorTable(red)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	expectKind(t, p.end(), UnsupportedPixelDepth)

	p = newPicture(bounds, true)
	p.op(DirectBitsRect)
	p.u32(0xff)
	p.pixMap(8, bounds, 0, 8, 1, 8)
	p.rect(bounds)
	p.rect(bounds)
	p.u16(0)
	expectKind(t, p.end(), UnsupportedPixelDepth)
}

func TestDecodePackbitsMismatch(t *testing.T) {
	bounds := image.Rect(0, 0, 8, 1)
	short := newPicture(bounds, true)
	short.op(PackBitsRect)
	short.pixMap(8, bounds, 0, 8, 1, 8)
	short.colorTable(red)
	short.rect(bounds)
	short.rect(bounds)
	short.u16(0)
	short.u8(2)
	short.Write([]byte{0xfa, 0x00}) // 7 bytes
	expectKind(t, short.end(), PackbitsLengthMismatch)
}

func TestDecodeTruncatedPixels(t *testing.T) {
	bounds := image.Rect(0, 0, 8, 2)
	p := newPicture(bounds, true)
	p.indexed(bounds, []color.RGBA{red}, []byte{0})
	expectKind(t, p.Bytes(), UnexpectedEndOfData)
}

func TestDecodeIndexedWithoutTable(t *testing.T) {
	b := &Bits{PixMap: &PixMap{IsPixMap: true}, format: rowFormat{layout: layoutIndexed}}
	s := &decodeState{frame: image.Rect(0, 0, 1, 1), img: newImage(image.Rect(0, 0, 1, 1)), clip: rectRegion(image.Rect(0, 0, 1, 1))}
	if err := s.drawBits(b, nil); !errors.Is(err, PaletteIndexOutOfRange) {
		t.Errorf("Expected PaletteIndexOutOfRange, got %v", err)
	}
}

func TestDecodePrefix(t *testing.T) {
	bounds := image.Rect(0, 0, 8, 1)
	p := newPicture(bounds, true)
	p.indexed(bounds, []color.RGBA{red, green}, []byte{0, 1})
	data := p.end()
	want := decodeOK(t, data)

	prefixed := append(make([]byte, prefixSize), data...)
	copy(prefixed, "junk that is not zero")
	got := decodeOK(t, prefixed)
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Errorf("Prefixed picture decoded differently")
	}

	f, _ := NewFile(prefixed)
	if err := f.Parse(); err != nil || !f.Prefix || f.Version != 2 {
		t.Errorf("Expected a version 2 picture with a prefix, got %v %v %v", f.Prefix, f.Version, err)
	}
}

func TestDecodeComments(t *testing.T) {
	p := newPicture(image.Rect(0, 0, 1, 1), true)
	p.op(ShortComment)
	p.u16(100)
	p.op(LongComment)
	p.u16(200)
	p.u16(3)
	p.Write([]byte("abc"))
	p.op(ShortComment)
	p.u16(101)
	m := decodeOK(t, p.end())
	if len(m.Comments) != 3 {
		t.Fatalf("Expected 3 comments, got %d", len(m.Comments))
	}
	if c := m.Comments[1]; c.Kind != 200 || string(c.Data) != "abc" {
		t.Errorf("Unexpected long comment %+v", c)
	}
	if c := m.Comments[2]; c.Kind != 101 || c.Data != nil {
		t.Errorf("Unexpected short comment %+v", c)
	}
}

func TestDecodeVersion1(t *testing.T) {
	frame := image.Rect(0, 0, 2, 1)
	p := newPicture(frame, false)
	p.op(ShortComment)
	p.u16(7)
	p.op(0x0003) // TxFont
	p.u16(0)
	p.op(BitsRect)
	p.u16(2)
	p.rect(frame)
	p.rect(frame)
	p.rect(frame)
	p.u16(0)
	p.Write([]byte{0x80, 0x00})
	m := decodeOK(t, p.end())
	checkPixels(t, m, [][]color.RGBA{{black, white}})
}

func jpegPayload(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var enc bytes.Buffer
	if err := jpeg.Encode(&enc, src, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}

	var p picture
	p.u16(0)
	for _, v := range []uint32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000} {
		p.u32(v)
	}
	p.u32(0)
	p.rect(image.Rect(0, 0, 0, 0))
	p.u16(0)
	p.rect(image.Rect(0, 0, w, h))
	p.u32(0)
	p.u32(0)

	p.u32(imageDescriptionSize)
	p.Write([]byte("jpeg"))
	p.Write(make([]byte, 24))
	p.u16(uint16(w))
	p.u16(uint16(h))
	p.u32(72 << 16)
	p.u32(72 << 16)
	p.u32(uint32(enc.Len()))
	p.u16(1)
	name := make([]byte, 32)
	name[0] = 4
	copy(name[1:], "JPEG")
	p.Write(name)
	p.u16(24)
	p.u16(0xffff)
	p.Write(enc.Bytes())
	return p.Bytes()
}

func TestDecodeQuickTimeJPEG(t *testing.T) {
	frame := image.Rect(0, 0, 8, 8)
	payload := jpegPayload(t, 8, 8, red)
	p := newPicture(frame, true)
	p.op(QTcomp)
	p.u32(uint32(len(payload)))
	p.Write(payload)
	data := p.end()

	m := decodeOK(t, data)
	c := m.RGBAAt(4, 4)
	if c.R < 0xe0 || c.G > 0x30 || c.B > 0x30 {
		t.Errorf("Expected red, got %v", c)
	}
	if m.Depth != 32 || m.Drawn != m.Bounds() {
		t.Errorf("Expected depth 32 over the whole frame, got %d over %v", m.Depth, m.Drawn)
	}

	f, _ := NewFile(data)
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var q *OpQTcomp
	for _, r := range f.Records {
		if v, ok := r.(*OpQTcomp); ok {
			q = v
		}
	}
	if q == nil || q.Compressor != "jpeg" || q.Name != "JPEG" || q.Width != 8 || q.Depth != 24 {
		t.Fatalf("Unexpected QuickTime record %+v", q)
	}
	var out bytes.Buffer
	if _, err := q.DumpTo(&out); err != nil || out.Len() != len(q.Data) {
		t.Errorf("DumpTo wrote %d of %d bytes: %v", out.Len(), len(q.Data), err)
	}
}

func TestDecodeQuickTimeBadJPEG(t *testing.T) {
	payload := jpegPayload(t, 8, 8, red)
	// corrupt the SOI marker after the 68 byte header and the description
	payload[68+imageDescriptionSize] ^= 0xff
	p := newPicture(image.Rect(0, 0, 8, 8), true)
	p.op(QTcomp)
	p.u32(uint32(len(payload)))
	p.Write(payload)
	expectKind(t, p.end(), MalformedOpcodePayload)
}

func TestDecodeZeroArea(t *testing.T) {
	for _, frame := range []image.Rectangle{image.Rect(0, 0, 0, 5), image.Rect(3, 3, 7, 3)} {
		m := decodeOK(t, newPicture(frame, true).end())
		if len(m.Pix) != 0 || m.Width*m.Height != 0 {
			t.Errorf("%v: expected an empty image, got %dx%d with %d bytes", frame, m.Width, m.Height, len(m.Pix))
		}
	}
}

func TestDecodeUnsupportedBetweenRecords(t *testing.T) {
	frame := image.Rect(0, 0, 2, 2)
	left := image.Rect(0, 0, 1, 2)
	right := image.Rect(1, 0, 2, 2)
	build := func(insert func(p *picture)) []byte {
		p := newPicture(frame, true)
		p.direct(left, left, left, 0, red, green)
		insert(p)
		p.direct(right, right, right, 0, blue, black)
		return p.end()
	}
	want := decodeOK(t, build(func(*picture) {}))
	for name, insert := range map[string]func(p *picture){
		"reserved length word": func(p *picture) {
			p.op(0x00a7)
			p.u16(5)
			p.Write([]byte{1, 2, 3, 4, 5})
		},
		"reserved long": func(p *picture) {
			p.op(0x8300)
			p.u32(2)
			p.u16(0xffff)
		},
		"version 2 reserved": func(p *picture) {
			p.op(0x0200)
			p.u32(0x00ff00ff)
		},
	} {
		got := decodeOK(t, build(insert))
		if !bytes.Equal(got.Pix, want.Pix) || got.Drawn != want.Drawn {
			t.Errorf("%s: inserted opcode changed the image", name)
		}
	}
	checkPixels(t, want, [][]color.RGBA{{red, blue}, {green, black}})
}

func TestDecodeSourceOutsideBounds(t *testing.T) {
	frame := image.Rect(0, 0, 4, 1)
	bounds := image.Rect(0, 0, 2, 1)
	p := newPicture(frame, true)
	p.direct(bounds, frame, frame, 0, red, blue)
	s := &decodeState{data: p.end(), maxPixels: DefaultMaxPixels}
	m, err := s.run()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	checkPixels(t, m, [][]color.RGBA{{red, blue, white, white}})
	if m.Drawn != bounds {
		t.Errorf("Expected drawn %v, got %v", bounds, m.Drawn)
	}
	if s.work != 2 {
		t.Errorf("Expected 2 pixels of work, got %d", s.work)
	}
}

func TestDecodeWorkBudget(t *testing.T) {
	frame := image.Rect(0, 0, 64, 64)
	pixel := image.Rect(0, 0, 1, 1)
	stretched := func(records int) []byte {
		p := newPicture(frame, true)
		for i := 0; i < records; i++ {
			p.direct(pixel, pixel, frame, 0, red)
		}
		return p.end()
	}
	d := NewDecoder(Options{MaxPixels: 64 * 64})
	m, err := d.Decode(stretched(workFactor))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := m.RGBAAt(63, 63); got != red {
		t.Errorf("Expected the pixel stretched over the frame, got %v", got)
	}

	_, err = d.Decode(stretched(workFactor + 1))
	if !errors.Is(err, MalformedOpcodePayload) {
		t.Fatalf("Expected MalformedOpcodePayload, got %v", err)
	}
	var e *Error
	if errors.As(err, &e) && e.Opcode != int(DirectBitsRect) {
		t.Errorf("Expected opcode %04x, got %04x", DirectBitsRect, e.Opcode)
	}
}

func TestScaleLargeSpans(t *testing.T) {
	for _, tc := range []struct {
		d, dMin, dLen, sMin, sLen int
		want                      int
	}{
		{32766, -32768, 65535, -32768, 65535, 32766},
		{0, 0, 65535, 0, 1, 0},
		{65534, 0, 65535, 0, 65535, 65534},
		{3, 0, 4, 0, 2, 1},
	} {
		got := scale(tc.d, tc.dMin, tc.dLen, tc.sMin, tc.sLen)
		if got != tc.want {
			t.Errorf("scale(%d, %d, %d, %d, %d): expected %d, got %d", tc.d, tc.dMin, tc.dLen, tc.sMin, tc.sLen, tc.want, got)
		}
		if u := unscale(got, tc.dMin, tc.dLen, tc.sMin, tc.sLen); u > tc.d || scale(u, tc.dMin, tc.dLen, tc.sMin, tc.sLen) != got {
			t.Errorf("unscale(%d): got %d, which does not map back", got, u)
		}
	}
}
