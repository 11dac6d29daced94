package jpeg

import (
	"bytes"
	"image"
	"image/color"
	stdjpeg "image/jpeg"
	"io"
	"strings"
	"testing"
)

// jfifAPP0 is a version 1.02 header at 72 dots per inch.
var jfifAPP0 = []byte{
	0xff, 0xe0, 0x00, 0x10,
	'J', 'F', 'I', 'F', 0,
	0x01, 0x02,
	0x01,
	0x00, 0x48, 0x00, 0x48,
	0x00, 0x00,
}

func encodeJFIF(t *testing.T) []byte {
	t.Helper()
	m := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := range m.Pix {
		m.Pix[i] = 0x80
	}
	m.Set(3, 3, color.RGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, m, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	raw := buf.Bytes()
	// the encoder writes no APP0
	return append(append(append([]byte{}, raw[:2]...), jfifAPP0...), raw[2:]...)
}

func TestParse(t *testing.T) {
	data := encodeJFIF(t)
	f := NewFile(io.NewSectionReader(bytes.NewReader(data), 0, int64(len(data))))
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var names []string
	for _, s := range f.Segments {
		names = append(names, s.Name())
	}
	got := strings.Join(names, " ")
	for _, want := range []string{"SOI APP0 DQT", "SOF0", "DHT", "SOS Data EOI"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in segments %q", want, got)
		}
	}
	if !strings.HasPrefix(got, "SOI APP0") || !strings.HasSuffix(got, "SOS Data EOI") {
		t.Errorf("Unexpected segment order %q", got)
	}

	app0 := f.Segments[1].APP0
	if app0 == nil || app0.Identifier != "JFIF" || app0.Version != 0x0102 || app0.XDensity != 72 {
		t.Errorf("Unexpected APP0 %+v", app0)
	}
	if s := f.Segments[1]; s.Offset != 6 || s.Length != 14 {
		t.Errorf("Expected APP0 payload at 6 with 14 bytes, got %d with %d", s.Offset, s.Length)
	}

	last := f.Segments[len(f.Segments)-1]
	data2 := f.Segments[len(f.Segments)-2]
	if data2.Offset+data2.Length != int64(len(data))-2 || last.Offset != int64(len(data)) {
		t.Errorf("Data segment %v does not end at the EOI", data2)
	}

	var out bytes.Buffer
	f.DumpTo(&out)
	if !strings.Contains(out.String(), "APP0: 00000006, 14[bytes]\n  identifier: JFIF\n") {
		t.Errorf("Unexpected dump:\n%s", out.String())
	}
}

func TestParseInvalid(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"no SOI":    {0x00, 0x11, 0x22, 0x33},
		"short":     {0xff, 0xd8, 0xff},
		"past end":  {0xff, 0xd8, 0xff, 0xdb, 0x01, 0x00, 0x00},
		"early EOI": {0xff, 0xd8, 0xff, 0xd9},
	} {
		f := NewFile(io.NewSectionReader(bytes.NewReader(data), 0, int64(len(data))))
		if err := f.Parse(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
