package jpeg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/juju/errors"
)

// Marker Segment code
const (
	Unknown uint16 = 0

	SOI  uint16 = 0xffd8 // Start of Image
	APP0 uint16 = 0xffe0 // Application Segment 0 (JFIF)
	APP1 uint16 = 0xffe1 // Application Segment 1 (Exif)
	DQT  uint16 = 0xffdb // Define Quantization Table
	DHT  uint16 = 0xffc4 // Define Huffman Table
	DRI  uint16 = 0xffdd // Define Restart Interval
	SOF0 uint16 = 0xffc0 // Start of Frame (Baseline DCT)
	SOF2 uint16 = 0xffc2 // Start of Frame (Progressive DCT)
	SOS  uint16 = 0xffda // Start of Scan
	COM  uint16 = 0xfffe // Comment
	Data uint16 = 1
	EOI  uint16 = 0xffd9 // End of Image
)

var markerSegmentName = map[uint16]string{
	Unknown: "Unknown",

	SOI:  "SOI",
	APP0: "APP0",
	APP1: "APP1",
	DQT:  "DQT",
	DHT:  "DHT",
	DRI:  "DRI",
	SOF0: "SOF0",
	SOF2: "SOF2",
	SOS:  "SOS",
	COM:  "COM",
	Data: "Data",
	EOI:  "EOI",
}

// Segment is a marker segment of jpeg. Offset is where its payload starts.
type Segment struct {
	Marker uint16
	Offset int64
	Length int64

	// APP0 is set for a JFIF APP0 segment.
	APP0 *APP0Data
}

// Name generates the name string of the segment.
func (s *Segment) Name() string {
	name, ok := markerSegmentName[s.Marker]
	if !ok {
		name = fmt.Sprintf("%x", s.Marker)
	}
	return name
}

// String makes Segment satisfy the Stringer interface.
func (s *Segment) String() string {
	return fmt.Sprintf("%s: %08x, %d[bytes]", s.Name(), s.Offset, s.Length)
}

// DumpTo prints the content of Segment.
func (s *Segment) DumpTo(w io.Writer) {
	fmt.Fprintln(w, s)
	if s.APP0 != nil {
		fmt.Fprint(w, s.APP0)
	}
}

// APP0Data is the Application Segment 0 (JFIF)
type APP0Data struct {
	Identifier string
	Version    uint16
	Units      uint8
	XDensity   uint16
	YDensity   uint16
	XThumbnail uint8
	YThumbnail uint8
}

func parseAPP0(payload []byte) (*APP0Data, error) {
	if len(payload) < 14 {
		return nil, errors.NotValidf("APP0 of %d bytes", len(payload))
	}
	ident := payload[:5]
	if !bytes.Equal(ident, []byte{'J', 'F', 'I', 'F', 0}) {
		// JFXX and vendor extensions carry no header worth listing
		return nil, nil
	}
	be := binary.BigEndian
	return &APP0Data{
		Identifier: string(ident[:4]),
		Version:    be.Uint16(payload[5:]),
		Units:      payload[7],
		XDensity:   be.Uint16(payload[8:]),
		YDensity:   be.Uint16(payload[10:]),
		XThumbnail: payload[12],
		YThumbnail: payload[13],
	}, nil
}

// String makes APP0Data satisfy the Stringer interface.
func (d *APP0Data) String() string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("  identifier: %s\n", d.Identifier))
	buf.WriteString(fmt.Sprintf("  version: %d.%02d\n", d.Version>>8, d.Version&0xff))
	buf.WriteString(fmt.Sprintf("  density: %dx%d (units %d)\n", d.XDensity, d.YDensity, d.Units))
	buf.WriteString(fmt.Sprintf("  thumbnail: %dx%d\n", d.XThumbnail, d.YThumbnail))
	return buf.String()
}
