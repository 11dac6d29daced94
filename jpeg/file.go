// Package jpeg lists the marker segments of a JFIF stream, such as the
// payload of a QuickTime-compressed picture.
package jpeg

import (
	"encoding/binary"
	"io"

	"github.com/juju/errors"
)

// File is a struct for the JPEG file(JFIF).
type File struct {
	Segments []*Segment

	reader *io.SectionReader
}

// NewFile creates a new JPEG file struct.
func NewFile(sr *io.SectionReader) *File {
	return &File{reader: sr}
}

func readMarkerLength(r io.Reader) (marker uint16, length uint16, e error) {
	var buf uint16
	if err := binary.Read(r, binary.BigEndian, &buf); err != nil {
		return marker, length, err
	}

	marker = buf
	if marker != SOI && marker != EOI {
		if err := binary.Read(r, binary.BigEndian, &buf); err != nil {
			return marker, length, err
		}
		length = buf
	}

	return marker, length, nil
}

// Parse parses a JPEG file up to its entropy-coded data.
func (f *File) Parse() error {
	if _, err := f.reader.Seek(0, io.SeekStart); err != nil {
		return errors.Trace(err)
	}
	var offset int64

	// SOI
	marker, _, err := readMarkerLength(f.reader)
	if err != nil || marker != SOI {
		return errors.NotValidf("jpeg without SOI")
	}
	offset += 2
	f.Segments = append(f.Segments, &Segment{Marker: SOI, Offset: offset})

	// marker segments
	for {
		marker, length, err := readMarkerLength(f.reader)
		if err != nil {
			return errors.Annotatef(err, "segment at %d", offset)
		}
		if marker>>8 != 0xff || marker == EOI || length < 2 {
			return errors.NotValidf("segment %04x of length %d at %d", marker, length, offset)
		}

		length -= 2 // length includes 'length uint16' itself.
		offset += 4 // 'marker uint16' + 'length uint16'
		seg := &Segment{Marker: marker, Offset: offset, Length: int64(length)}
		if marker == APP0 {
			payload := make([]byte, length)
			if _, err := io.ReadFull(f.reader, payload); err != nil {
				return errors.Annotate(err, "APP0")
			}
			if seg.APP0, err = parseAPP0(payload); err != nil {
				return errors.Trace(err)
			}
		} else if _, err := f.reader.Seek(int64(length), io.SeekCurrent); err != nil {
			return errors.Trace(err)
		}
		f.Segments = append(f.Segments, seg)
		offset += int64(length)
		if offset > f.reader.Size() {
			return errors.NotValidf("segment %s past the end", seg.Name())
		}

		// SOS
		if marker == SOS {
			break
		}
	}

	// data
	end := f.reader.Size()
	var tail [2]byte
	hasEOI := false
	if end-offset >= 2 {
		if _, err := f.reader.ReadAt(tail[:], end-2); err == nil && binary.BigEndian.Uint16(tail[:]) == EOI {
			hasEOI = true
			end -= 2
		}
	}
	f.Segments = append(f.Segments, &Segment{Marker: Data, Offset: offset, Length: end - offset})
	if hasEOI {
		f.Segments = append(f.Segments, &Segment{Marker: EOI, Offset: end + 2})
	}

	return nil
}

// DumpTo prints every segment.
func (f *File) DumpTo(w io.Writer) {
	for _, s := range f.Segments {
		s.DumpTo(w)
	}
}
