package pict

import (
	"bytes"
	"image"
)

const (
	prefixSize = 0x200
	headerSize = 10
)

var (
	versionMark1 = []byte{0x11, 0x01}
	versionMark2 = []byte{0x00, 0x11, 0x02, 0xff}
)

// File is a picture parsed into records without rasterizing it. Records
// alias data.
type File struct {
	Frame   image.Rectangle
	Size    uint16
	Prefix  bool
	Version int

	Records []Record

	data []byte
}

func NewFile(data []byte) (*File, error) {
	f := &File{data: data}
	return f, nil
}

// Parse reads the header and every record up to the end of the picture.
// On failure the records parsed so far are kept.
func (f *File) Parse() error {
	p, err := f.parseHeader()
	if err != nil {
		return err
	}
	for {
		r, err := p.next()
		if err != nil {
			return err
		}
		f.Records = append(f.Records, r)
		switch r := r.(type) {
		case *OpVersion:
			f.Version = r.Version
		case *OpEndPic:
			return nil
		}
	}
}

func (f *File) parseHeader() (*parser, error) {
	base := 0
	if hasPrefix(f.data) {
		base = prefixSize
	}
	if len(f.data)-base < headerSize {
		return nil, newError(InvalidHeader, base, "%d bytes is shorter than the picture header", len(f.data)-base)
	}
	c := NewCursor(f.data)
	if err := c.Skip(base); err != nil {
		return nil, err
	}
	f.Prefix = base != 0
	var err error
	if f.Size, err = c.U16(); err != nil {
		return nil, err
	}
	if f.Frame, err = c.Rect(); err != nil {
		return nil, err
	}
	if f.Frame.Dx() < 0 || f.Frame.Dy() < 0 {
		return nil, newError(InvalidHeader, base+2, "inverted frame %v", f.Frame)
	}
	// the version opcode is 11 01 or 00 11 02 ff
	f.Version = 1
	if v, err := c.PeekU16(); err == nil && v == Version {
		f.Version = 2
	}
	return newParser(c, base), nil
}

// hasPrefix reports whether data starts with the 512-byte application
// header. A version marker right after the picture header wins.
func hasPrefix(data []byte) bool {
	if versionAt(data, headerSize) {
		return false
	}
	if versionAt(data, prefixSize+headerSize) {
		return true
	}
	if len(data) < prefixSize+headerSize {
		return false
	}
	for _, b := range data[:prefixSize] {
		if b != 0 {
			return false
		}
	}
	return true
}

func versionAt(data []byte, off int) bool {
	if len(data) < off+2 {
		return false
	}
	return bytes.HasPrefix(data[off:], versionMark1) || bytes.HasPrefix(data[off:], versionMark2)
}
