package pict

import (
	"image"
	"image/color"
	"io"
	"strings"
)

func init() {
	header := strings.Repeat("?", headerSize)
	prefix := strings.Repeat("?", prefixSize)
	for _, magic := range []string{
		header + string(versionMark2),
		header + string(versionMark1),
		prefix + header + string(versionMark2),
		prefix + header + string(versionMark1),
	} {
		image.RegisterFormat("pict", magic, Decode, DecodeConfig)
	}
}

// Decode reads a picture from r and returns it as an *Image.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m, err := DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeConfig returns the frame size of a picture without decoding its
// opcodes.
func DecodeConfig(r io.Reader) (image.Config, error) {
	buf := make([]byte, prefixSize+headerSize+len(versionMark2))
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return image.Config{}, err
	}
	f := &File{data: buf[:n]}
	if _, err := f.parseHeader(); err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: color.RGBAModel,
		Width:      f.Frame.Dx(),
		Height:     f.Frame.Dy(),
	}, nil
}
