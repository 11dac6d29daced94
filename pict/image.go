package pict

import (
	"image"
	"image/color"
)

// Image is a decoded picture. Pix holds RGBA pixels, 4 bytes each, row
// major with Stride bytes per row. The image owns Pix; nothing in it refers
// to the decoded input.
type Image struct {
	Width, Height int

	// Depth is the deepest source pixel depth that was drawn, 0 if no pixel
	// opcode was seen.
	Depth  int
	Stride int
	Pix    []byte

	// Palette is set when every indexed record drew through the same colors
	// and no direct pixels were drawn.
	Palette color.Palette

	// Drawn bounds every pixel written, in image coordinates.
	Drawn image.Rectangle

	// Frame is the picture frame in QuickDraw coordinates.
	Frame image.Rectangle

	Comments []Comment
}

// Comment is a picture comment. Data is nil for short comments.
type Comment struct {
	Kind int16
	Data []byte
}

func newImage(frame image.Rectangle) *Image {
	w, h := frame.Dx(), frame.Dy()
	m := &Image{Width: w, Height: h, Stride: 4 * w, Frame: frame}
	m.Pix = make([]byte, 4*w*h)
	for i := range m.Pix {
		m.Pix[i] = 0xff
	}
	return m
}

func (m *Image) ColorModel() color.Model { return color.RGBAModel }

func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

func (m *Image) At(x, y int) color.Color {
	return m.RGBAAt(x, y)
}

func (m *Image) RGBAAt(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA{}
	}
	i := y*m.Stride + 4*x
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: m.Pix[i+3]}
}

// RGBA returns a copy of the pixels as an *image.RGBA.
func (m *Image) RGBA() *image.RGBA {
	out := image.NewRGBA(m.Bounds())
	for y := 0; y < m.Height; y++ {
		copy(out.Pix[y*out.Stride:], m.Pix[y*m.Stride:y*m.Stride+4*m.Width])
	}
	return out
}
