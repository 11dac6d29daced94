// Package convert turns PICT files, and the pictures stored in Mohawk
// archives, into PNG, BMP or TIFF images.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/gift"
	"github.com/juju/errors"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/ysh86/pictdec/internal/logging"
	"github.com/ysh86/pictdec/mohawk"
	"github.com/ysh86/pictdec/pict"
)

// Output formats.
const (
	FormatPNG  = "png"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

const (
	zstdExt    = ".zst"
	archiveExt = ".mhk"
)

var pictExts = []string{".pict", ".pct", ".pic"}

// Options configures a Converter.
type Options struct {
	Format    string
	OutDir    string
	Workers   int
	MaxPixels int

	// FitW and FitH bound the output size when both are positive.
	FitW, FitH int
}

// Input is one picture: a file, or a PICT resource of the Mohawk archive
// at Path.
type Input struct {
	Path     string
	Resource *mohawk.Resource
}

// FileInputs wraps picture files.
func FileInputs(paths ...string) []Input {
	inputs := make([]Input, len(paths))
	for i, p := range paths {
		inputs[i] = Input{Path: p}
	}
	return inputs
}

func (in Input) String() string {
	if in.Resource == nil {
		return in.Path
	}
	return fmt.Sprintf("%s#%d", in.Path, in.Resource.ID)
}

// Result is the outcome of converting one input.
type Result struct {
	Input  string
	Output string
	Width  int
	Height int
	Err    error
}

// Converter converts files with fixed options. It is safe for concurrent use.
type Converter struct {
	opts    Options
	decoder *pict.Decoder
}

func New(opts Options) *Converter {
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Converter{
		opts:    opts,
		decoder: pict.NewDecoder(pict.Options{MaxPixels: opts.MaxPixels}),
	}
}

// IsPict reports whether name carries a picture extension, optionally
// followed by .zst.
func IsPict(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == zstdExt {
		name = strings.TrimSuffix(name, filepath.Ext(name))
		ext = strings.ToLower(filepath.Ext(name))
	}
	for _, e := range pictExts {
		if ext == e {
			return true
		}
	}
	return false
}

// IsArchive reports whether name carries the Mohawk archive extension.
func IsArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), archiveExt)
}

// FindInputs expands directories into the pictures and archives they
// contain, recursively, and archives into their PICT resources. Other files
// named explicitly are kept whatever their extension.
func FindInputs(paths []string) ([]Input, error) {
	var inputs []Input
	add := func(path string) error {
		if !IsArchive(path) {
			inputs = append(inputs, Input{Path: path})
			return nil
		}
		res, err := archiveInputs(path)
		if err != nil {
			return errors.Annotatef(err, "archive %s", path)
		}
		inputs = append(inputs, res...)
		return nil
	}
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !st.IsDir() {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !(IsPict(path) || IsArchive(path)) {
				return nil
			}
			return add(path)
		})
		if err != nil {
			return nil, errors.Annotatef(err, "walk %s", p)
		}
	}
	return inputs, nil
}

// OpenArchive parses the resource directory of the Mohawk archive at path.
// The caller closes the returned file.
func OpenArchive(path string) (*mohawk.Archive, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Trace(err)
	}
	a := mohawk.NewArchive(io.NewSectionReader(f, 0, st.Size()))
	if err := a.Parse(); err != nil {
		f.Close()
		return nil, nil, errors.Trace(err)
	}
	return a, f, nil
}

func archiveInputs(path string) ([]Input, error) {
	a, f, err := OpenArchive(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var inputs []Input
	for _, r := range a.Resources(mohawk.PICT) {
		inputs = append(inputs, Input{Path: path, Resource: r})
	}
	logging.Debug("%s holds %d picture(s)", path, len(inputs))
	return inputs, nil
}

// LoadInput reads the picture bytes of in.
func LoadInput(in Input) ([]byte, error) {
	if in.Resource == nil {
		return Load(in.Path)
	}
	f, err := os.Open(in.Path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	data, err := io.ReadAll(in.Resource.Section(f))
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", in)
	}
	if int64(len(data)) != in.Resource.Size {
		return nil, errors.NotValidf("%s of %d bytes, read %d", in, in.Resource.Size, len(data))
	}
	return data, nil
}

// Load reads a file, inflating it when it ends in .zst.
func Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	if !strings.EqualFold(filepath.Ext(path), zstdExt) {
		data, err := io.ReadAll(f)
		return data, errors.Trace(err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Annotate(err, "zstd")
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, errors.Annotatef(err, "inflate %s", path)
	}
	return data, nil
}

// OutputPath names the converted file: the input base name without its
// extensions, followed by the resource ID for an archive, in outDir or next
// to the input.
func OutputPath(in Input, outDir, format string) string {
	base := filepath.Base(in.Path)
	if strings.EqualFold(filepath.Ext(base), zstdExt) {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if in.Resource != nil {
		base = fmt.Sprintf("%s_%d", base, in.Resource.ID)
	}
	if outDir == "" {
		outDir = filepath.Dir(in.Path)
	}
	return filepath.Join(outDir, base+"."+format)
}

// Fit scales img down or up to fit a w x h box, keeping the aspect ratio.
func Fit(img image.Image, w, h int) image.Image {
	g := gift.New(gift.ResizeToFit(w, h, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Encode writes img in format.
func Encode(w io.Writer, img image.Image, format string) error {
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return errors.NotValidf("output format %q", format)
	}
	return errors.Annotatef(err, "encode %s", format)
}

// paletted returns m as an *image.Paletted when it was drawn through a
// single color table.
func paletted(m *pict.Image) image.Image {
	if len(m.Palette) == 0 || len(m.Palette) > 256 {
		return m
	}
	index := make(map[color.RGBA]uint8, len(m.Palette))
	for i := len(m.Palette) - 1; i >= 0; i-- {
		index[m.Palette[i].(color.RGBA)] = uint8(i)
	}
	// the white canvas shows through where nothing was drawn
	pal := m.Palette
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	if _, ok := index[white]; !ok {
		if len(pal) == 256 {
			return m
		}
		pal = append(append(color.Palette{}, pal...), white)
		index[white] = uint8(len(pal) - 1)
	}
	out := image.NewPaletted(m.Bounds(), pal)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i, ok := index[m.RGBAAt(x, y)]
			if !ok {
				return m
			}
			out.Pix[y*out.Stride+x] = i
		}
	}
	return out
}

// Convert decodes one picture held in data and returns the image to encode.
func (c *Converter) Convert(data []byte) (image.Image, error) {
	m, err := c.decoder.Decode(data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if c.opts.FitW > 0 && c.opts.FitH > 0 {
		return Fit(m, c.opts.FitW, c.opts.FitH), nil
	}
	return paletted(m), nil
}

// ConvertInput converts one picture and writes the output file.
func (c *Converter) ConvertInput(in Input) Result {
	res := Result{Input: in.String()}
	data, err := LoadInput(in)
	if err != nil {
		res.Err = err
		return res
	}
	img, err := c.Convert(data)
	if err != nil {
		res.Err = errors.Annotatef(err, "decode %s", in)
		return res
	}
	res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()

	var buf bytes.Buffer
	if err := Encode(&buf, img, c.opts.Format); err != nil {
		res.Err = err
		return res
	}
	res.Output = OutputPath(in, c.opts.OutDir, c.opts.Format)
	if err := os.MkdirAll(filepath.Dir(res.Output), 0755); err != nil {
		res.Err = errors.Trace(err)
		return res
	}
	if err := os.WriteFile(res.Output, buf.Bytes(), 0644); err != nil {
		res.Err = errors.Trace(err)
		return res
	}
	return res
}

// Run converts inputs with the configured number of workers. Results are in
// input order. Files not started when ctx is done fail with its error.
func (c *Converter) Run(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, len(inputs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	worker := func(id int) {
		defer wg.Done()
		for i := range jobs {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Input: inputs[i].String(), Err: err}
				continue
			}
			logging.Debug("worker %d processing: %s", id, inputs[i])
			results[i] = c.ConvertInput(inputs[i])
			if err := results[i].Err; err != nil {
				logging.Error("failed to convert %s: %v", inputs[i], err)
				continue
			}
			logging.Info("wrote %s (%dx%d)", results[i].Output, results[i].Width, results[i].Height)
		}
	}
	for w := 0; w < c.opts.Workers; w++ {
		wg.Add(1)
		go worker(w)
	}
	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
