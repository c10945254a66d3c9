// Package imageio bridges the core's raw RGBA bitmap and Go's
// image.Image, and provides an optional debug-tap sink that dumps
// intermediate pipeline stages to disk as (optionally gzipped) PNGs.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/vp8l"
	_ "golang.org/x/image/webp"

	"spriterefine/internal/bitmap"
)

// Decode reads any registered image format and returns it as a raw RGBA
// bitmap, along with the sniffed format name.
func Decode(r io.Reader) (*bitmap.Bitmap, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("could not decode image: %w", err)
	}
	return FromImage(img), format, nil
}

// FromImage converts a decoded image.Image into a non-premultiplied
// bitmap.Bitmap.
func FromImage(img image.Image) *bitmap.Bitmap {
	b := img.Bounds()
	bm := bitmap.New(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			bm.Set(x-b.Min.X, y-b.Min.Y, c.R, c.G, c.B, c.A)
		}
	}
	return bm
}

// ToImage converts a bitmap.Bitmap into a non-premultiplied image.Image.
func ToImage(bm *bitmap.Bitmap) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, bm.W, bm.H))
	for y := 0; y < bm.H; y++ {
		for x := 0; x < bm.W; x++ {
			r, g, b, a := bm.Get(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
		}
	}
	return img
}

// ResizeNearest scales bm to w x h using nearest-neighbor sampling, for
// building comparison views sized to a pipeline result.
func ResizeNearest(bm *bitmap.Bitmap, w, h int) *bitmap.Bitmap {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	src := ToImage(bm)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return FromImage(dst)
}

// EncodePNG writes bm to w as a PNG.
func EncodePNG(w io.Writer, bm *bitmap.Bitmap) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression, BufferPool: pngPool}
	if err := enc.Encode(w, ToImage(bm)); err != nil {
		return fmt.Errorf("could not encode PNG: %w", err)
	}
	return nil
}

type pngEncoderBufferPool struct {
	pool sync.Pool
}

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	if v := p.pool.Get(); v != nil {
		return v.(*png.EncoderBuffer)
	}
	return &png.EncoderBuffer{}
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	p.pool.Put(buf)
}

var pngPool = &pngEncoderBufferPool{}

// EncodeAs writes bm to w in the named format: "png", "gif", "jpeg", "bmp"
// or "tiff". The GIF encoder reduces the image to its own 256-color
// palette and JPEG is lossy, so callers that already ran the sprite
// through quantize/dither should prefer "png", which stores bm's
// non-premultiplied RGBA pixels exactly.
func EncodeAs(w io.Writer, bm *bitmap.Bitmap, format string) error {
	img := ToImage(bm)
	switch format {
	case "", "png":
		return EncodePNG(w, bm)
	case "gif":
		if err := gif.Encode(w, img, nil); err != nil {
			return fmt.Errorf("could not encode GIF: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 100}); err != nil {
			return fmt.Errorf("could not encode JPEG: %w", err)
		}
	case "bmp":
		if err := bmp.Encode(w, img); err != nil {
			return fmt.Errorf("could not encode BMP: %w", err)
		}
	case "tiff":
		if err := tiff.Encode(w, img, nil); err != nil {
			return fmt.Errorf("could not encode TIFF: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	return nil
}

// DebugTap is invoked synchronously by the pipeline orchestrator with a
// borrowed bitmap view at a named stage. Implementations must not
// retain bm past the call.
type DebugTap func(name string, bm *bitmap.Bitmap, meta map[string]string)

// FileSink returns a DebugTap that writes each tapped stage to dir as
// "<name>.png", gzip-compressed as "<name>.png.gz" when gzipCompress is
// set. Write failures are logged to stderr and otherwise swallowed,
// matching the orchestrator's contract that debug taps never fail a run.
func FileSink(dir string, gzipCompress bool) DebugTap {
	return func(name string, bm *bitmap.Bitmap, meta map[string]string) {
		ext := ".png"
		if gzipCompress {
			ext = ".png.gz"
		}
		path := filepath.Join(dir, name+ext)

		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "debug tap %q: could not create %q: %v\n", name, path, err)
			return
		}
		defer f.Close()

		var w io.Writer = f
		var gz *gzip.Writer
		if gzipCompress {
			gz = gzip.NewWriter(f)
			w = gz
		}

		if err := EncodePNG(w, bm); err != nil {
			fmt.Fprintf(os.Stderr, "debug tap %q: could not encode %q: %v\n", name, path, err)
			return
		}
		if gz != nil {
			if err := gz.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "debug tap %q: could not flush %q: %v\n", name, path, err)
			}
		}
	}
}
