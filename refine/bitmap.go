package refine

import "spriterefine/internal/bitmap"

// Bitmap is a row-major RGBA byte buffer: four bytes per pixel, no
// padding, top-left origin. It is the public shape callers construct
// and receive results in; internally the pipeline operates on
// internal/bitmap.Bitmap, which has the identical layout.
type Bitmap struct {
	W, H int
	Pix  []byte
}

func toInternal(b Bitmap) *bitmap.Bitmap {
	return &bitmap.Bitmap{W: b.W, H: b.H, Pix: b.Pix}
}

func fromInternal(b *bitmap.Bitmap) Bitmap {
	if b == nil {
		return Bitmap{}
	}
	return Bitmap{W: b.W, H: b.H, Pix: b.Pix}
}

// RGB is an opaque 24-bit color, used for palettes and solid colors in
// Options and Result.
type RGB struct {
	R, G, B byte
}
