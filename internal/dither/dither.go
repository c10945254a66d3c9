// Package dither implements Floyd-Steinberg error diffusion against a
// quantizer palette.
package dither

import (
	"spriterefine/internal/bitmap"
	"spriterefine/internal/quantize"
)

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func diffuse(work *bitmap.Bitmap, x, y int, er, eg, eb, weight float64) {
	if x < 0 || x >= work.W || y < 0 || y >= work.H {
		return
	}
	r, g, b, a := work.Get(x, y)
	if a == 0 {
		return
	}
	nr := clampByte(float64(r) + er*weight)
	ng := clampByte(float64(g) + eg*weight)
	nb := clampByte(float64(b) + eb*weight)
	work.Set(x, y, nr, ng, nb, a)
}

// FloydSteinberg snaps every opaque pixel of src to the nearest entry of
// pal and diffuses the per-channel quantization error, scaled by
// strength (0..1), to the right, down-left, down and down-right
// neighbors with weights 7/16, 3/16, 5/16, 1/16. Error accumulates
// directly into the working copy; transparent neighbors receive none.
// darkBias selects the fixed-palette dark-region snapping bias (§4.11);
// pass false when pal is a K-means-derived palette (§4.10).
func FloydSteinberg(src *bitmap.Bitmap, alphaThreshold int, pal quantize.Palette, darkBias bool, strength float64) *bitmap.Bitmap {
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}

	entries := quantize.BuildEntries(pal)
	work := src.Clone()
	out := bitmap.New(src.W, src.H)

	if len(entries) == 0 {
		return work
	}

	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			r, g, b, a := work.Get(x, y)
			if int(a) < alphaThreshold {
				out.Set(x, y, r, g, b, a)
				continue
			}

			idx := quantize.Nearest(entries, r, g, b, darkBias)
			e := entries[idx]
			out.Set(x, y, e.RGB.R, e.RGB.G, e.RGB.B, a)

			er := (float64(r) - float64(e.RGB.R)) * strength
			eg := (float64(g) - float64(e.RGB.G)) * strength
			eb := (float64(b) - float64(e.RGB.B)) * strength

			diffuse(work, x+1, y, er, eg, eb, 7.0/16)
			diffuse(work, x-1, y+1, er, eg, eb, 3.0/16)
			diffuse(work, x, y+1, er, eg, eb, 5.0/16)
			diffuse(work, x+1, y+1, er, eg, eb, 1.0/16)
		}
	}

	return out
}
