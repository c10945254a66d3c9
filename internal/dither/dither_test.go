package dither

import (
	"testing"

	"spriterefine/internal/bitmap"
	"spriterefine/internal/quantize"
)

func TestFloydSteinbergMonochromeGradient(t *testing.T) {
	const w, h = 16, 1
	src := bitmap.New(w, h)
	for x := 0; x < w; x++ {
		v := byte(x * 255 / (w - 1))
		src.Set(x, 0, v, v, v, 255)
	}

	pal := quantize.Palette{{R: 0, G: 0, B: 0}, {R: 255, G: 255, B: 255}}
	out := FloydSteinberg(src, 16, pal, false, 1.0)

	blacks, whites := 0, 0
	for x := 0; x < w; x++ {
		r, g, b, _ := out.Get(x, 0)
		switch {
		case r == 0 && g == 0 && b == 0:
			blacks++
		case r == 255 && g == 255 && b == 255:
			whites++
		default:
			t.Fatalf("unexpected color at %d: %v,%v,%v", x, r, g, b)
		}
	}
	if blacks+whites != w {
		t.Fatalf("expected only black/white pixels, got %d classified of %d", blacks+whites, w)
	}
	if blacks == 0 || whites == 0 {
		t.Fatalf("expected a mix of black and white from dithering a gradient, got blacks=%d whites=%d", blacks, whites)
	}
}

func TestFloydSteinbergZeroStrengthIsPlainSnap(t *testing.T) {
	src := bitmap.New(2, 1)
	src.Set(0, 0, 10, 10, 10, 255)
	src.Set(1, 0, 240, 240, 240, 255)
	pal := quantize.Palette{{R: 0, G: 0, B: 0}, {R: 255, G: 255, B: 255}}

	out := FloydSteinberg(src, 16, pal, false, 0)
	r0, _, _, _ := out.Get(0, 0)
	r1, _, _, _ := out.Get(1, 0)
	if r0 != 0 || r1 != 255 {
		t.Fatalf("expected plain nearest-snap with zero strength, got %d, %d", r0, r1)
	}
}

func TestFloydSteinbergSkipsTransparentNeighbors(t *testing.T) {
	src := bitmap.New(2, 1)
	src.Set(0, 0, 128, 128, 128, 255)
	src.Set(1, 0, 0, 0, 0, 0)
	pal := quantize.Palette{{R: 0, G: 0, B: 0}, {R: 255, G: 255, B: 255}}

	out := FloydSteinberg(src, 16, pal, false, 1.0)
	_, _, _, a := out.Get(1, 0)
	if a != 0 {
		t.Fatalf("expected transparent pixel to remain transparent, got alpha %d", a)
	}
}
