package quantize

import (
	"math/rand"
	"testing"

	"spriterefine/internal/bitmap"
)

func TestKMeansUnchangedWhenUnderBudget(t *testing.T) {
	src := bitmap.New(2, 2)
	src.Set(0, 0, 10, 20, 30, 255)
	src.Set(1, 0, 40, 50, 60, 255)
	src.Set(0, 1, 10, 20, 30, 255)
	src.Set(1, 1, 0, 0, 0, 0)

	res := KMeans(src, 16, Options{MaxColors: 8})
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			sr, sg, sb, sa := src.Get(x, y)
			or, og, ob, oa := res.Bitmap.Get(x, y)
			if sr != or || sg != og || sb != ob || sa != oa {
				t.Fatalf("pixel %d,%d changed: src=%v,%v,%v,%v out=%v,%v,%v,%v", x, y, sr, sg, sb, sa, or, og, ob, oa)
			}
		}
	}
	if len(res.Palette) != 2 {
		t.Fatalf("expected 2 unique opaque colors, got %d", len(res.Palette))
	}
}

func TestKMeansReducesColorCount(t *testing.T) {
	src := bitmap.New(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, byte(x*60), byte(y*60), byte((x+y)*30), 255)
		}
	}

	res := KMeans(src, 16, Options{MaxColors: 3, Rand: rand.New(rand.NewSource(7))})
	if len(res.Palette) != 3 {
		t.Fatalf("expected palette of 3, got %d", len(res.Palette))
	}

	seen := map[RGB]bool{}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			r, g, b, _ := res.Bitmap.Get(x, y)
			seen[RGB{r, g, b}] = true
		}
	}
	if len(seen) > 3 {
		t.Fatalf("expected output to use at most 3 colors, saw %d", len(seen))
	}
}

func TestSnapFixedMapsExactColorsToThemselves(t *testing.T) {
	pal := Palette{{R: 255, G: 0, B: 0}, {R: 0, G: 255, B: 0}, {R: 200, G: 200, B: 200}}
	src := bitmap.New(1, 3)
	src.Set(0, 0, 255, 0, 0, 255)
	src.Set(0, 1, 0, 255, 0, 255)
	src.Set(0, 2, 200, 200, 200, 255)

	out := SnapFixed(src, 16, pal)
	for y := 0; y < 3; y++ {
		sr, sg, sb, _ := src.Get(0, y)
		or, og, ob, _ := out.Get(0, y)
		if sr != or || sg != og || sb != ob {
			t.Fatalf("row %d: expected identity mapping, got %v,%v,%v", y, or, og, ob)
		}
	}
}

func TestSnapFixedTransparentPassesThrough(t *testing.T) {
	pal := Palette{{R: 255, G: 0, B: 0}}
	src := bitmap.New(1, 1)
	src.Set(0, 0, 10, 20, 30, 0)
	out := SnapFixed(src, 16, pal)
	r, g, b, a := out.Get(0, 0)
	if r != 10 || g != 20 || b != 30 || a != 0 {
		t.Fatalf("expected transparent pixel unchanged, got %v,%v,%v,%v", r, g, b, a)
	}
}
