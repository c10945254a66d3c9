package quantize

import (
	"testing"

	"spriterefine/internal/bitmap"
)

func TestKMeansMuesliReducesColorCount(t *testing.T) {
	src := bitmap.New(6, 6)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			src.Set(x, y, byte(x*40), byte(y*40), byte((x+y)*20), 255)
		}
	}

	res := KMeansMuesli(src, 16, Options{MaxColors: 4})
	if len(res.Palette) == 0 || len(res.Palette) > 4 {
		t.Fatalf("expected a palette of at most 4 colors, got %d", len(res.Palette))
	}

	seen := map[RGB]bool{}
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			r, g, b, _ := res.Bitmap.Get(x, y)
			seen[RGB{r, g, b}] = true
		}
	}
	if len(seen) > 4 {
		t.Fatalf("expected output to use at most 4 colors, saw %d", len(seen))
	}
}

func TestKMeansMuesliUnchangedWhenUnderBudget(t *testing.T) {
	src := bitmap.New(2, 1)
	src.Set(0, 0, 10, 20, 30, 255)
	src.Set(1, 0, 40, 50, 60, 255)

	res := KMeansMuesli(src, 16, Options{MaxColors: 8})
	if len(res.Palette) != 2 {
		t.Fatalf("expected 2 unique opaque colors, got %d", len(res.Palette))
	}
}

func TestClusterDispatchesByEngine(t *testing.T) {
	src := bitmap.New(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, byte(x*60), byte(y*60), byte((x+y)*30), 255)
		}
	}

	stdlibRes := Cluster(src, 16, Options{MaxColors: 3})
	if len(stdlibRes.Palette) != 3 {
		t.Fatalf("expected stdlib engine to produce 3 colors, got %d", len(stdlibRes.Palette))
	}

	muesliRes := Cluster(src, 16, Options{MaxColors: 3, Engine: "muesli"})
	if len(muesliRes.Palette) == 0 || len(muesliRes.Palette) > 3 {
		t.Fatalf("expected muesli engine to produce at most 3 colors, got %d", len(muesliRes.Palette))
	}
}
