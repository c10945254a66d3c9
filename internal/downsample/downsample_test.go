package downsample

import (
	"testing"

	"spriterefine/internal/bitmap"
	"spriterefine/internal/grid"
)

func TestIdentityWhenCellAndWindowAreOne(t *testing.T) {
	src := bitmap.New(3, 3)
	src.Set(1, 1, 42, 43, 44, 255)
	g := grid.Grid{CellW: 1, CellH: 1, OutW: 3, OutH: 3, CropX: 0, CropY: 0, CropW: 3, CropH: 3}
	out := Downsample(src, g, 1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			sr, sg, sb, sa := src.Get(x, y)
			or, og, ob, oa := out.Get(x, y)
			if sr != or || sg != og || sb != ob || sa != oa {
				t.Fatalf("pixel mismatch at %d,%d: src=%v,%v,%v,%v out=%v,%v,%v,%v", x, y, sr, sg, sb, sa, or, og, ob, oa)
			}
		}
	}
}

func TestOddCellWidthSamplesTrueCenter(t *testing.T) {
	// cellW=5 (odd), sampleWindow=1 pins the exact sampled pixel: the
	// midpoint 2.5 of [0,5) lies inside pixel x=2, which has two pixels
	// on either side; x=3 would be off-center.
	src := bitmap.New(5, 1)
	for x := 0; x < 5; x++ {
		src.Set(x, 0, byte(x*40), 0, 0, 255)
	}
	g := grid.Grid{CellW: 5, CellH: 1, OutW: 1, OutH: 1, CropX: 0, CropY: 0, CropW: 5, CropH: 1}
	out := Downsample(src, g, 1)
	r, _, _, _ := out.Get(0, 0)
	if wantR, _, _, _ := src.Get(2, 0); r != wantR {
		t.Fatalf("expected sample from center pixel x=2 (r=%d), got r=%d", wantR, r)
	}
}

func TestMedianSamplingIgnoresMinorityColor(t *testing.T) {
	src := bitmap.New(3, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			src.Set(x, y, 200, 200, 200, 255)
		}
	}
	src.Set(1, 1, 0, 0, 0, 255)
	g := grid.Grid{CellW: 3, CellH: 3, OutW: 1, OutH: 1, CropX: 0, CropY: 0, CropW: 3, CropH: 3}
	out := Downsample(src, g, 3)
	r, _, _, _ := out.Get(0, 0)
	if r != 200 {
		t.Fatalf("expected majority color 200, got %d", r)
	}
}
