package autogrid

import (
	"testing"

	"spriterefine/internal/bitmap"
)

func checkerboard(w, h, cell int) *bitmap.Bitmap {
	bm := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			black := (x/cell)%2 == 0 && (y/cell)%2 == 0
			if black {
				bm.Set(x, y, 0, 0, 0, 255)
			} else {
				bm.Set(x, y, 255, 255, 255, 255)
			}
		}
	}
	return bm
}

func opaqueMask(w, h int) *bitmap.Bitmap {
	bm := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bm.Set(x, y, 255, 255, 255, 255)
		}
	}
	return bm
}

func TestSearchFindsReasonableGridFast(t *testing.T) {
	working := checkerboard(128, 128, 8)
	mask := opaqueMask(128, 128)

	res, ok := Search(working, mask, 1, 128, Fast)
	if !ok {
		t.Fatalf("expected a result")
	}
	if res.OutW < 2 || res.OutH < 2 {
		t.Fatalf("degenerate result: %+v", res)
	}
	if res.CellW <= 1 || res.CellH <= 1 {
		t.Fatalf("cell size must exceed 1: %+v", res)
	}
}

func TestSearchNoOpaqueContent(t *testing.T) {
	working := bitmap.New(16, 16)
	mask := bitmap.New(16, 16)
	_, ok := Search(working, mask, 1, 128, Fast)
	if ok {
		t.Fatalf("expected failure on fully transparent mask")
	}
}

func TestLegacyAndFastBothSucceedOnSimpleImage(t *testing.T) {
	working := checkerboard(64, 64, 8)
	mask := opaqueMask(64, 64)

	legacy, ok := Search(working, mask, 1, 128, Legacy)
	if !ok {
		t.Fatalf("legacy: expected a result")
	}
	fast, ok := Search(working, mask, 1, 128, Fast)
	if !ok {
		t.Fatalf("fast: expected a result")
	}
	if legacy.OutH != fast.OutH {
		t.Logf("legacy and fast disagreed: legacy=%+v fast=%+v (not necessarily a bug)", legacy, fast)
	}
}
