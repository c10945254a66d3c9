package floodfill

import "spriterefine/internal/bitmap"

import "testing"

func solidBitmap(w, h int, r, g, b byte) *bitmap.Bitmap {
	bm := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bm.Set(x, y, r, g, b, 255)
		}
	}
	return bm
}

func TestFillWholeUniform(t *testing.T) {
	bm := solidBitmap(4, 4, 200, 200, 200)
	Fill(bm, 0, 0, 0, nil)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if a := bm.GetAlpha(x, y); a != 0 {
				t.Fatalf("expected transparent at %d,%d, got alpha=%d", x, y, a)
			}
		}
	}
}

func TestFillStopsAtDifferentColor(t *testing.T) {
	bm := solidBitmap(4, 4, 255, 255, 255)
	bm.Set(3, 3, 0, 0, 0, 255)
	Fill(bm, 0, 0, 10, nil)
	if bm.GetAlpha(3, 3) != 255 {
		t.Fatalf("expected black corner to remain opaque")
	}
	if bm.GetAlpha(0, 0) != 0 {
		t.Fatalf("expected seed to become transparent")
	}
}

func TestFillIdempotent(t *testing.T) {
	bm := solidBitmap(4, 4, 100, 100, 100)
	bm.Set(3, 3, 250, 250, 250, 255)
	Fill(bm, 0, 0, 20, nil)
	after1 := append([]byte{}, bm.Pix...)
	Fill(bm, 0, 0, 20, nil)
	after2 := bm.Pix
	if len(after1) != len(after2) {
		t.Fatalf("length mismatch")
	}
	for i := range after1 {
		if after1[i] != after2[i] {
			t.Fatalf("flood fill not idempotent at byte %d", i)
		}
	}
}
