package outline

import (
	"testing"

	"spriterefine/internal/bitmap"
)

func single() *bitmap.Bitmap {
	bm := bitmap.New(3, 3)
	bm.Set(1, 1, 10, 20, 30, 255)
	return bm
}

func TestApplyNoneClones(t *testing.T) {
	src := single()
	out := Apply(src, None, 255, 255, 255)
	if out.W != src.W || out.H != src.H {
		t.Fatalf("expected no resize for None style, got %dx%d", out.W, out.H)
	}
}

func TestApplySharpOutlinesOrthogonalNeighbors(t *testing.T) {
	src := single()
	out := Apply(src, Sharp, 255, 0, 0)
	if out.W != 5 || out.H != 5 {
		t.Fatalf("expected 5x5 expanded bitmap, got %dx%d", out.W, out.H)
	}
	// original opaque pixel now sits at (2,2).
	r, g, b, a := out.Get(2, 2)
	if r != 10 || g != 20 || b != 30 || a != 255 {
		t.Fatalf("original pixel moved unexpectedly: %v,%v,%v,%v", r, g, b, a)
	}
	for _, p := range [][2]int{{2, 1}, {2, 3}, {1, 2}, {3, 2}} {
		r, g, b, a := out.Get(p[0], p[1])
		if a != 255 || r != 255 || g != 0 || b != 0 {
			t.Fatalf("expected orthogonal neighbor %v outlined, got %v,%v,%v,%v", p, r, g, b, a)
		}
	}
	// diagonal neighbor should remain transparent for Sharp.
	if _, _, _, a := out.Get(1, 1); a != 0 {
		t.Fatalf("expected diagonal neighbor to stay transparent for sharp outline")
	}
	// pixels beyond the true orthogonal neighbors must stay transparent;
	// a scan-order bug can bleed the outline color into (3,1) by reading
	// the just-colored (2,1) as an opaque neighbor.
	for _, p := range [][2]int{{3, 1}, {4, 1}, {0, 1}, {1, 0}, {3, 3}} {
		if _, _, _, a := out.Get(p[0], p[1]); a != 0 {
			t.Fatalf("expected non-adjacent border pixel %v to stay transparent, got alpha %d", p, a)
		}
	}
}

func TestApplyRoundedOutlinesDiagonals(t *testing.T) {
	src := single()
	out := Apply(src, Rounded, 0, 255, 0)
	if _, _, _, a := out.Get(1, 1); a != 255 {
		t.Fatalf("expected diagonal neighbor outlined for rounded style")
	}
}
