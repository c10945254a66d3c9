package bounds

import (
	"testing"

	"spriterefine/internal/bitmap"
)

func TestFindOpaqueBoundsTight(t *testing.T) {
	b := bitmap.New(10, 10)
	b.Set(2, 3, 1, 1, 1, 255)
	b.Set(5, 7, 1, 1, 1, 255)
	r, ok := FindOpaqueBounds(b, 16)
	if !ok {
		t.Fatalf("expected bounds found")
	}
	if r.X != 2 || r.Y != 3 || r.W != 4 || r.H != 5 {
		t.Fatalf("unexpected bounds: %+v", r)
	}
}

func TestFindOpaqueBoundsEmpty(t *testing.T) {
	b := bitmap.New(4, 4)
	_, ok := FindOpaqueBounds(b, 16)
	if ok {
		t.Fatalf("expected no bounds for fully-transparent image")
	}
}

func TestCrop(t *testing.T) {
	b := bitmap.New(4, 4)
	b.Set(1, 1, 9, 9, 9, 255)
	c := Crop(b, Rect{X: 1, Y: 1, W: 2, H: 2})
	if c.W != 2 || c.H != 2 {
		t.Fatalf("bad size")
	}
	r, _, _, _ := c.Get(0, 0)
	if r != 9 {
		t.Fatalf("expected cropped pixel preserved")
	}
}
