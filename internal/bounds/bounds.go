// Package bounds computes the tight opaque bounding box of a bitmap.
package bounds

import "spriterefine/internal/bitmap"

// Rect is an inclusive-exclusive rectangle: [X,X+W) x [Y,Y+H).
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// FindOpaqueBounds scans row-major and returns the tightest inclusive
// rectangle containing every pixel with alpha >= threshold, and true. If
// no pixel qualifies, it returns the zero Rect and false.
func FindOpaqueBounds(b *bitmap.Bitmap, threshold int) (Rect, bool) {
	minX, minY := b.W, b.H
	maxX, maxY := -1, -1

	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			if int(b.GetAlpha(x, y)) >= threshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if maxX < minX || maxY < minY {
		return Rect{}, false
	}
	return Rect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1}, true
}

// Crop returns a fresh bitmap containing r, which must lie inside b's
// bounds.
func Crop(b *bitmap.Bitmap, r Rect) *bitmap.Bitmap {
	return b.Crop(r.X, r.Y, r.W, r.H)
}
