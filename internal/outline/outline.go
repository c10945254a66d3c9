// Package outline implements the optional post-stage that expands a
// bitmap by one pixel on each side and colors every transparent pixel
// adjacent to opaque content.
package outline

import "spriterefine/internal/bitmap"

// Style selects which neighborhood counts as "adjacent to content".
type Style int

const (
	None Style = iota
	Sharp
	Rounded
)

var sharpOffsets = [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}
var roundedOffsets = [8][2]int{
	{0, -1}, {0, 1}, {-1, 0}, {1, 0},
	{-1, -1}, {1, -1}, {-1, 1}, {1, 1},
}

// Apply expands src by one pixel on each side; any transparent output
// pixel with an opaque neighbor (4-connected for Sharp, 8-connected for
// Rounded) is colored r,g,b at full alpha. Style None is a no-op that
// returns an unexpanded clone of src.
func Apply(src *bitmap.Bitmap, style Style, r, g, b byte) *bitmap.Bitmap {
	if style == None {
		return src.Clone()
	}

	out := bitmap.New(src.W+2, src.H+2)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			sr, sg, sb, sa := src.Get(x, y)
			out.Set(x+1, y+1, sr, sg, sb, sa)
		}
	}

	offsets := sharpOffsets[:]
	if style == Rounded {
		offsets = roundedOffsets[:]
	}

	// Neighbor opacity is tested against a snapshot taken before any
	// pixel in this pass is colored, so a pixel colored earlier in the
	// scan is never mistaken for original opaque content by a later
	// pixel checking it as a neighbor.
	preExpand := out.Clone()
	for y := 0; y < out.H; y++ {
		for x := 0; x < out.W; x++ {
			_, _, _, a := preExpand.Get(x, y)
			if a != 0 {
				continue
			}
			for _, o := range offsets {
				_, _, _, na := preExpand.Get(x+o[0], y+o[1])
				if na != 0 {
					out.Set(x, y, r, g, b, 255)
					break
				}
			}
		}
	}

	return out
}
