// Package downsample implements per-cell median sampling: given a grid,
// produce one logical output pixel per source cell.
package downsample

import (
	"math"

	"spriterefine/internal/bitmap"
	"spriterefine/internal/grid"
	"spriterefine/internal/stats"
)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampWindow(w int) int {
	if w < 1 {
		return 1
	}
	if w > 9 {
		return 9
	}
	return w
}

// Downsample produces a g.OutW x g.OutH bitmap by median-sampling a
// sampleWindow x sampleWindow neighborhood around each cell's center.
// Along an axis with an integral cell size the center is the pixel at
// integer offset cell/2 within the cell; otherwise it is the round-half-up
// of the cell's fractional midpoint.
func Downsample(src *bitmap.Bitmap, g grid.Grid, sampleWindow int) *bitmap.Bitmap {
	sampleWindow = clampWindow(sampleWindow)
	half := sampleWindow / 2

	out := bitmap.New(g.OutW, g.OutH)

	for j := 0; j < g.OutH; j++ {
		for i := 0; i < g.OutW; i++ {
			fx := float64(g.CropX) + (float64(i)+0.5)*g.CellW
			fy := float64(g.CropY) + (float64(j)+0.5)*g.CellH
			cx := int(math.Floor(fx + 0.5))
			cy := int(math.Floor(fy + 0.5))
			if g.CellW == math.Trunc(g.CellW) {
				cx = g.CropX + i*int(g.CellW) + int(g.CellW)/2
			}
			if g.CellH == math.Trunc(g.CellH) {
				cy = g.CropY + j*int(g.CellH) + int(g.CellH)/2
			}

			x0 := clampInt(cx-half, 0, src.W-1)
			x1 := clampInt(cx+half, 0, src.W-1)
			y0 := clampInt(cy-half, 0, src.H-1)
			y1 := clampInt(cy+half, 0, src.H-1)

			var rAll, gAll, bAll, aAll []byte
			var rOp, gOp, bOp, aOp []byte
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					r, gg, b, a := src.Get(x, y)
					rAll = append(rAll, r)
					gAll = append(gAll, gg)
					bAll = append(bAll, b)
					aAll = append(aAll, a)
					if a >= 16 {
						rOp = append(rOp, r)
						gOp = append(gOp, gg)
						bOp = append(bOp, b)
						aOp = append(aOp, a)
					}
				}
			}

			rSrc, gSrc, bSrc, aSrc := rAll, gAll, bAll, aAll
			if len(rOp) > 0 {
				rSrc, gSrc, bSrc, aSrc = rOp, gOp, bOp, aOp
			}

			out.Set(i, j, stats.MedianByte(rSrc), stats.MedianByte(gSrc), stats.MedianByte(bSrc), stats.MedianByte(aSrc))
		}
	}

	return out
}
