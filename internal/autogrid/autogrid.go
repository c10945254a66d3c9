// Package autogrid implements automatic grid inference from a
// content-trimmed region: two strategies (coarse-to-fine "fast" and
// exhaustive "legacy") that choose an output grid by minimizing
// reconstruction error plus a cell-count complexity penalty.
package autogrid

import (
	"math"

	"spriterefine/internal/bitmap"
	"spriterefine/internal/bounds"
	"spriterefine/internal/downsample"
	"spriterefine/internal/grid"
)

// Strategy selects the search style.
type Strategy int

const (
	Legacy Strategy = iota
	Fast
)

// Result is the winning implied grid.
type Result struct {
	CellW, CellH float64
	OutW, OutH   int
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func reconstruct(down *bitmap.Bitmap, cellW, cellH float64, outW, outH, w, h int) *bitmap.Bitmap {
	out := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		j := int(float64(y) / cellH)
		if j >= outH {
			j = outH - 1
		}
		for x := 0; x < w; x++ {
			i := int(float64(x) / cellW)
			if i >= outW {
				i = outW - 1
			}
			r, g, b, a := down.Get(i, j)
			out.Set(x, y, r, g, b, a)
		}
	}
	return out
}

func reconstructionError(src, recon, mask *bitmap.Bitmap, alphaThreshold, pixelStride int) float64 {
	if pixelStride < 1 {
		pixelStride = 1
	}
	var sum float64
	var count int
	for y := 0; y < src.H; y += pixelStride {
		for x := 0; x < src.W; x += pixelStride {
			if int(mask.GetAlpha(x, y)) < alphaThreshold {
				continue
			}
			sr, sg, sb, _ := src.Get(x, y)
			rr, rg, rb, _ := recon.Get(x, y)
			sum += float64(absDiff(sr, rr) + absDiff(sg, rg) + absDiff(sb, rb))
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

type candidate struct {
	outH, outW   int
	cellW, cellH float64
	score        float64
}

// Search runs the coarse/legacy grid search over the opaque content
// region of working (as delimited by mask) and returns the winning
// (cellW, cellH, outW, outH). Both working and mask must share
// dimensions. Returns false if the mask has no opaque content.
func Search(working, mask *bitmap.Bitmap, sampleWindow, alphaThreshold int, strategy Strategy) (Result, bool) {
	bbox, ok := bounds.FindOpaqueBounds(mask, alphaThreshold)
	if !ok {
		return Result{}, false
	}

	workingCropped := bounds.Crop(working, bbox)
	maskCropped := bounds.Crop(mask, bbox)
	croppedW, croppedH := bbox.W, bbox.H

	minOutH := max(2, croppedH/32)
	maxOutH := min(128, croppedH/4)
	if maxOutH < minOutH {
		maxOutH = minOutH
	}

	evaluate := func(outH, pixelStride int) (candidate, bool) {
		outW := max(2, int(math.Round(float64(outH)*float64(croppedW)/float64(croppedH))))
		if outW > 256 {
			outW = 256
		}
		if outH > 256 {
			outH = 256
		}
		cellW := float64(croppedW) / float64(outW)
		cellH := float64(croppedH) / float64(outH)
		if cellW <= 1 || cellH <= 1 {
			return candidate{}, false
		}
		g := grid.Grid{CellW: cellW, CellH: cellH, CropX: 0, CropY: 0, CropW: croppedW, CropH: croppedH, OutW: outW, OutH: outH}
		down := downsample.Downsample(workingCropped, g, sampleWindow)
		recon := reconstruct(down, cellW, cellH, outW, outH, croppedW, croppedH)
		errScore := reconstructionError(workingCropped, recon, maskCropped, alphaThreshold, pixelStride)
		score := errScore + 0.0025*float64(outW)*float64(outH)
		return candidate{outH: outH, outW: outW, cellW: cellW, cellH: cellH, score: score}, true
	}

	var best candidate
	haveBest := false
	consider := func(c candidate, ok bool) {
		if !ok {
			return
		}
		if !haveBest || c.score < best.score {
			best, haveBest = c, true
		}
	}

	switch strategy {
	case Legacy:
		for outH := minOutH; outH <= maxOutH; outH++ {
			consider(evaluate(outH, 1))
		}
	default: // Fast
		span := maxOutH - minOutH
		coarseStride := 1
		switch {
		case span >= 30:
			coarseStride = 3
		case span >= 10:
			coarseStride = 2
		}

		maxDim := max(croppedW, croppedH)
		pixelStride := maxDim / 512
		if pixelStride > 4 {
			pixelStride = 4
		}
		if pixelStride < 1 {
			pixelStride = 1
		}

		var coarseBest candidate
		haveCoarse := false
		for outH := minOutH; outH <= maxOutH; outH += coarseStride {
			if c, ok := evaluate(outH, pixelStride); ok {
				if !haveCoarse || c.score < coarseBest.score {
					coarseBest, haveCoarse = c, true
				}
			}
		}
		if haveCoarse {
			lo := coarseBest.outH - 2*coarseStride
			hi := coarseBest.outH + 2*coarseStride
			if lo < minOutH {
				lo = minOutH
			}
			if hi > maxOutH {
				hi = maxOutH
			}
			for outH := lo; outH <= hi; outH++ {
				consider(evaluate(outH, 1))
			}
		}
	}

	if !haveBest {
		return Result{}, false
	}
	return Result{CellW: best.cellW, CellH: best.cellH, OutW: best.outW, OutH: best.outH}, true
}
