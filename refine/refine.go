// Package refine is the public façade over the sprite refinement core:
// grid detection, median downsampling, background removal, bbox
// trimming, Oklab quantization, Floyd-Steinberg dithering and an
// outline post-stage, composed by a single Process call.
package refine

import (
	"spriterefine/internal/grid"
	"spriterefine/internal/pipeline"
)

// Grid describes the pixel grid the pipeline detected or derived, and
// the region of the input it was applied to.
type Grid struct {
	CellW, CellH     float64
	OffsetX, OffsetY float64
	CropX, CropY     int
	CropW, CropH     int
	OutW, OutH       int
	Score            float64
}

func fromInternalGrid(g grid.Grid) Grid {
	return Grid{
		CellW: g.CellW, CellH: g.CellH,
		OffsetX: g.OffsetX, OffsetY: g.OffsetY,
		CropX: g.CropX, CropY: g.CropY,
		CropW: g.CropW, CropH: g.CropH,
		OutW: g.OutW, OutH: g.OutH,
		Score: g.Score,
	}
}

// Result is the outcome of a successful Process call.
type Result struct {
	Bitmap                 Bitmap
	Grid                   Grid
	ExtractedPalette       []RGB
	CompareBeforeOriginal  Bitmap
	CompareBeforeSanitized Bitmap
}

// Process runs the full refinement pipeline over bm according to opt
// and returns the refined bitmap, the grid it was resampled against,
// the extracted or applied palette, and two comparison views (the
// original input and the post-background-removal "sanitized" input)
// resized to the result's dimensions.
func Process(bm Bitmap, opt Options) (Result, error) {
	res, err := pipeline.Process(toInternal(bm), opt.resolve())
	if err != nil {
		return Result{}, wrapError(err)
	}

	pal := make([]RGB, len(res.Palette))
	for i, c := range res.Palette {
		pal[i] = RGB{R: c.R, G: c.G, B: c.B}
	}

	return Result{
		Bitmap:                 fromInternal(res.Bitmap),
		Grid:                   fromInternalGrid(res.Grid),
		ExtractedPalette:       pal,
		CompareBeforeOriginal:  fromInternal(res.CompareOriginal),
		CompareBeforeSanitized: fromInternal(res.CompareSanitized),
	}, nil
}
