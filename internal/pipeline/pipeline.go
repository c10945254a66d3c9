// Package pipeline implements the refinement orchestrator: it sequences
// background removal, grid detection, downsampling, trimming,
// quantization, dithering and outlining according to an Options record,
// emitting debug snapshots at fixed stage names.
package pipeline

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/dominantcolor"

	"spriterefine/internal/autogrid"
	"spriterefine/internal/bitmap"
	"spriterefine/internal/bounds"
	"spriterefine/internal/components"
	"spriterefine/internal/dither"
	"spriterefine/internal/downsample"
	"spriterefine/internal/floodfill"
	"spriterefine/internal/grid"
	"spriterefine/internal/imageio"
	"spriterefine/internal/outline"
	"spriterefine/internal/palette"
	"spriterefine/internal/quantize"
)

// ErrorKind enumerates the semantic failure categories the orchestrator
// and its components can raise.
type ErrorKind int

const (
	InvalidInput ErrorKind = iota
	GridDetectionFailed
	ContentNotFound
	UnknownPalette
	InternalInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case GridDetectionFailed:
		return "GridDetectionFailed"
	case ContentNotFound:
		return "ContentNotFound"
	case UnknownPalette:
		return "UnknownPalette"
	case InternalInvariant:
		return "InternalInvariant"
	default:
		return "Unknown"
	}
}

// Error is the machine-readable error the pipeline raises at its
// well-defined failure boundaries.
type Error struct {
	Kind    ErrorKind
	Axis    string
	Value   any
	Message string
}

func (e *Error) Error() string {
	if e.Axis != "" {
		return fmt.Sprintf("%s: %s (axis=%s, value=%v)", e.Kind, e.Message, e.Axis, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// DebugTap is invoked synchronously with a borrowed bitmap at a fixed
// stage name. A panicking tap is recovered; taps never fail a run.
type DebugTap func(stage string, bm *bitmap.Bitmap, meta map[string]string)

// Options is the fully-resolved (defaulted and clamped) configuration
// for one Process call.
type Options struct {
	DetectionQuantStep      int
	SampleWindow            int
	BackgroundTolerance     int
	TrimAlphaThreshold      int
	FloatingMaxPixels       int
	ForcePixelsW            int // 0 means unset
	ForcePixelsH            int
	ColorCount              int
	DitherStrength          int // 0..100
	PreRemoveBackground     bool
	PostRemoveBackground    bool
	RemoveInnerBackground   bool
	TrimToContent           bool
	AutoGridFromTrimmed     bool
	FastAutoGridFromTrimmed bool
	EnableGridDetection     bool
	ReduceColorMode         string
	// ColorEngine selects the K-means backend: "" or "stdlib" for the
	// hand-rolled loop, "muesli" for quantize.KMeansMuesli.
	ColorEngine             string
	DitherMode              string
	BgExtractionMethod      string
	BgRGB                   [3]byte
	HasBgRGB                bool
	FixedPalette            quantize.Palette
	OutlineStyle            outline.Style
	OutlineColor            [3]byte
	RandomSeed              *int64
	DebugTap                DebugTap
}

// Result is the outcome of a successful Process call.
type Result struct {
	Bitmap           *bitmap.Bitmap
	Grid             grid.Grid
	Palette          quantize.Palette
	CompareOriginal  *bitmap.Bitmap
	CompareSanitized *bitmap.Bitmap
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func backgroundSeeds(bm *bitmap.Bitmap, method string) [][2]int {
	switch method {
	case "bottom-left":
		return [][2]int{{0, bm.H - 1}}
	case "top-right":
		return [][2]int{{bm.W - 1, 0}}
	case "bottom-right":
		return [][2]int{{bm.W - 1, bm.H - 1}}
	default: // "top-left", "", "rgb", "dominant" (rgb/dominant have no corner seed)
		return [][2]int{{0, 0}}
	}
}

func matchColor(bm *bitmap.Bitmap, r, g, b byte, tolerance int) {
	for y := 0; y < bm.H; y++ {
		for x := 0; x < bm.W; x++ {
			pr, pg, pb, pa := bm.Get(x, y)
			if pa == 0 {
				continue
			}
			if absDiff(pr, r) <= tolerance && absDiff(pg, g) <= tolerance && absDiff(pb, b) <= tolerance {
				bm.Set(x, y, pr, pg, pb, 0)
			}
		}
	}
}

// dominantBackgroundColor picks the highest-weighted color candidate
// dominantcolor.FindWeight finds over working's opaque pixels, used by
// the "dominant" background-extraction method as an alternative to
// corner-seeded flood fill for sprites whose background isn't a single
// solid corner (e.g. a vignette or gradient backdrop).
func dominantBackgroundColor(working *bitmap.Bitmap) (r, g, b byte, ok bool) {
	candidates := dominantcolor.FindWeight(imageio.ToImage(working), 8)
	if len(candidates) == 0 {
		return 0, 0, 0, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Weight > best.Weight {
			best = c
		}
	}
	return best.RGBA.R, best.RGBA.G, best.RGBA.B, true
}

// removeBackground performs one round of background masking: a
// flood-fill from the configured seed corner(s), a direct global match
// against bgRGB when method is "rgb", or a global match against the
// image's dominant color when method is "dominant"; method "none" leaves
// working untouched. removeInner
// additionally matches the seed color globally (not only through
// 4-connectivity).
func removeBackground(working *bitmap.Bitmap, opt Options) {
	if opt.BgExtractionMethod == "none" {
		return
	}
	if opt.BgExtractionMethod == "rgb" {
		if opt.HasBgRGB {
			matchColor(working, opt.BgRGB[0], opt.BgRGB[1], opt.BgRGB[2], opt.BackgroundTolerance)
		}
		return
	}

	if opt.BgExtractionMethod == "dominant" {
		if r, g, b, ok := dominantBackgroundColor(working); ok {
			matchColor(working, r, g, b, opt.BackgroundTolerance)
		}
		return
	}

	seeds := backgroundSeeds(working, opt.BgExtractionMethod)
	visited := floodfill.NewVisited(working.W, working.H)
	var seedColors [][3]byte
	for _, p := range seeds {
		r, g, b, a := working.Get(p[0], p[1])
		if a != 0 {
			seedColors = append(seedColors, [3]byte{r, g, b})
		}
		floodfill.Fill(working, p[0], p[1], opt.BackgroundTolerance, visited)
	}
	if opt.RemoveInnerBackground {
		for _, c := range seedColors {
			matchColor(working, c[0], c[1], c[2], opt.BackgroundTolerance)
		}
	}
}

func emit(tap DebugTap, stage string, bm *bitmap.Bitmap) {
	if tap == nil {
		return
	}
	defer func() { _ = recover() }()
	tap(stage, bm, nil)
}

// Process runs the full refinement pipeline over src.
func Process(src *bitmap.Bitmap, opt Options) (Result, error) {
	if src.W <= 0 || src.H <= 0 || len(src.Pix) != 4*src.W*src.H {
		return Result{}, &Error{Kind: InvalidInput, Message: "bitmap dimensions or buffer length invalid"}
	}

	reduceMode := opt.ReduceColorMode
	switch reduceMode {
	case "", "none", "auto", "mono", "fixed", "sfc_sprite", "sfc_bg":
	default:
		if _, ok := palette.Lookup(reduceMode); !ok {
			reduceMode = "auto"
		}
	}

	seed := time.Now().UnixNano()
	if opt.RandomSeed != nil {
		seed = *opt.RandomSeed
	}
	rng := rand.New(rand.NewSource(seed))

	emit(opt.DebugTap, "00-input", src)

	working := src.Clone()
	if opt.PreRemoveBackground {
		removeBackground(working, opt)
	}
	emit(opt.DebugTap, "01-working", working)

	sanitized := working.Clone()

	if opt.FloatingMaxPixels > 0 {
		if _, err := components.Filter(working, working, opt.TrimAlphaThreshold, opt.FloatingMaxPixels); err != nil {
			return Result{}, &Error{Kind: InternalInvariant, Message: err.Error()}
		}
	}
	emit(opt.DebugTap, "01b-working-ignore-floating", working)

	var finalBitmap *bitmap.Bitmap
	var finalGrid grid.Grid

	var isAutoPath bool
	switch {
	case opt.ForcePixelsW > 0 && opt.ForcePixelsH > 0:
		bm, g, err := forcedSizePath(working, opt)
		if err != nil {
			return Result{}, err
		}
		finalBitmap, finalGrid = bm, g

	case !opt.EnableGridDetection:
		bm, g, err := gridDisabledPath(working, opt)
		if err != nil {
			return Result{}, err
		}
		finalBitmap, finalGrid = bm, g

	default:
		bm, g, err := autoPath(working, opt, emit)
		if err != nil {
			return Result{}, err
		}
		finalBitmap, finalGrid = bm, g
		isAutoPath = true
	}

	if opt.PostRemoveBackground {
		removeBackground(finalBitmap, opt)
	}
	emit(opt.DebugTap, "06-post-downsample-masked", finalBitmap)

	// The post-downsample bbox-trim-and-recrop only applies to the
	// auto-grid path. The forced-size path already delivers exactly
	// ForcePixelsW x ForcePixelsH and must not be shrunk further; the
	// grid-disabled path does no downsampling and applies its own
	// TrimToContent in gridDisabledPath.
	if isAutoPath && opt.TrimToContent {
		bbox, ok := bounds.FindOpaqueBounds(finalBitmap, opt.TrimAlphaThreshold)
		if !ok {
			return Result{}, &Error{Kind: ContentNotFound, Message: "no opaque content after masking"}
		}
		finalBitmap = bounds.Crop(finalBitmap, bbox)
		finalGrid.CropX += bbox.X * int(finalGrid.CellW)
		finalGrid.CropY += bbox.Y * int(finalGrid.CellH)
		finalGrid.OutW, finalGrid.OutH = bbox.W, bbox.H
		finalGrid.CropW = bbox.W * int(finalGrid.CellW)
		finalGrid.CropH = bbox.H * int(finalGrid.CellH)
	}
	emit(opt.DebugTap, "07-trimmed", finalBitmap)

	if reduceMode == "fixed" && len(opt.FixedPalette) == 0 {
		return Result{}, &Error{Kind: InvalidInput, Axis: "reduceColorMode", Value: "fixed", Message: "fixedPalette must be non-empty when reduceColorMode is fixed"}
	}

	resultW, resultH := finalBitmap.W, finalBitmap.H

	pal, ditherable, darkBias := quantizeStage(finalBitmap, reduceMode, opt, rng, &finalBitmap)

	if opt.DitherMode == "floyd-steinberg" && len(pal) > 0 {
		finalBitmap = dither.FloydSteinberg(ditherable, opt.TrimAlphaThreshold, pal, darkBias, float64(opt.DitherStrength)/100.0)
	}

	if opt.OutlineStyle != outline.None {
		finalBitmap = outline.Apply(finalBitmap, opt.OutlineStyle, opt.OutlineColor[0], opt.OutlineColor[1], opt.OutlineColor[2])
	}
	emit(opt.DebugTap, "99-result", finalBitmap)

	compareOriginal := imageio.ResizeNearest(src, resultW, resultH)
	compareSanitized := imageio.ResizeNearest(sanitized, resultW, resultH)

	return Result{
		Bitmap:           finalBitmap,
		Grid:             finalGrid,
		Palette:          pal,
		CompareOriginal:  compareOriginal,
		CompareSanitized: compareSanitized,
	}, nil
}

// quantizeStage derives the palette for reduceMode and, unless
// Floyd-Steinberg dithering will run instead, writes the snapped bitmap
// into *out. It always returns the pre-quantization bitmap (unchanged)
// as the ditherable source, since dithering needs continuous-tone input.
func quantizeStage(bm *bitmap.Bitmap, reduceMode string, opt Options, rng *rand.Rand, out **bitmap.Bitmap) (pal quantize.Palette, ditherable *bitmap.Bitmap, darkBias bool) {
	ditherable = bm
	dithering := opt.DitherMode == "floyd-steinberg"

	switch reduceMode {
	case "", "none":
		return nil, ditherable, false

	case "auto":
		res := quantize.Cluster(bm, opt.TrimAlphaThreshold, quantize.Options{MaxColors: opt.ColorCount, Rand: rng, Engine: opt.ColorEngine})
		if !dithering {
			*out = res.Bitmap
		}
		return res.Palette, ditherable, false

	case "sfc_sprite":
		res := quantize.Cluster(bm, opt.TrimAlphaThreshold, quantize.Options{MaxColors: 16, PreRoundStep: 8, Rand: rng, Engine: opt.ColorEngine})
		if !dithering {
			*out = res.Bitmap
		}
		return res.Palette, ditherable, false

	case "sfc_bg":
		res := quantize.Cluster(bm, opt.TrimAlphaThreshold, quantize.Options{MaxColors: 256, PreRoundStep: 8, Rand: rng, Engine: opt.ColorEngine})
		if !dithering {
			*out = res.Bitmap
		}
		return res.Palette, ditherable, false

	case "mono":
		pal = quantize.Palette{{R: 0, G: 0, B: 0}, {R: 255, G: 255, B: 255}}
		if !dithering {
			*out = quantize.SnapFixed(bm, opt.TrimAlphaThreshold, pal)
		}
		return pal, ditherable, true

	case "fixed":
		pal = opt.FixedPalette
		if !dithering {
			*out = quantize.SnapFixed(bm, opt.TrimAlphaThreshold, pal)
		}
		return pal, ditherable, true

	default:
		pal, _ = palette.Lookup(reduceMode)
		if !dithering {
			*out = quantize.SnapFixed(bm, opt.TrimAlphaThreshold, pal)
		}
		return pal, ditherable, true
	}
}

func forcedSizePath(working *bitmap.Bitmap, opt Options) (*bitmap.Bitmap, grid.Grid, error) {
	bbox, ok := bounds.FindOpaqueBounds(working, opt.TrimAlphaThreshold)
	if !ok {
		return nil, grid.Grid{}, &Error{Kind: ContentNotFound, Message: "forced-size path requires opaque content"}
	}
	cropped := bounds.Crop(working, bbox)

	cellW := float64(cropped.W) / float64(opt.ForcePixelsW)
	cellH := float64(cropped.H) / float64(opt.ForcePixelsH)

	sampleWindow := opt.SampleWindow
	if cellW < 1 || cellH < 1 {
		sampleWindow = 1
	}

	// g is reported in working's coordinate frame; local is the same grid
	// shifted to cropped's own (0,0)-origin frame, since Downsample indexes
	// its src argument directly by CropX/CropY.
	g := grid.Grid{
		CellW: cellW, CellH: cellH,
		OffsetX: 0, OffsetY: 0,
		CropX: bbox.X, CropY: bbox.Y,
		CropW: cropped.W, CropH: cropped.H,
		OutW: opt.ForcePixelsW, OutH: opt.ForcePixelsH,
	}
	local := g
	local.CropX, local.CropY = 0, 0

	out := downsample.Downsample(cropped, local, sampleWindow)
	return out, g, nil
}

func gridDisabledPath(working *bitmap.Bitmap, opt Options) (*bitmap.Bitmap, grid.Grid, error) {
	var out *bitmap.Bitmap
	cropX, cropY := 0, 0
	if opt.TrimToContent {
		bbox, ok := bounds.FindOpaqueBounds(working, opt.TrimAlphaThreshold)
		if !ok {
			return nil, grid.Grid{}, &Error{Kind: ContentNotFound, Message: "grid-disabled path requires opaque content to trim"}
		}
		out = bounds.Crop(working, bbox)
		cropX, cropY = bbox.X, bbox.Y
	} else {
		out = working.Clone()
	}

	g := grid.Grid{
		CellW: 1, CellH: 1,
		OffsetX: 0, OffsetY: 0,
		CropX: cropX, CropY: cropY,
		CropW: out.W, CropH: out.H,
		OutW: out.W, OutH: out.H,
	}
	return out, g, nil
}

func autoPath(working *bitmap.Bitmap, opt Options, emitFn func(DebugTap, string, *bitmap.Bitmap)) (*bitmap.Bitmap, grid.Grid, error) {
	if opt.AutoGridFromTrimmed {
		strategy := autogrid.Legacy
		if opt.FastAutoGridFromTrimmed {
			strategy = autogrid.Fast
		}
		res, ok := autogrid.Search(working, working, opt.SampleWindow, opt.TrimAlphaThreshold, strategy)
		if !ok {
			return nil, grid.Grid{}, &Error{Kind: ContentNotFound, Message: "auto-grid search requires opaque content"}
		}

		outW := max(1, int(float64(working.W)/res.CellW))
		outH := max(1, int(float64(working.H)/res.CellH))
		g := grid.Grid{
			CellW: res.CellW, CellH: res.CellH,
			OffsetX: 0, OffsetY: 0,
			CropX: 0, CropY: 0,
			CropW: int(float64(outW) * res.CellW), CropH: int(float64(outH) * res.CellH),
			OutW: outW, OutH: outH,
		}
		emitFn(opt.DebugTap, "02-pre-downsample-masked", working)
		emitFn(opt.DebugTap, "04-grid-crop", working)
		out := downsample.Downsample(working, g, opt.SampleWindow)
		emitFn(opt.DebugTap, "05-downsampled", out)
		return out, g, nil
	}

	g, err := grid.Detect(working, grid.Options{
		QuantStep:      opt.DetectionQuantStep,
		AlphaThreshold: opt.TrimAlphaThreshold,
	})
	if err != nil {
		return nil, grid.Grid{}, &Error{Kind: GridDetectionFailed, Message: err.Error()}
	}
	emitFn(opt.DebugTap, "02-pre-downsample-masked", working)
	cropped := working.Crop(g.CropX, g.CropY, g.CropW, g.CropH)
	emitFn(opt.DebugTap, "03-pre-downsample-bg-trimmed", cropped)
	shifted := grid.Grid{CellW: g.CellW, CellH: g.CellH, OutW: g.OutW, OutH: g.OutH, CropX: 0, CropY: 0, CropW: g.CropW, CropH: g.CropH}
	out := downsample.Downsample(cropped, shifted, opt.SampleWindow)
	emitFn(opt.DebugTap, "05-downsampled", out)
	return out, g, nil
}
