package refine

import (
	"spriterefine/internal/bitmap"
	"spriterefine/internal/outline"
	"spriterefine/internal/pipeline"
	"spriterefine/internal/quantize"
)

// ReduceColorMode selects the quantizer applied to the refined output.
type ReduceColorMode string

const (
	ReduceNone      ReduceColorMode = "none"
	ReduceAuto      ReduceColorMode = "auto"
	ReduceMono      ReduceColorMode = "mono"
	ReduceFixed     ReduceColorMode = "fixed"
	ReduceGBLegacy  ReduceColorMode = "gb_legacy"
	ReduceGBPocket  ReduceColorMode = "gb_pocket"
	ReduceGBLight   ReduceColorMode = "gb_light"
	ReducePico8     ReduceColorMode = "pico8"
	ReduceNES       ReduceColorMode = "nes"
	ReducePC98      ReduceColorMode = "pc98"
	ReduceMSX       ReduceColorMode = "msx"
	ReduceC64       ReduceColorMode = "c64"
	ReduceArne16    ReduceColorMode = "arne16"
	ReduceSFCSprite ReduceColorMode = "sfc_sprite"
	ReduceSFCBG     ReduceColorMode = "sfc_bg"
)

// DitherMode selects the error-diffusion strategy applied after
// quantization.
type DitherMode string

const (
	DitherNone           DitherMode = "none"
	DitherFloydSteinberg DitherMode = "floyd-steinberg"
)

// BgExtractionMethod selects how the background seed color (or colors)
// is chosen for flood-fill-based background removal.
type BgExtractionMethod string

const (
	BgNone        BgExtractionMethod = "none"
	BgTopLeft     BgExtractionMethod = "top-left"
	BgBottomLeft  BgExtractionMethod = "bottom-left"
	BgTopRight    BgExtractionMethod = "top-right"
	BgBottomRight BgExtractionMethod = "bottom-right"
	BgRGB         BgExtractionMethod = "rgb"
	BgDominant    BgExtractionMethod = "dominant"
)

// OutlineStyle selects the connectivity used by the outline post-stage.
type OutlineStyle string

const (
	OutlineNone    OutlineStyle = "none"
	OutlineSharp   OutlineStyle = "sharp"
	OutlineRounded OutlineStyle = "rounded"
)

// Options configures one Process call. Every numeric field has a
// declared clamp range; out-of-range values are silently clamped rather
// than rejected (only structural violations - see InvalidInput - reach
// the caller as an error). Bool fields whose default is true are
// pointers so "unset" can be distinguished from an explicit false;
// OutlineColor is a pointer for the same reason, since its zero value
// (black) is a legitimate explicit choice, not just "unset".
type Options struct {
	DetectionQuantStep      int   // 1..128, default 64
	SampleWindow            int   // 1..9, default 3
	BackgroundTolerance     int   // 0..255, default 64; zero itself resolves to the default, a negative value clamps to 0
	TrimAlphaThreshold      int   // 1..255, default 16
	FloatingMaxPixels       int   // 0..1_000_000, default 0
	ForcePixelsW            int   // 1..1024, 0 means unset
	ForcePixelsH            int   // 1..1024, 0 means unset
	ColorCount              int   // 2..256, default 32
	DitherStrength          int   // 0..100, default 0
	PreRemoveBackground     *bool // default true
	PostRemoveBackground    *bool // default true
	RemoveInnerBackground   *bool // default false
	TrimToContent           *bool // default true
	AutoGridFromTrimmed     *bool // default true
	FastAutoGridFromTrimmed *bool // default true
	EnableGridDetection     *bool // default true

	ReduceColorMode ReduceColorMode
	// ColorEngine selects the K-means backend used by ReduceAuto,
	// ReduceSFCSprite and ReduceSFCBG: "" or "stdlib" for the built-in
	// loop, "muesli" for the github.com/muesli/kmeans-backed engine.
	ColorEngine        string
	DitherMode         DitherMode
	BgExtractionMethod BgExtractionMethod
	BgRgb              *RGB
	FixedPalette       []RGB

	OutlineStyle OutlineStyle
	OutlineColor *RGB // default white when nil

	// RandomSeed makes K-means deterministic across runs when set; nil
	// seeds from system entropy at Process entry.
	RandomSeed *int64

	// DebugTap, if set, is invoked with a borrowed bitmap view at each
	// fixed pipeline stage name. A panicking tap is recovered and
	// otherwise ignored: it can never fail a Process call.
	DebugTap func(stage string, bm Bitmap)
}

func clampInt(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (o Options) resolve() pipeline.Options {
	out := pipeline.Options{
		DetectionQuantStep:      clampInt(o.DetectionQuantStep, 1, 128, 64),
		SampleWindow:            clampInt(o.SampleWindow, 1, 9, 3),
		BackgroundTolerance:     clampInt(o.BackgroundTolerance, 0, 255, 64),
		TrimAlphaThreshold:      clampInt(o.TrimAlphaThreshold, 1, 255, 16),
		FloatingMaxPixels:       clampInt(o.FloatingMaxPixels, 0, 1_000_000, 0),
		ColorCount:              clampInt(o.ColorCount, 2, 256, 32),
		DitherStrength:          clampInt(o.DitherStrength, 0, 100, 0),
		PreRemoveBackground:     boolOr(o.PreRemoveBackground, true),
		PostRemoveBackground:    boolOr(o.PostRemoveBackground, true),
		RemoveInnerBackground:   boolOr(o.RemoveInnerBackground, false),
		TrimToContent:           boolOr(o.TrimToContent, true),
		AutoGridFromTrimmed:     boolOr(o.AutoGridFromTrimmed, true),
		FastAutoGridFromTrimmed: boolOr(o.FastAutoGridFromTrimmed, true),
		EnableGridDetection:     boolOr(o.EnableGridDetection, true),
		ReduceColorMode:         string(o.ReduceColorMode),
		ColorEngine:             o.ColorEngine,
		DitherMode:              string(o.DitherMode),
		BgExtractionMethod:      string(o.BgExtractionMethod),
		RandomSeed:              o.RandomSeed,
	}

	if o.ForcePixelsW > 0 {
		out.ForcePixelsW = clampInt(o.ForcePixelsW, 1, 1024, 1)
	}
	if o.ForcePixelsH > 0 {
		out.ForcePixelsH = clampInt(o.ForcePixelsH, 1, 1024, 1)
	}
	if out.BgExtractionMethod == "" {
		out.BgExtractionMethod = string(BgTopLeft)
	}
	if o.BgRgb != nil {
		out.HasBgRGB = true
		out.BgRGB = [3]byte{o.BgRgb.R, o.BgRgb.G, o.BgRgb.B}
	}
	if len(o.FixedPalette) > 0 {
		pal := make(quantize.Palette, len(o.FixedPalette))
		for i, c := range o.FixedPalette {
			pal[i] = quantize.RGB{R: c.R, G: c.G, B: c.B}
		}
		out.FixedPalette = pal
	}

	switch o.OutlineStyle {
	case OutlineSharp:
		out.OutlineStyle = outline.Sharp
	case OutlineRounded:
		out.OutlineStyle = outline.Rounded
	default:
		out.OutlineStyle = outline.None
	}
	oc := RGB{R: 255, G: 255, B: 255}
	if o.OutlineColor != nil {
		oc = *o.OutlineColor
	}
	out.OutlineColor = [3]byte{oc.R, oc.G, oc.B}

	if o.DebugTap != nil {
		tap := o.DebugTap
		out.DebugTap = func(stage string, bm *bitmap.Bitmap, meta map[string]string) {
			tap(stage, fromInternal(bm))
		}
	}

	return out
}
