package refine

import "testing"

func solid(w, h int, r, g, b, a byte) Bitmap {
	pix := make([]byte, 4*w*h)
	for i := 0; i < w*h; i++ {
		pix[i*4], pix[i*4+1], pix[i*4+2], pix[i*4+3] = r, g, b, a
	}
	return Bitmap{W: w, H: h, Pix: pix}
}

func boolPtr(v bool) *bool { return &v }

func TestProcessInvalidInputOnBadBuffer(t *testing.T) {
	bm := Bitmap{W: 4, H: 4, Pix: make([]byte, 3)}
	_, err := Process(bm, Options{})
	var refErr *Error
	if !asError(err, &refErr) || refErr.Kind != InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}

func TestProcessGridDisabledTrim(t *testing.T) {
	bm := solid(10, 10, 255, 255, 255, 255)
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			i := (y*10 + x) * 4
			bm.Pix[i], bm.Pix[i+1], bm.Pix[i+2], bm.Pix[i+3] = 0, 0, 0, 255
		}
	}

	res, err := Process(bm, Options{
		EnableGridDetection: boolPtr(false),
		TrimToContent:       boolPtr(true),
		PreRemoveBackground: boolPtr(true),
		BackgroundTolerance: 0,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Bitmap.W != 4 || res.Bitmap.H != 4 {
		t.Fatalf("expected a 4x4 result, got %dx%d", res.Bitmap.W, res.Bitmap.H)
	}
	if res.Grid.CropX != 2 || res.Grid.CropY != 2 {
		t.Fatalf("unexpected crop origin: %+v", res.Grid)
	}
}

func TestProcessUnknownPaletteFallsBackToAuto(t *testing.T) {
	seed := int64(7)
	bm := solid(4, 4, 12, 34, 56, 255)
	res, err := Process(bm, Options{
		// The image is one solid color, so background removal would erase
		// all of it and leave nothing to quantize.
		PreRemoveBackground:  boolPtr(false),
		PostRemoveBackground: boolPtr(false),
		EnableGridDetection:  boolPtr(false),
		TrimToContent:        boolPtr(false),
		ReduceColorMode:      "not-a-palette",
		ColorCount:           2,
		RandomSeed:           &seed,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.ExtractedPalette) == 0 {
		t.Fatalf("expected a fallback palette")
	}
}

func TestOptionsResolveClampsAndDefaults(t *testing.T) {
	o := Options{}
	r := o.resolve()
	if r.DetectionQuantStep != 64 || r.SampleWindow != 3 || r.BackgroundTolerance != 64 {
		t.Fatalf("unexpected defaults: %+v", r)
	}
	if !r.PreRemoveBackground || !r.TrimToContent || !r.EnableGridDetection {
		t.Fatalf("expected true-by-default bools to resolve true: %+v", r)
	}

	o2 := Options{DetectionQuantStep: 999, ColorCount: 1}
	r2 := o2.resolve()
	if r2.DetectionQuantStep != 128 {
		t.Fatalf("expected DetectionQuantStep clamped to 128, got %d", r2.DetectionQuantStep)
	}
	if r2.ColorCount != 2 {
		t.Fatalf("expected ColorCount clamped to 2, got %d", r2.ColorCount)
	}
}

func TestOptionsResolveOutlineDefaultColorIsWhite(t *testing.T) {
	o := Options{OutlineStyle: OutlineSharp}
	r := o.resolve()
	if r.OutlineColor != [3]byte{255, 255, 255} {
		t.Fatalf("expected default outline color white, got %+v", r.OutlineColor)
	}
}

func TestOptionsResolveOutlineExplicitBlackIsNotOverridden(t *testing.T) {
	black := RGB{R: 0, G: 0, B: 0}
	o := Options{OutlineStyle: OutlineSharp, OutlineColor: &black}
	r := o.resolve()
	if r.OutlineColor != [3]byte{0, 0, 0} {
		t.Fatalf("expected explicit black outline color to survive resolve, got %+v", r.OutlineColor)
	}
}
