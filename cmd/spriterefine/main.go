// Command spriterefine runs the sprite refinement pipeline over a
// single image or a folder of images.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/alecthomas/kong"

	"spriterefine/internal/bitmap"
	"spriterefine/internal/imageio"
	"spriterefine/internal/palette"
	"spriterefine/internal/parallel"
	"spriterefine/refine"
)

type RefineFlags struct {
	DetectionQuantStep      int    `help:"Posterize step for grid detection." default:"64" group:"detect"`
	SampleWindow            int    `help:"Side of the median sampling window." default:"3" group:"detect"`
	BackgroundTolerance     int    `help:"Per-channel tolerance for background matching." default:"64" group:"background"`
	TrimAlphaThreshold      int    `help:"Alpha at or above this counts as opaque." default:"16" group:"detect"`
	FloatingMaxPixels       int    `help:"Erase opaque components at or below this size." default:"0" group:"detect"`
	ForceWidth              int    `help:"Force output width in cells; disables auto grid detection." name:"force-width" group:"detect"`
	ForceHeight             int    `help:"Force output height in cells." name:"force-height" group:"detect"`
	ColorCount              int    `help:"Target color count for K-means." default:"32" group:"color"`
	DitherStrength          int    `help:"Percent of diffused error to apply." default:"0" group:"color"`
	NoPreRemoveBackground   bool   `help:"Skip background removal before grid detection." group:"background"`
	NoPostRemoveBackground  bool   `help:"Skip background removal after downsampling." group:"background"`
	RemoveInnerBackground   bool   `help:"Also match the background color globally, not only by connectivity." group:"background"`
	NoTrimToContent         bool   `help:"Skip trimming to the opaque bounding box." group:"detect"`
	NoAutoGrid              bool   `help:"Fall back to periodicity-search grid detection instead of auto-grid-from-trimmed." group:"detect"`
	LegacyAutoGrid          bool   `help:"Use the exhaustive auto-grid search instead of the coarse-to-fine one." group:"detect"`
	NoGridDetection         bool   `help:"Disable grid detection and downsampling entirely." group:"detect"`
	ReduceColorMode         string `help:"Quantizer: none, auto, mono, fixed, sfc_sprite, sfc_bg, or a retro palette name." default:"none" group:"color"`
	ColorEngine             string `help:"K-means backend for auto/sfc_sprite/sfc_bg." enum:"stdlib,muesli" default:"stdlib" group:"color"`
	Dither                  string `help:"Dither mode." enum:"none,floyd-steinberg" default:"none" group:"color"`
	BgExtractionMethod      string `help:"Background seed corner, rgb, or dominant." enum:"top-left,bottom-left,top-right,bottom-right,rgb,dominant" default:"top-left" group:"background"`
	BgRgb                   string `help:"Background color as #rrggbb, required when bg-extraction-method=rgb." group:"background"`
	FixedPaletteFile        string `help:"Path to a RIFF .PAL file, used when reduce-color-mode=fixed." group:"color"`
	OutlineStyle            string `help:"Outline post-stage." enum:"none,sharp,rounded" default:"none" group:"outline"`
	OutlineColor            string `help:"Outline color as #rrggbb." default:"#ffffff" group:"outline"`
	Seed                    *int64 `help:"Random seed for K-means; default is system entropy." group:"color"`
	Format                  string `help:"Output image format." enum:"png,gif,jpeg,bmp,tiff" default:"png" group:"output"`
	DebugDir                string `help:"If set, write intermediate pipeline stages here as PNGs." group:"debug"`
	GzipDebug               bool   `help:"Gzip-compress debug snapshots." group:"debug"`
}

func extensionFor(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

func parseHexRGB(s string) (refine.RGB, error) {
	var r, g, b uint8
	switch len(s) {
	case 4:
		n, err := fmt.Sscanf(s, "#%1x%1x%1x", &r, &g, &b)
		if err != nil || n < 3 {
			return refine.RGB{}, fmt.Errorf("could not parse color %q: %w", s, err)
		}
		r |= r << 4
		g |= g << 4
		b |= b << 4
	case 7:
		n, err := fmt.Sscanf(s, "#%2x%2x%2x", &r, &g, &b)
		if err != nil || n < 3 {
			return refine.RGB{}, fmt.Errorf("could not parse color %q: %w", s, err)
		}
	default:
		return refine.RGB{}, fmt.Errorf("invalid color %q, expected #RGB or #RRGGBB", s)
	}
	return refine.RGB{R: r, G: g, B: b}, nil
}

func loadFixedPalette(path string) ([]refine.RGB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open palette file %q: %w", path, err)
	}
	defer f.Close()

	pals, err := palette.ReadRIFF(f)
	if err != nil {
		return nil, fmt.Errorf("could not read palette file %q: %w", path, err)
	}
	if len(pals) == 0 {
		return nil, fmt.Errorf("palette file %q contains no palettes", path)
	}
	out := make([]refine.RGB, len(pals[0]))
	for i, c := range pals[0] {
		out[i] = refine.RGB{R: c.R, G: c.G, B: c.B}
	}
	return out, nil
}

func boolPtr(v bool) *bool { return &v }

func (c *RefineFlags) toOptions() (refine.Options, error) {
	opt := refine.Options{
		DetectionQuantStep:      c.DetectionQuantStep,
		SampleWindow:            c.SampleWindow,
		BackgroundTolerance:     c.BackgroundTolerance,
		TrimAlphaThreshold:      c.TrimAlphaThreshold,
		FloatingMaxPixels:       c.FloatingMaxPixels,
		ForcePixelsW:            c.ForceWidth,
		ForcePixelsH:            c.ForceHeight,
		ColorCount:              c.ColorCount,
		DitherStrength:          c.DitherStrength,
		PreRemoveBackground:     boolPtr(!c.NoPreRemoveBackground),
		PostRemoveBackground:    boolPtr(!c.NoPostRemoveBackground),
		RemoveInnerBackground:   boolPtr(c.RemoveInnerBackground),
		TrimToContent:           boolPtr(!c.NoTrimToContent),
		AutoGridFromTrimmed:     boolPtr(!c.NoAutoGrid),
		FastAutoGridFromTrimmed: boolPtr(!c.LegacyAutoGrid),
		EnableGridDetection:     boolPtr(!c.NoGridDetection),
		ReduceColorMode:         refine.ReduceColorMode(c.ReduceColorMode),
		ColorEngine:             c.ColorEngine,
		DitherMode:              refine.DitherMode(c.Dither),
		BgExtractionMethod:      refine.BgExtractionMethod(c.BgExtractionMethod),
		RandomSeed:              c.Seed,
	}

	if c.OutlineStyle != "" {
		opt.OutlineStyle = refine.OutlineStyle(c.OutlineStyle)
	}
	if c.OutlineColor != "" {
		rgb, err := parseHexRGB(c.OutlineColor)
		if err != nil {
			return refine.Options{}, err
		}
		opt.OutlineColor = &rgb
	}

	if c.BgRgb != "" {
		rgb, err := parseHexRGB(c.BgRgb)
		if err != nil {
			return refine.Options{}, err
		}
		opt.BgRgb = &rgb
	}

	if c.FixedPaletteFile != "" {
		pal, err := loadFixedPalette(c.FixedPaletteFile)
		if err != nil {
			return refine.Options{}, err
		}
		opt.FixedPalette = pal
	}

	if c.DebugDir != "" {
		if err := os.MkdirAll(c.DebugDir, 0o755); err != nil {
			return refine.Options{}, fmt.Errorf("could not create debug directory %q: %w", c.DebugDir, err)
		}
		sink := imageio.FileSink(c.DebugDir, c.GzipDebug)
		opt.DebugTap = func(stage string, bm refine.Bitmap) {
			sink(stage, &bitmap.Bitmap{W: bm.W, H: bm.H, Pix: bm.Pix}, nil)
		}
	}

	return opt, nil
}

func refineFile(opt refine.Options, format, srcPath, dstPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", srcPath, err)
	}
	bm, _, err := imageio.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("could not decode %q: %w", srcPath, err)
	}

	result, err := refine.Process(refine.Bitmap{W: bm.W, H: bm.H, Pix: bm.Pix}, opt)
	if err != nil {
		return fmt.Errorf("could not refine %q: %w", srcPath, err)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", dstPath, err)
	}
	defer out.Close()

	resultBM := &bitmap.Bitmap{W: result.Bitmap.W, H: result.Bitmap.H, Pix: result.Bitmap.Pix}
	if err := imageio.EncodeAs(out, resultBM, format); err != nil {
		return fmt.Errorf("could not encode %q: %w", dstPath, err)
	}
	return nil
}

type RefineCmd struct {
	RefineFlags
	Input  string `arg:"" help:"Input image path." type:"existingfile"`
	Output string `arg:"" help:"Output image path."`
}

func (c *RefineCmd) Run() error {
	opt, err := c.toOptions()
	if err != nil {
		return err
	}
	if err := refineFile(opt, c.Format, c.Input, c.Output); err != nil {
		return err
	}
	slog.Info("refined", "input", c.Input, "output", c.Output)
	return nil
}

type BatchCmd struct {
	RefineFlags
	Scan    string `help:"Source folder to scan." default:"." type:"existingdir"`
	Dest    string `help:"Destination folder for refined images." default:"refined"`
	Workers int    `help:"Number of concurrent workers." default:"4"`
}

func (c *BatchCmd) Run() error {
	opt, err := c.toOptions()
	if err != nil {
		return err
	}

	scanDir, err := filepath.Abs(c.Scan)
	if err != nil {
		return fmt.Errorf("invalid scan path %q: %w", c.Scan, err)
	}
	destDir := c.Dest
	if !filepath.IsAbs(destDir) {
		destDir = filepath.Join(scanDir, destDir)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("could not create destination folder %q: %w", destDir, err)
	}

	files, err := os.ReadDir(scanDir)
	if err != nil {
		return fmt.Errorf("could not read folder %q: %w", scanDir, err)
	}

	pool := parallel.Start(c.Workers)

	var processedCount, errCount atomic.Uint64
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		pool.Do(func() {
			srcPath := filepath.Join(scanDir, name)
			ext := filepath.Ext(name)
			dstPath := filepath.Join(destDir, name[:len(name)-len(ext)]+"."+extensionFor(c.Format))

			if err := refineFile(opt, c.Format, srcPath, dstPath); err != nil {
				errCount.Add(1)
				slog.Error("could not refine image", "file", srcPath, "error", err)
				return
			}
			processedCount.Add(1)
		})
	}
	pool.Wait(true)

	processed, errs := processedCount.Load(), errCount.Load()
	slog.Info("stats", "processed", processed, "errors", errs, "total", processed+errs)
	if errs > 0 {
		return fmt.Errorf("error refining %d files", errs)
	}
	return nil
}

type CLI struct {
	Refine RefineCmd `cmd:"" default:"1" help:"Refine a single image."`
	Batch  BatchCmd  `cmd:"" help:"Refine every image in a folder."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("spriterefine"),
		kong.Description("Grid detection, downsampling, background removal, trimming, quantization, dithering and outlining for pixel-art sprites."),
	)
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
