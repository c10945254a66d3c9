// Package quantize implements Oklab-space color reduction: weighted
// K-means clustering over the opaque color histogram, and nearest-entry
// snapping against a fixed palette with a dark-region bias.
package quantize

import (
	"math"
	"math/rand"
	"sort"

	"spriterefine/internal/bitmap"
	"spriterefine/internal/colorspace"
)

// RGB is an 8-bit color triple, used as a palette entry and histogram key.
type RGB struct {
	R, G, B byte
}

// Palette is an ordered list of colors; indices are referenced by
// quantization results.
type Palette []RGB

// Options configures K-means clustering.
type Options struct {
	MaxColors     int
	MaxIterations int
	Tolerance     float64
	// PreRoundStep, when >1, floors each channel to the nearest multiple
	// of the step before clustering (SFC 15-bit-color modes).
	PreRoundStep int
	// Rand supplies centroid-initialization and reseed randomness. Nil
	// uses the package-level math/rand source (auto-seeded).
	Rand *rand.Rand
	// Engine selects the clustering backend: "" or "stdlib" for the
	// hand-rolled Lloyd's-algorithm loop, "muesli" for KMeansMuesli.
	Engine string
}

// Cluster runs KMeans or KMeansMuesli according to opt.Engine.
func Cluster(src *bitmap.Bitmap, alphaThreshold int, opt Options) Result {
	if opt.Engine == "muesli" {
		return KMeansMuesli(src, alphaThreshold, opt)
	}
	return KMeans(src, alphaThreshold, opt)
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 20
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 0.001
	}
	return o
}

func (o Options) randPerm(n int) []int {
	if o.Rand != nil {
		return o.Rand.Perm(n)
	}
	return rand.Perm(n)
}

func (o Options) randIntn(n int) int {
	if o.Rand != nil {
		return o.Rand.Intn(n)
	}
	return rand.Intn(n)
}

type histEntry struct {
	rgb   RGB
	lab   colorspace.Oklab
	count int
}

func roundStep(v byte, step int) byte {
	if step <= 1 {
		return v
	}
	r := (int(v) / step) * step
	if r > 255 {
		r = 255
	}
	return byte(r)
}

func histogram(b *bitmap.Bitmap, alphaThreshold, preRoundStep int) []histEntry {
	counts := make(map[RGB]int)
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			r, g, bl, a := b.Get(x, y)
			if int(a) < alphaThreshold {
				continue
			}
			if preRoundStep > 1 {
				r, g, bl = roundStep(r, preRoundStep), roundStep(g, preRoundStep), roundStep(bl, preRoundStep)
			}
			counts[RGB{r, g, bl}]++
		}
	}

	entries := make([]histEntry, 0, len(counts))
	for rgb, c := range counts {
		entries = append(entries, histEntry{rgb: rgb, lab: colorspace.SRGBToOklab(rgb.R, rgb.G, rgb.B), count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].rgb, entries[j].rgb
		if a.R != b.R {
			return a.R < b.R
		}
		if a.G != b.G {
			return a.G < b.G
		}
		return a.B < b.B
	})
	return entries
}

// Result is the outcome of a quantization pass.
type Result struct {
	Bitmap  *bitmap.Bitmap
	Palette Palette
}

// KMeans clusters the opaque colors of src into at most opt.MaxColors
// centroids in Oklab space, weighted by occurrence count. If the number
// of unique opaque colors is already at most MaxColors, src is returned
// unchanged (a bitwise clone) and the palette is the observed unique colors.
func KMeans(src *bitmap.Bitmap, alphaThreshold int, opt Options) Result {
	opt = opt.withDefaults()
	entries := histogram(src, alphaThreshold, opt.PreRoundStep)

	if opt.MaxColors <= 0 || len(entries) <= opt.MaxColors {
		pal := make(Palette, len(entries))
		for i, e := range entries {
			pal[i] = e.rgb
		}
		return Result{Bitmap: src.Clone(), Palette: pal}
	}

	centroids := make([]colorspace.Oklab, opt.MaxColors)
	perm := opt.randPerm(len(entries))
	for i := 0; i < opt.MaxColors; i++ {
		centroids[i] = entries[perm[i]].lab
	}

	assign := make([]int, len(entries))
	tolSq := opt.Tolerance * opt.Tolerance

	for iter := 0; iter < opt.MaxIterations; iter++ {
		for i, e := range entries {
			best, bestD := 0, math.MaxFloat64
			for c, centroid := range centroids {
				d := colorspace.DistSq(e.lab, centroid)
				if d < bestD {
					bestD, best = d, c
				}
			}
			assign[i] = best
		}

		sums := make([]colorspace.Oklab, opt.MaxColors)
		weights := make([]int, opt.MaxColors)
		for i, e := range entries {
			c := assign[i]
			w := float64(e.count)
			sums[c].L += e.lab.L * w
			sums[c].A += e.lab.A * w
			sums[c].B += e.lab.B * w
			weights[c] += e.count
		}

		maxMove := 0.0
		for c := range centroids {
			var next colorspace.Oklab
			if weights[c] == 0 {
				next = entries[opt.randIntn(len(entries))].lab
			} else {
				w := float64(weights[c])
				next = colorspace.Oklab{L: sums[c].L / w, A: sums[c].A / w, B: sums[c].B / w}
			}
			move := colorspace.DistSq(next, centroids[c])
			if move > maxMove {
				maxMove = move
			}
			centroids[c] = next
		}

		if maxMove < tolSq {
			break
		}
	}

	pal := make(Palette, opt.MaxColors)
	for c, centroid := range centroids {
		r, g, b := colorspace.OklabToSRGB(centroid)
		pal[c] = RGB{r, g, b}
	}

	classOf := make(map[RGB]int, len(entries))
	for i, e := range entries {
		classOf[e.rgb] = assign[i]
	}

	out := bitmap.New(src.W, src.H)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			r, g, b, a := src.Get(x, y)
			if int(a) < alphaThreshold {
				out.Set(x, y, r, g, b, a)
				continue
			}
			key := RGB{r, g, b}
			if opt.PreRoundStep > 1 {
				key = RGB{roundStep(r, opt.PreRoundStep), roundStep(g, opt.PreRoundStep), roundStep(b, opt.PreRoundStep)}
			}
			c := classOf[key]
			out.Set(x, y, pal[c].R, pal[c].G, pal[c].B, a)
		}
	}

	return Result{Bitmap: out, Palette: pal}
}

// Entry pairs a palette color with its Oklab coordinate, precomputed once
// so repeated nearest-neighbor lookups avoid reconverting the palette.
type Entry struct {
	RGB RGB
	Lab colorspace.Oklab
}

// BuildEntries precomputes Oklab coordinates for a palette.
func BuildEntries(pal Palette) []Entry {
	entries := make([]Entry, len(pal))
	for i, c := range pal {
		entries[i] = Entry{RGB: c, Lab: colorspace.SRGBToOklab(c.R, c.G, c.B)}
	}
	return entries
}

// Nearest returns the index of the palette entry closest to (r,g,b) in
// squared Oklab distance. With darkBias, two adjustments pull very dark
// pixels toward exact black and use RGB distance to disambiguate among
// near-black palette entries (fixed-palette snapping, §4.11).
func Nearest(entries []Entry, r, g, b byte, darkBias bool) int {
	lab := colorspace.SRGBToOklab(r, g, b)
	best, bestScore := 0, math.MaxFloat64
	for i, e := range entries {
		d := colorspace.DistSq(lab, e.Lab)
		if darkBias {
			if e.RGB == (RGB{}) && lab.L < 0.2 {
				bias := (0.2 - lab.L) * 1.5
				d -= bias * bias
			}
			if lab.L < 0.1 {
				dr := (float64(r) - float64(e.RGB.R)) / 255
				dg := (float64(g) - float64(e.RGB.G)) / 255
				db := (float64(b) - float64(e.RGB.B)) / 255
				d += (dr*dr + dg*dg + db*db) * (0.5 - lab.L)
			}
		}
		if d < bestScore {
			bestScore, best = d, i
		}
	}
	return best
}

// SnapFixed maps every opaque pixel of src to the nearest entry of pal,
// memoized per source RGB triple.
func SnapFixed(src *bitmap.Bitmap, alphaThreshold int, pal Palette) *bitmap.Bitmap {
	entries := BuildEntries(pal)
	out := bitmap.New(src.W, src.H)
	if len(entries) == 0 {
		return src.Clone()
	}

	memo := make(map[RGB]int)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			r, g, b, a := src.Get(x, y)
			if int(a) < alphaThreshold {
				out.Set(x, y, r, g, b, a)
				continue
			}
			key := RGB{r, g, b}
			idx, ok := memo[key]
			if !ok {
				idx = Nearest(entries, r, g, b, true)
				memo[key] = idx
			}
			e := entries[idx]
			out.Set(x, y, e.RGB.R, e.RGB.G, e.RGB.B, a)
		}
	}
	return out
}
