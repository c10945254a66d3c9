package quantize

import (
	"math"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"gonum.org/v1/gonum/stat"

	"spriterefine/internal/bitmap"
	"spriterefine/internal/colorspace"
)

// KMeansMuesli is an alternate K-means engine, selected by setting
// Options.Engine to "muesli". It delegates partitioning to
// github.com/muesli/kmeans instead of the hand-rolled Lloyd's-algorithm
// loop in KMeans, then refines each resulting cluster's centroid as the
// pixel-count-weighted Oklab mean via gonum/stat, since muesli's
// Observations carry no per-point weight.
func KMeansMuesli(src *bitmap.Bitmap, alphaThreshold int, opt Options) Result {
	opt = opt.withDefaults()
	entries := histogram(src, alphaThreshold, opt.PreRoundStep)

	if opt.MaxColors <= 0 || len(entries) <= opt.MaxColors {
		pal := make(Palette, len(entries))
		for i, e := range entries {
			pal[i] = e.rgb
		}
		return Result{Bitmap: src.Clone(), Palette: pal}
	}

	dataset := make(clusters.Observations, len(entries))
	for i, e := range entries {
		dataset[i] = clusters.Coordinates{e.lab.L, e.lab.A, e.lab.B}
	}

	km := kmeans.New()
	cc, err := km.Partition(dataset, opt.MaxColors)
	if err != nil || len(cc) == 0 {
		return KMeans(src, alphaThreshold, opt)
	}

	centers := make([]colorspace.Oklab, len(cc))
	for i, cluster := range cc {
		centers[i] = colorspace.Oklab{L: cluster.Center[0], A: cluster.Center[1], B: cluster.Center[2]}
	}

	assign := make([]int, len(entries))
	for i, e := range entries {
		best, bestD := 0, math.MaxFloat64
		for c, center := range centers {
			d := colorspace.DistSq(e.lab, center)
			if d < bestD {
				bestD, best = d, c
			}
		}
		assign[i] = best
	}

	pal := make(Palette, len(centers))
	for c, center := range centers {
		var ls, as, bs, ws []float64
		for i, e := range entries {
			if assign[i] != c {
				continue
			}
			ls = append(ls, e.lab.L)
			as = append(as, e.lab.A)
			bs = append(bs, e.lab.B)
			ws = append(ws, float64(e.count))
		}
		refined := center
		if len(ls) > 0 {
			refined = colorspace.Oklab{L: stat.Mean(ls, ws), A: stat.Mean(as, ws), B: stat.Mean(bs, ws)}
		}
		r, g, b := colorspace.OklabToSRGB(refined)
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
