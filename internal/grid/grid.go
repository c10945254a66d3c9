// Package grid implements dominant-background estimation, dense-strip
// selection, run-length extraction, and periodicity search to recover
// the latent pixel grid of an image (cell size and offset per axis).
package grid

import (
	"errors"
	"math"
	"sort"

	"spriterefine/internal/bitmap"
	"spriterefine/internal/stats"
)

// ErrGridDetectionFailed is returned when no candidate cell size can be
// derived along one axis (e.g. a uniform image).
var ErrGridDetectionFailed = errors.New("grid: detection failed")

// Grid describes the detected (or otherwise derived) pixel grid.
type Grid struct {
	CellW, CellH     float64
	OffsetX, OffsetY float64
	CropX, CropY     int
	CropW, CropH     int
	OutW, OutH       int
	Score            float64
}

// Options configures the detector; zero values are replaced by defaults.
type Options struct {
	QuantStep      int // detectionQuantStep, default 64
	Strips         int // detectionStrips, default 12
	AlphaThreshold int // trimAlphaThreshold, default 16
	AutoMaxCellsW  int // default 128; a value != 128 is treated as an explicit target cell count
	AutoMaxCellsH  int // default 128
}

func withDefaults(o Options) Options {
	if o.QuantStep <= 0 {
		o.QuantStep = 64
	}
	if o.Strips <= 0 {
		o.Strips = 12
	}
	if o.AlphaThreshold <= 0 {
		o.AlphaThreshold = 16
	}
	if o.AutoMaxCellsW <= 0 {
		o.AutoMaxCellsW = 128
	}
	if o.AutoMaxCellsH <= 0 {
		o.AutoMaxCellsH = 128
	}
	return o
}

// Detect estimates a Grid for bm.
func Detect(bm *bitmap.Bitmap, opt Options) (Grid, error) {
	opt = withDefaults(opt)

	posterized := bm.Posterize(opt.QuantStep)
	bg := estimateBackground(posterized, bm, opt.AlphaThreshold)

	wMin, wMax, wTarget := expectedRange(opt.AutoMaxCellsW)
	hMin, hMax, hTarget := expectedRange(opt.AutoMaxCellsH)

	wSize, wOffset, wScore, wOK := detectOneAxis(bm, posterized, bg, bitmap.AxisY, bm.H, bm.W, opt.Strips, opt.AlphaThreshold, wMin, wMax, wTarget)
	hSize, hOffset, hScore, hOK := detectOneAxis(bm, posterized, bg, bitmap.AxisX, bm.W, bm.H, opt.Strips, opt.AlphaThreshold, hMin, hMax, hTarget)

	if !wOK || !hOK {
		return Grid{}, ErrGridDetectionFailed
	}

	cellW := math.Max(1, math.Round(float64(wSize)))
	cellH := math.Max(1, math.Round(float64(hSize)))

	offsetX := math.Mod(float64(wOffset), cellW)
	if offsetX < 0 {
		offsetX += cellW
	}
	offsetY := math.Mod(float64(hOffset), cellH)
	if offsetY < 0 {
		offsetY += cellH
	}

	outW := int(math.Floor((float64(bm.W) - offsetX) / cellW))
	outH := int(math.Floor((float64(bm.H) - offsetY) / cellH))
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	return Grid{
		CellW: cellW, CellH: cellH,
		OffsetX: offsetX, OffsetY: offsetY,
		CropX: int(offsetX), CropY: int(offsetY),
		CropW: outW * int(cellW), CropH: outH * int(cellH),
		OutW: outW, OutH: outH,
		Score: (wScore + hScore) / 2,
	}, nil
}

// expectedRange interprets an AutoMaxCells* option. A value equal to the
// default (128) means "no explicit target": the candidate cell-count
// range is [8,128] and there is no tie-break preference. Any other value
// is treated as an explicit target cell count for that axis.
func expectedRange(autoMaxCells int) (lo, hi int, hasTarget bool) {
	const def = 128
	v := autoMaxCells
	if v <= 0 {
		v = def
	}
	if v == def {
		return 8, def, false
	}
	if v < 8 {
		return v, 8, true
	}
	return 8, v, true
}

func pack(r, g, b byte) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// estimateBackground collects the dominant quantized RGB triples until
// cumulative coverage reaches 70% or 8 colors are collected, whichever
// comes first. It is used only to pick informative scan lines; boundary
// detection still consults the original posterized image.
func estimateBackground(posterized, original *bitmap.Bitmap, alphaThreshold int) map[uint32]bool {
	counts := map[uint32]int{}
	total := 0
	for y := 0; y < posterized.H; y++ {
		for x := 0; x < posterized.W; x++ {
			if int(original.GetAlpha(x, y)) < alphaThreshold {
				continue
			}
			r, g, b, _ := posterized.Get(x, y)
			counts[pack(r, g, b)]++
			total++
		}
	}
	bg := map[uint32]bool{}
	if total == 0 {
		return bg
	}
	type kv struct {
		key   uint32
		count int
	}
	list := make([]kv, 0, len(counts))
	for k, c := range counts {
		list = append(list, kv{k, c})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].count > list[j].count })

	cum := 0
	for i, e := range list {
		if i >= 8 {
			break
		}
		bg[e.key] = true
		cum += e.count
		if float64(cum)/float64(total) >= 0.70 {
			break
		}
	}
	return bg
}

func coordAt(axis bitmap.Axis, pos, i int) (x, y int) {
	if axis == bitmap.AxisY {
		return i, pos
	}
	return pos, i
}

// selectStrips picks up to `wanted` positions along the given axis with
// the most non-background pixels, under a minimum separation of
// numPositions/(6*wanted).
func selectStrips(original, posterized *bitmap.Bitmap, bg map[uint32]bool, axis bitmap.Axis, numPositions, stripLen, wanted, alphaThreshold int) []int {
	if wanted <= 0 {
		wanted = 1
	}
	counts := make([]int, numPositions)
	for p := 0; p < numPositions; p++ {
		c := 0
		for i := 0; i < stripLen; i++ {
			x, y := coordAt(axis, p, i)
			if int(original.GetAlpha(x, y)) < alphaThreshold {
				continue
			}
			r, g, b, _ := posterized.Get(x, y)
			if !bg[pack(r, g, b)] {
				c++
			}
		}
		counts[p] = c
	}

	order := make([]int, numPositions)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return order[i] < order[j]
	})

	minSep := float64(numPositions) / (6.0 * float64(wanted))

	var selected []int
	for _, p := range order {
		if len(selected) >= wanted {
			break
		}
		tooClose := false
		for _, s := range selected {
			d := p - s
			if d < 0 {
				d = -d
			}
			if float64(d) < minSep {
				tooClose = true
				break
			}
		}
		if !tooClose {
			selected = append(selected, p)
		}
	}
	if len(selected) < wanted {
		have := map[int]bool{}
		for _, s := range selected {
			have[s] = true
		}
		for _, p := range order {
			if len(selected) >= wanted {
				break
			}
			if !have[p] {
				selected = append(selected, p)
				have[p] = true
			}
		}
	}
	return selected
}

// Run is a maximal contiguous sub-sequence of a strip with identical
// posterized RGB and opaque alpha.
type Run struct {
	Start, Length int
	R, G, B       byte
}

// Segment covers a maximal opaque stretch of a strip.
type Segment struct {
	Start int
	Runs  []Run
}

func extractRuns(posterized, original *bitmap.Bitmap, axis bitmap.Axis, pos, stripLen, alphaThreshold int) []Segment {
	var segments []Segment
	i := 0
	for i < stripLen {
		x, y := coordAt(axis, pos, i)
		if int(original.GetAlpha(x, y)) < alphaThreshold {
			i++
			continue
		}
		segStart := i
		var runs []Run
		for i < stripLen {
			x, y := coordAt(axis, pos, i)
			if int(original.GetAlpha(x, y)) < alphaThreshold {
				break
			}
			r, g, b, _ := posterized.Get(x, y)
			if n := len(runs); n > 0 && runs[n-1].R == r && runs[n-1].G == g && runs[n-1].B == b {
				runs[n-1].Length++
			} else {
				runs = append(runs, Run{Start: i, Length: 1, R: r, G: g, B: b})
			}
			i++
		}
		segments = append(segments, Segment{Start: segStart, Runs: absorbSingletons(runs)})
	}
	return segments
}

// absorbSingletons merges single-pixel runs into their neighbor when both
// neighbors share the same color (noise smoothing).
func absorbSingletons(runs []Run) []Run {
	for {
		merged := false
		for i := 1; i < len(runs)-1; i++ {
			if runs[i].Length == 1 && runs[i-1].R == runs[i+1].R && runs[i-1].G == runs[i+1].G && runs[i-1].B == runs[i+1].B {
				runs[i-1].Length += runs[i].Length + runs[i+1].Length
				runs = append(runs[:i], runs[i+2:]...)
				merged = true
				break
			}
		}
		if !merged {
			break
		}
	}
	return runs
}

func gatherRunStats(allSegments [][]Segment) (lengths, boundaries []int, freq map[int]int) {
	freq = map[int]int{}
	for _, segs := range allSegments {
		for _, seg := range segs {
			for _, r := range seg.Runs {
				boundaries = append(boundaries, r.Start)
				if r.Length >= 2 {
					lengths = append(lengths, r.Length)
					freq[r.Length]++
				}
			}
		}
	}
	return
}

func candidateSizes(lengths []int, stripLen, expectedMin, expectedMax int) []int {
	set := map[int]bool{}
	for _, l := range lengths {
		set[l] = true
	}
	for cells := expectedMin; cells <= expectedMax; cells++ {
		if cells <= 0 {
			continue
		}
		s := int(math.Round(float64(stripLen) / float64(cells)))
		if s >= 1 {
			set[s] = true
		}
	}
	expanded := map[int]bool{}
	for s := range set {
		expanded[s] = true
		if s-1 >= 1 {
			expanded[s-1] = true
		}
		expanded[s+1] = true
	}
	out := make([]int, 0, len(expanded))
	for s := range expanded {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

func deviation(b, o, s int) float64 {
	d := ((b-o)%s + s) % s
	dev := float64(d)
	if float64(s)-dev < dev {
		dev = float64(s) - dev
	}
	return dev
}

func scoreCandidate(boundaries []int, s int, freq map[int]int, expectedMin, expectedMax, stripLen int) (offset int, score float64) {
	bestOffset := 0
	bestMedian := math.MaxFloat64
	buf := make([]float64, len(boundaries))
	for o := 0; o < s; o++ {
		for i, b := range boundaries {
			buf[i] = deviation(b, o, s)
		}
		cp := append([]float64{}, buf...)
		median := stats.Median(cp)
		if median < bestMedian {
			bestMedian = median
			bestOffset = o
		}
	}

	for i, b := range boundaries {
		buf[i] = deviation(b, bestOffset, s)
	}
	median := stats.Median(append([]float64{}, buf...))
	p90 := stats.Percentile(append([]float64{}, buf...), 90)

	derivedCells := int(math.Round(float64(stripLen) / float64(s)))
	penalty := 0.0
	if derivedCells < expectedMin {
		penalty = float64(expectedMin-derivedCells) * 0.5
	} else if derivedCells > expectedMax {
		penalty = float64(derivedCells-expectedMax) * 0.5
	}
	bonus := -0.25 * math.Log(1+float64(freq[s]))

	return bestOffset, median + 0.35*p90 + penalty + bonus
}

type sizeCandidate struct {
	size, offset int
	score        float64
}

// chooseCandidate picks the winner from results, which must already be
// sorted by ascending score. With no target cell count, it prefers the
// largest size within 0.35 of the single best score (results[0]), not
// within 0.35 of whichever candidate currently leads the scan - chaining
// off a moving threshold would let a run of close-but-drifting scores
// walk arbitrarily far from the true best.
func chooseCandidate(results []sizeCandidate, hasTarget bool) sizeCandidate {
	best := results[0]
	if hasTarget {
		return best
	}
	minScore := results[0].score
	for _, r := range results {
		if r.score <= minScore+0.35 && r.size > best.size {
			best = r
		}
	}
	return best
}

func pickBest(boundaries []int, sizes []int, freq map[int]int, expectedMin, expectedMax, stripLen int, hasTarget bool) (size, offset int, score float64, ok bool) {
	if len(sizes) == 0 {
		return 0, 0, 0, false
	}
	results := make([]sizeCandidate, 0, len(sizes))
	for _, s := range sizes {
		o, sc := scoreCandidate(boundaries, s, freq, expectedMin, expectedMax, stripLen)
		results = append(results, sizeCandidate{s, o, sc})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].score < results[j].score })
	best := chooseCandidate(results, hasTarget)
	return best.size, best.offset, best.score, true
}

func detectOneAxis(original, posterized *bitmap.Bitmap, bg map[uint32]bool, axis bitmap.Axis, numPositions, stripLen, stripsWanted, alphaThreshold, expectedMin, expectedMax int, hasTarget bool) (size, offset int, score float64, ok bool) {
	positions := selectStrips(original, posterized, bg, axis, numPositions, stripLen, stripsWanted, alphaThreshold)

	allSegments := make([][]Segment, 0, len(positions))
	for _, p := range positions {
		allSegments = append(allSegments, extractRuns(posterized, original, axis, p, stripLen, alphaThreshold))
	}
	lengths, boundaries, freq := gatherRunStats(allSegments)
	// A run start at the strip origin carries no periodicity information;
	// with no other boundary (e.g. a uniform image) no cell size can be
	// derived.
	informative := false
	for _, b := range boundaries {
		if b > 0 {
			informative = true
			break
		}
	}
	if !informative {
		return 0, 0, 0, false
	}

	sizes := candidateSizes(lengths, stripLen, expectedMin, expectedMax)
	size, offset, score, ok = pickBest(boundaries, sizes, freq, expectedMin, expectedMax, stripLen, hasTarget)
	if !ok {
		return
	}

	derivedCells := int(math.Round(float64(stripLen) / float64(size)))
	if derivedCells > 96 {
		lo, hi := expectedMin, 64
		if hasTarget && expectedMax < hi {
			hi = expectedMax
		}
		sizes2 := candidateSizes(lengths, stripLen, lo, hi)
		if size2, offset2, score2, ok2 := pickBest(boundaries, sizes2, freq, lo, hi, stripLen, hasTarget); ok2 {
			size, offset, score = size2, offset2, score2
		}
	}
	return size, offset, score, true
}
