package render

import "math"

// MaxBins caps the number of bars drawn in one histogram. Larger counts
// are accepted as input and drawn with MaxBins bars.
const MaxBins = 200

// Bin is one histogram bucket covering [Lo, Hi). The last bin of a
// histogram is closed on both ends.
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Bins splits values into n equal-width bins spanning [min, max].
// Empty input, or input whose range is not finite, yields no bins. When
// every value is the same, a single unit-wide bin centred on that value is
// returned regardless of n. n is clamped to [1, MaxBins].
func Bins(values []float64, n int) []Bin {
	if len(values) == 0 {
		return nil
	}
	n = min(max(n, 1), MaxBins)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if span := hi - lo; math.IsNaN(span) || math.IsInf(span, 0) {
		return nil
	}
	if lo == hi {
		return []Bin{{Lo: lo - 0.5, Hi: hi + 0.5, Count: len(values)}}
	}

	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[n-1].Hi = hi

	for _, v := range values {
		i := int((v - lo) / width)
		i = min(max(i, 0), n-1)
		bins[i].Count++
	}
	return bins
}

// maxCount returns the largest bin count.
func maxCount(bins []Bin) int {
	m := 0
	for _, b := range bins {
		if b.Count > m {
			m = b.Count
		}
	}
	return m
}
