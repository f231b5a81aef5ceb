// Package bucket partitions per-ZIP metric values into ordered color
// buckets, choosing between quantile and equal-width strategies based on
// sample size.
package bucket

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Strategy identifies how bucket boundaries were computed.
type Strategy string

const (
	StrategyQuantile   Strategy = "quantile"
	StrategyEqualWidth Strategy = "equal_width"
)

// smallSampleThreshold is the sample size below which quantile cut points
// stop being meaningful and the engine falls back to equal-width buckets.
const smallSampleThreshold = 5

// ZipValue pairs a ZIP code with its metric value.
type ZipValue struct {
	Zip   string  `json:"zip"`
	Value float64 `json:"value"`
}

// Bucket is one ordered value interval. Bounds are informational (legend
// labels). Under the quantile strategy membership is decided by rank, not
// by re-testing bounds, so a value equal to a shared boundary belongs to
// the lower bucket. Under equal-width, membership is by interval and a
// value on an interior boundary goes to the upper bucket.
type Bucket struct {
	Index int     `json:"index"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Color string  `json:"color"`
}

// Result is a full bucketing pass: ordered buckets and the ZIP → bucket
// index assignment.
type Result struct {
	Buckets     []Bucket       `json:"buckets"`
	Assignments map[string]int `json:"assignments"`
	Strategy    Strategy       `json:"strategy"`
	SmallSample bool           `json:"small_sample"`
}

// Compute partitions values into k buckets.
//
// One distinct value across the sample, at any size: a single bucket
// spanning it. Fewer than 5 ZIPs: equal-width intervals over [min, max]
// with the small-sample flag set. Otherwise: quantile buckets of
// as-equal-as-possible size; sorted rank i goes to bucket i*k/n, so
// sizes differ by at most one and ties may split across buckets.
// Sorting breaks value ties by ZIP, making assignment fully
// deterministic.
//
// An empty input yields an empty Result, not an error.
func Compute(values []ZipValue, k int, palette Palette) (Result, error) {
	if k < 1 {
		return Result{}, eris.Errorf("bucket: count %d must be at least 1", k)
	}

	n := len(values)
	if n == 0 {
		return Result{Assignments: map[string]int{}}, nil
	}

	sorted := make([]ZipValue, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value < sorted[j].Value
		}
		return sorted[i].Zip < sorted[j].Zip
	})

	if sorted[0].Value == sorted[n-1].Value {
		return singleBucket(sorted, palette, n < smallSampleThreshold), nil
	}
	if n < smallSampleThreshold {
		return equalWidth(sorted, k, palette), nil
	}
	return quantile(sorted, k, palette), nil
}

// singleBucket handles the one-distinct-value degenerate case: rank or
// interval splitting would color identical values differently, so every
// ZIP lands in one bucket spanning the value, whatever k.
func singleBucket(sorted []ZipValue, palette Palette, smallSample bool) Result {
	v := sorted[0].Value
	strategy := StrategyQuantile
	if smallSample {
		strategy = StrategyEqualWidth
	}
	res := Result{
		Buckets:     []Bucket{{Index: 0, Lower: v, Upper: v, Color: palette.Color(0, 1)}},
		Assignments: make(map[string]int, len(sorted)),
		Strategy:    strategy,
		SmallSample: smallSample,
	}
	for _, zv := range sorted {
		res.Assignments[zv.Zip] = 0
	}
	return res
}

func equalWidth(sorted []ZipValue, k int, palette Palette) Result {
	lo := sorted[0].Value
	hi := sorted[len(sorted)-1].Value
	width := (hi - lo) / float64(k)
	buckets := make([]Bucket, k)
	for i := range k {
		buckets[i] = Bucket{
			Index: i,
			Lower: lo + width*float64(i),
			Upper: lo + width*float64(i+1),
			Color: palette.Color(i, k),
		}
	}
	buckets[k-1].Upper = hi // avoid float drift on the top edge

	assignments := make(map[string]int, len(sorted))
	for _, v := range sorted {
		idx := int((v.Value - lo) / width)
		if idx >= k {
			idx = k - 1
		}
		assignments[v.Zip] = idx
	}

	return Result{
		Buckets:     buckets,
		Assignments: assignments,
		Strategy:    StrategyEqualWidth,
		SmallSample: true,
	}
}

func quantile(sorted []ZipValue, k int, palette Palette) Result {
	n := len(sorted)

	buckets := make([]Bucket, k)
	for i := range k {
		buckets[i] = Bucket{
			Index: i,
			Lower: interpolate(sorted, float64(i)/float64(k)),
			Upper: interpolate(sorted, float64(i+1)/float64(k)),
			Color: palette.Color(i, k),
		}
	}

	assignments := make(map[string]int, n)
	for rank, v := range sorted {
		assignments[v.Zip] = rank * k / n
	}

	return Result{
		Buckets:     buckets,
		Assignments: assignments,
		Strategy:    StrategyQuantile,
	}
}

// interpolate returns the p-quantile of the sorted sample using linear
// interpolation between adjacent order statistics.
func interpolate(sorted []ZipValue, p float64) float64 {
	n := len(sorted)
	h := p * float64(n-1)
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if hi >= n {
		hi = n - 1
	}
	if lo == hi {
		return sorted[lo].Value
	}
	frac := h - float64(lo)
	return sorted[lo].Value + frac*(sorted[hi].Value-sorted[lo].Value)
}
