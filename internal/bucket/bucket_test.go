package bucket

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeQuintilesOnePerBucket(t *testing.T) {
	values := []ZipValue{
		{Zip: "A", Value: 100},
		{Zip: "B", Value: 200},
		{Zip: "C", Value: 300},
		{Zip: "D", Value: 400},
		{Zip: "E", Value: 500},
	}

	res, err := Compute(values, 5, DefaultPalette())
	require.NoError(t, err)

	assert.Equal(t, StrategyQuantile, res.Strategy)
	assert.False(t, res.SmallSample)
	require.Len(t, res.Buckets, 5)

	// One ZIP per bucket, in value order.
	assert.Equal(t, 0, res.Assignments["A"])
	assert.Equal(t, 1, res.Assignments["B"])
	assert.Equal(t, 2, res.Assignments["C"])
	assert.Equal(t, 3, res.Assignments["D"])
	assert.Equal(t, 4, res.Assignments["E"])

	// Bounds ascend and cover the full range.
	assert.InDelta(t, 100, res.Buckets[0].Lower, 0.001)
	assert.InDelta(t, 500, res.Buckets[4].Upper, 0.001)
	for i := 1; i < 5; i++ {
		assert.Greater(t, res.Buckets[i].Lower, res.Buckets[i-1].Lower)
		assert.InDelta(t, res.Buckets[i-1].Upper, res.Buckets[i].Lower, 1e-9)
	}
}

func TestComputeEqualWidthFallback(t *testing.T) {
	values := []ZipValue{
		{Zip: "A", Value: 100},
		{Zip: "B", Value: 150},
	}

	res, err := Compute(values, 5, DefaultPalette())
	require.NoError(t, err)

	assert.Equal(t, StrategyEqualWidth, res.Strategy)
	assert.True(t, res.SmallSample)
	require.Len(t, res.Buckets, 5)

	// [100, 150] split into 5 intervals of width 10.
	for i, b := range res.Buckets {
		assert.InDelta(t, 100+float64(i)*10, b.Lower, 1e-9)
		assert.InDelta(t, 100+float64(i+1)*10, b.Upper, 1e-9)
	}

	assert.Equal(t, 0, res.Assignments["A"])
	assert.Equal(t, 4, res.Assignments["B"])
}

func TestComputeSingleValue(t *testing.T) {
	res, err := Compute([]ZipValue{{Zip: "A", Value: 300}}, 5, DefaultPalette())
	require.NoError(t, err)

	assert.True(t, res.SmallSample)
	require.Len(t, res.Buckets, 1)
	assert.InDelta(t, 300, res.Buckets[0].Lower, 1e-9)
	assert.InDelta(t, 300, res.Buckets[0].Upper, 1e-9)
	assert.Equal(t, 0, res.Assignments["A"])
}

func TestComputeIdenticalValuesSmallSample(t *testing.T) {
	values := []ZipValue{
		{Zip: "A", Value: 42},
		{Zip: "B", Value: 42},
		{Zip: "C", Value: 42},
	}
	res, err := Compute(values, 5, DefaultPalette())
	require.NoError(t, err)

	require.Len(t, res.Buckets, 1)
	assert.True(t, res.SmallSample)
	for _, zip := range []string{"A", "B", "C"} {
		assert.Equal(t, 0, res.Assignments[zip])
	}
}

func TestComputeEmpty(t *testing.T) {
	res, err := Compute(nil, 5, DefaultPalette())
	require.NoError(t, err)

	assert.Empty(t, res.Buckets)
	assert.NotNil(t, res.Assignments)
	assert.Empty(t, res.Assignments)
}

func TestComputeBadBucketCount(t *testing.T) {
	_, err := Compute([]ZipValue{{Zip: "A", Value: 1}}, 0, DefaultPalette())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1")
}

func TestComputeBalancedSizes(t *testing.T) {
	for _, n := range []int{5, 7, 23, 100, 1003} {
		values := make([]ZipValue, n)
		for i := range n {
			values[i] = ZipValue{Zip: fmt.Sprintf("%05d", i), Value: rand.Float64() * 1000}
		}

		res, err := Compute(values, 5, DefaultPalette())
		require.NoError(t, err)
		assert.Equal(t, StrategyQuantile, res.Strategy)

		sizes := make([]int, 5)
		for _, idx := range res.Assignments {
			sizes[idx]++
		}
		minSize, maxSize := sizes[0], sizes[0]
		for _, s := range sizes {
			if s < minSize {
				minSize = s
			}
			if s > maxSize {
				maxSize = s
			}
		}
		assert.LessOrEqual(t, maxSize-minSize, 1, "n=%d sizes=%v", n, sizes)
		assert.Equal(t, n, sizes[0]+sizes[1]+sizes[2]+sizes[3]+sizes[4])
	}
}

func TestComputeTiesSplitForBalance(t *testing.T) {
	// Eight tied values plus two larger ones into five buckets: balance
	// wins over tie cohesion, so the tied run spans buckets 0 through 3.
	values := make([]ZipValue, 10)
	for i := range 8 {
		values[i] = ZipValue{Zip: fmt.Sprintf("Z%02d", i), Value: 7.5}
	}
	values[8] = ZipValue{Zip: "Z08", Value: 9}
	values[9] = ZipValue{Zip: "Z09", Value: 9}

	res, err := Compute(values, 5, DefaultPalette())
	require.NoError(t, err)

	sizes := make([]int, 5)
	for _, idx := range res.Assignments {
		sizes[idx]++
	}
	for _, s := range sizes {
		assert.Equal(t, 2, s)
	}
	assert.Equal(t, 4, res.Assignments["Z08"])
	assert.Equal(t, 4, res.Assignments["Z09"])
	assert.Equal(t, 0, res.Assignments["Z00"])
	assert.Equal(t, 3, res.Assignments["Z07"])
}

func TestComputeIdenticalValuesLargeSample(t *testing.T) {
	// One distinct value collapses to a single bucket even above the
	// small-sample threshold; splitting would color equal ZIPs differently.
	values := make([]ZipValue, 10)
	for i := range 10 {
		values[i] = ZipValue{Zip: fmt.Sprintf("Z%02d", i), Value: 300}
	}

	res, err := Compute(values, 5, DefaultPalette())
	require.NoError(t, err)

	require.Len(t, res.Buckets, 1)
	assert.InDelta(t, 300, res.Buckets[0].Lower, 1e-9)
	assert.InDelta(t, 300, res.Buckets[0].Upper, 1e-9)
	assert.Equal(t, StrategyQuantile, res.Strategy)
	assert.False(t, res.SmallSample)
	for zip, idx := range res.Assignments {
		assert.Equal(t, 0, idx, zip)
	}
}

func TestComputeDeterministic(t *testing.T) {
	values := make([]ZipValue, 200)
	for i := range 200 {
		values[i] = ZipValue{Zip: fmt.Sprintf("%05d", i), Value: float64((i * 7919) % 100)}
	}

	first, err := Compute(values, 5, DefaultPalette())
	require.NoError(t, err)

	// Shuffled input must not change assignments or bounds.
	for range 5 {
		rand.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
		again, err := Compute(values, 5, DefaultPalette())
		require.NoError(t, err)
		assert.Equal(t, first.Buckets, again.Buckets)
		assert.Equal(t, first.Assignments, again.Assignments)
	}
}

func TestComputeEveryZipAssignedOnce(t *testing.T) {
	values := make([]ZipValue, 137)
	for i := range 137 {
		values[i] = ZipValue{Zip: fmt.Sprintf("%05d", i), Value: rand.NormFloat64() * 50}
	}

	res, err := Compute(values, 5, DefaultPalette())
	require.NoError(t, err)

	assert.Len(t, res.Assignments, 137)
	for zip, idx := range res.Assignments {
		assert.GreaterOrEqual(t, idx, 0, zip)
		assert.Less(t, idx, 5, zip)
	}
}

func TestPaletteColor(t *testing.T) {
	p := DefaultPalette()

	assert.Equal(t, "#000000", p.Color(0, 5))
	assert.Equal(t, "#999999", p.Color(1, 5))
	assert.Equal(t, "#C6DCCB", p.Color(2, 5))
	assert.Equal(t, "#99ccff", p.Color(3, 5))
	assert.Equal(t, "#0bb4ff", p.Color(4, 5))

	// Endpoints hold for other bucket counts.
	assert.Equal(t, "#000000", p.Color(0, 3))
	assert.Equal(t, "#0bb4ff", p.Color(2, 3))
}

func TestLoadPalette(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.yaml")
	yaml := `
colors: ["#111111", "#222222", "#333333"]
no_data: "#f0f0f0"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	p, err := LoadPalette(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"#111111", "#222222", "#333333"}, p.Colors)
	assert.Equal(t, "#f0f0f0", p.NoData)
}

func TestLoadPalettePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`no_data: "#ffffff"`), 0644))

	p, err := LoadPalette(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPalette().Colors, p.Colors)
	assert.Equal(t, "#ffffff", p.NoData)
}

func TestLoadPaletteMissingFile(t *testing.T) {
	_, err := LoadPalette(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
