package zhvi

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `RegionID,RegionName,State,City,2024-06-30,2024-07-31,2025-06-30
1,10001,NY,New York,580000,585000,650000
2,501,NY,Holtsville,200000,201000,210000
3,94105,CA,San Francisco,,,1250000
4,60601,IL,Chicago,400000,402000,
5,30301,GA,Atlanta,5000,5100,5200
`

func loadSample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := Load(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	return ds
}

func TestLoadDates(t *testing.T) {
	ds := loadSample(t)

	assert.Equal(t, "2025-06-30", ds.LatestDate().Format("2006-01-02"))
	// Same month, previous year.
	assert.Equal(t, "2024-06-30", ds.YearAgoDate().Format("2006-01-02"))
}

func TestLoadPriceLevel(t *testing.T) {
	ds := loadSample(t)

	v, ok := ds.Value("10001", MetricPriceLevel)
	require.True(t, ok)
	assert.InDelta(t, 650000, v, 0.001)

	// RegionName "501" is zero-padded to five digits.
	v, ok = ds.Value("00501", MetricPriceLevel)
	require.True(t, ok)
	assert.InDelta(t, 210000, v, 0.001)

	// Empty latest column is missing, not zero.
	_, ok = ds.Value("60601", MetricPriceLevel)
	assert.False(t, ok)

	// Below the price level floor: excluded as an outlier.
	_, ok = ds.Value("30301", MetricPriceLevel)
	assert.False(t, ok)
}

func TestLoadYoYChange(t *testing.T) {
	ds := loadSample(t)

	v, ok := ds.Value("10001", MetricYoYChange)
	require.True(t, ok)
	assert.InDelta(t, (650000.0-580000.0)/580000.0*100, v, 0.001)

	// No year-ago value for 94105: yoy missing, price level still present.
	_, ok = ds.Value("94105", MetricYoYChange)
	assert.False(t, ok)
	_, ok = ds.Value("94105", MetricPriceLevel)
	assert.True(t, ok)
}

func TestLoadYearAgoClosestMonth(t *testing.T) {
	// No June 2024 column; April 2024 is the closest match in the prior year.
	csv := `RegionName,State,City,2024-04-30,2025-06-30
10001,NY,New York,600000,660000
`
	ds, err := Load(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, "2024-04-30", ds.YearAgoDate().Format("2006-01-02"))

	v, ok := ds.Value("10001", MetricYoYChange)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 0.001)
}

func TestLoadNoYearAgo(t *testing.T) {
	csv := `RegionName,State,City,2025-05-31,2025-06-30
10001,NY,New York,640000,650000
`
	ds, err := Load(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.True(t, ds.YearAgoDate().IsZero())
	_, ok := ds.Value("10001", MetricYoYChange)
	assert.False(t, ok)
}

func TestLoadYoYOutlierFiltered(t *testing.T) {
	// 150% appreciation is outside the [-50, 100] band.
	csv := `RegionName,State,City,2024-06-30,2025-06-30
10001,NY,New York,200000,500000
`
	ds, err := Load(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	_, ok := ds.Value("10001", MetricYoYChange)
	assert.False(t, ok)
}

func TestLoadMissingRegionName(t *testing.T) {
	csv := `RegionID,State,2025-06-30
1,NY,650000
`
	_, err := Load(context.Background(), strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RegionName")
}

func TestLoadNoDateColumns(t *testing.T) {
	csv := `RegionName,State,City
10001,NY,New York
`
	_, err := Load(context.Background(), strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no date columns")
}

func TestLoadNoRows(t *testing.T) {
	csv := "RegionName,State,City,2025-06-30\n"
	_, err := Load(context.Background(), strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestPlace(t *testing.T) {
	ds := loadSample(t)

	p, ok := ds.Place("10001")
	require.True(t, ok)
	assert.Equal(t, "New York", p.City)
	assert.Equal(t, "NY", p.State)
}

func TestLatestHeaderDate(t *testing.T) {
	d, err := LatestHeaderDate("RegionName,State,City,2024-06-30,2025-06-30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), d)

	_, err = LatestHeaderDate("RegionName,State,City")
	require.Error(t, err)
}

func TestMetricKindValid(t *testing.T) {
	assert.True(t, MetricPriceLevel.Valid())
	assert.True(t, MetricYoYChange.Valid())
	assert.False(t, MetricKind("momentum").Valid())
}
