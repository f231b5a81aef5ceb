// Package zhvi parses the Zillow Home Value Index ZIP-level dataset and
// exposes per-ZIP metric values derived from its latest snapshot.
package zhvi

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/home-economics/pricemaps/internal/fetcher"
)

// MetricKind identifies a derived per-ZIP metric.
type MetricKind string

const (
	MetricPriceLevel MetricKind = "price_level"
	MetricYoYChange  MetricKind = "yoy_change"
)

// Metrics lists all supported metric kinds in render order.
var Metrics = []MetricKind{MetricPriceLevel, MetricYoYChange}

// Valid reports whether the metric kind is one of the supported variants.
func (m MetricKind) Valid() bool {
	return m == MetricPriceLevel || m == MetricYoYChange
}

// Outlier filters applied to derived values. Values outside these ranges
// are treated as missing rather than rendered.
const (
	minPriceLevel = 10_000
	maxPriceLevel = 10_000_000
	minYoYChange  = -50
	maxYoYChange  = 100
)

const dateLayout = "2006-01-02"

// Place holds the city/state attribution carried on each dataset row.
type Place struct {
	City  string
	State string
}

// Dataset holds the latest metric snapshot for all ZIP codes.
// Immutable after Load.
type Dataset struct {
	latestDate  time.Time
	yearAgoDate time.Time
	values      map[MetricKind]map[string]float64
	places      map[string]Place
	zips        []string
}

// Load parses the wide ZHVI CSV: identifier columns followed by one column
// per monthly snapshot date. The last date column is the current snapshot;
// the year-ago column is matched by month in the previous year, falling
// back to the closest month within that year.
func Load(ctx context.Context, r io.Reader) (*Dataset, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	select {
	case header = <-headerCh:
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
		return nil, eris.New("zhvi: empty dataset")
	}

	cols, err := indexHeader(header)
	if err != nil {
		// Drain so the stream goroutine can exit.
		for range rowCh {
		}
		<-errCh
		return nil, err
	}

	ds := &Dataset{
		latestDate:  cols.dates[len(cols.dates)-1].date,
		yearAgoDate: time.Time{},
		values: map[MetricKind]map[string]float64{
			MetricPriceLevel: make(map[string]float64),
			MetricYoYChange:  make(map[string]float64),
		},
		places: make(map[string]Place),
	}

	latestIdx := cols.dates[len(cols.dates)-1].index
	agoIdx := -1
	if ago, ok := yearAgoColumn(cols.dates); ok {
		ds.yearAgoDate = ago.date
		agoIdx = ago.index
	}

	var rows, skipped int
	for row := range rowCh {
		rows++
		zip := padZip(field(row, cols.region))
		if zip == "" {
			skipped++
			continue
		}

		ds.places[zip] = Place{
			City:  field(row, cols.city),
			State: field(row, cols.state),
		}

		latest, okLatest := parseValue(field(row, latestIdx))
		if okLatest && latest >= minPriceLevel && latest <= maxPriceLevel {
			ds.values[MetricPriceLevel][zip] = latest
			ds.zips = append(ds.zips, zip)
		} else {
			okLatest = false
			skipped++
		}

		if agoIdx < 0 || !okLatest {
			continue
		}
		ago, okAgo := parseValue(field(row, agoIdx))
		if !okAgo || ago == 0 {
			continue
		}
		pct := (latest - ago) / ago * 100
		if pct >= minYoYChange && pct <= maxYoYChange {
			ds.values[MetricYoYChange][zip] = pct
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, eris.New("zhvi: dataset has no data rows")
	}

	zap.L().Info("zhvi dataset loaded",
		zap.String("latest", ds.latestDate.Format(dateLayout)),
		zap.String("year_ago", ds.yearAgoDate.Format(dateLayout)),
		zap.Int("zips", len(ds.values[MetricPriceLevel])),
		zap.Int("skipped", skipped),
	)

	return ds, nil
}

// Value returns the metric value for a ZIP, or false if missing.
func (d *Dataset) Value(zip string, kind MetricKind) (float64, bool) {
	vals, ok := d.values[kind]
	if !ok {
		return 0, false
	}
	v, ok := vals[zip]
	return v, ok
}

// Zips returns all ZIP codes that carry a price level value, in file order.
func (d *Dataset) Zips() []string {
	return d.zips
}

// Place returns the city/state attribution for a ZIP.
func (d *Dataset) Place(zip string) (Place, bool) {
	p, ok := d.places[zip]
	return p, ok
}

// LatestDate returns the date of the current snapshot column.
func (d *Dataset) LatestDate() time.Time {
	return d.latestDate
}

// YearAgoDate returns the date of the matched year-ago column, zero if none.
func (d *Dataset) YearAgoDate() time.Time {
	return d.yearAgoDate
}

// LatestHeaderDate extracts the last date column from a raw CSV header line.
// Used by the update checker, which fetches only the header row.
func LatestHeaderDate(headerLine string) (time.Time, error) {
	cols := strings.Split(headerLine, ",")
	for i := len(cols) - 1; i >= 0; i-- {
		col := strings.TrimSpace(strings.Trim(cols[i], `"`))
		if d, err := time.Parse(dateLayout, col); err == nil {
			return d, nil
		}
	}
	return time.Time{}, eris.New("zhvi: no date column in header")
}

type dateColumn struct {
	index int
	date  time.Time
}

type headerIndex struct {
	region, state, city int
	dates               []dateColumn
}

func indexHeader(header []string) (headerIndex, error) {
	idx := headerIndex{region: -1, state: -1, city: -1}
	for i, col := range header {
		switch strings.ToLower(col) {
		case "regionname":
			idx.region = i
		case "state":
			idx.state = i
		case "city":
			idx.city = i
		default:
			if d, err := time.Parse(dateLayout, col); err == nil {
				idx.dates = append(idx.dates, dateColumn{index: i, date: d})
			}
		}
	}
	if idx.region < 0 {
		return idx, eris.New("zhvi: RegionName column not found")
	}
	if len(idx.dates) == 0 {
		return idx, eris.New("zhvi: no date columns found")
	}
	return idx, nil
}

// yearAgoColumn finds the column for the same month one year before the
// latest column, or the closest month within that year.
func yearAgoColumn(dates []dateColumn) (dateColumn, bool) {
	latest := dates[len(dates)-1].date
	targetYear := latest.Year() - 1
	targetMonth := latest.Month()

	best := dateColumn{index: -1}
	bestDelta := 13
	for _, dc := range dates {
		if dc.date.Year() != targetYear {
			continue
		}
		delta := int(dc.date.Month()) - int(targetMonth)
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			best = dc
			bestDelta = delta
		}
	}
	return best, best.index >= 0
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseValue(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func padZip(s string) string {
	if s == "" {
		return ""
	}
	for len(s) < 5 {
		s = "0" + s
	}
	return s
}
