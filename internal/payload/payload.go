// Package payload assembles the compact per-ZIP document embedded in
// rendered map pages. Field names are short on purpose: the document is
// inlined into every HTML file and dominates its size.
package payload

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/home-economics/pricemaps/internal/bucket"
	"github.com/home-economics/pricemaps/internal/refdata"
	"github.com/home-economics/pricemaps/internal/zhvi"
)

// Point is one ZIP marker. Price and Change are pointers so a missing
// metric is omitted rather than rendered as zero.
type Point struct {
	Zip        string   `json:"z"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Price      *float64 `json:"p,omitempty"`
	Change     *float64 `json:"c,omitempty"`
	Radius     float64  `json:"r"`
	Population int      `json:"pop"`
	Name       string   `json:"n"`
}

// Document is the full embedded payload: dataset dates, the global
// bucket set per metric, and one point per ZIP with a price level.
type Document struct {
	DatasetDate string                           `json:"dataset_date"`
	YearAgoDate string                           `json:"year_ago_date,omitempty"`
	GeneratedAt string                           `json:"generated_at"`
	Buckets     map[zhvi.MetricKind]bucket.Result `json:"buckets"`
	NoDataColor string                           `json:"no_data_color"`
	Points      []Point                          `json:"points"`
}

const dateLayout = "2006-01-02"

// Build assembles the document from the loaded dataset and reference
// store. Every ZIP with a price level and a known centroid gets a point;
// ZIPs absent from the reference store are skipped. Global buckets are
// computed once per metric over the full universe.
func Build(ds *zhvi.Dataset, ref *refdata.Store, k int, palette bucket.Palette) (*Document, error) {
	doc := &Document{
		DatasetDate: ds.LatestDate().Format(dateLayout),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Buckets:     make(map[zhvi.MetricKind]bucket.Result, len(zhvi.Metrics)),
		NoDataColor: palette.NoData,
	}
	if !ds.YearAgoDate().IsZero() {
		doc.YearAgoDate = ds.YearAgoDate().Format(dateLayout)
	}

	for _, zip := range ds.Zips() {
		rec, ok := ref.Record(zip)
		if !ok {
			continue
		}

		pt := Point{
			Zip:        zip,
			Lat:        round(rec.Lat, 3),
			Lon:        round(rec.Lon, 3),
			Radius:     radiusFor(rec.Population),
			Population: rec.Population,
			Name:       displayName(rec, ds, zip),
		}
		if v, ok := ds.Value(zip, zhvi.MetricPriceLevel); ok {
			r := round(v, 1)
			pt.Price = &r
		}
		if v, ok := ds.Value(zip, zhvi.MetricYoYChange); ok {
			r := round(v, 1)
			pt.Change = &r
		}
		doc.Points = append(doc.Points, pt)
	}

	if len(doc.Points) == 0 {
		return nil, eris.New("payload: no zips with both metric data and reference geometry")
	}

	// Largest populations first so big markers draw under small ones.
	sort.SliceStable(doc.Points, func(i, j int) bool {
		if doc.Points[i].Population != doc.Points[j].Population {
			return doc.Points[i].Population > doc.Points[j].Population
		}
		return doc.Points[i].Zip < doc.Points[j].Zip
	})

	for _, kind := range zhvi.Metrics {
		values := make([]bucket.ZipValue, 0, len(doc.Points))
		for _, pt := range doc.Points {
			if v, ok := ds.Value(pt.Zip, kind); ok {
				values = append(values, bucket.ZipValue{Zip: pt.Zip, Value: v})
			}
		}
		res, err := bucket.Compute(values, k, palette)
		if err != nil {
			return nil, eris.Wrapf(err, "payload: bucket %s", kind)
		}
		doc.Buckets[kind] = res
	}

	return doc, nil
}

// radiusFor maps population to a marker radius tier.
func radiusFor(pop int) float64 {
	switch {
	case pop <= 0:
		return 1
	case pop < 5_000:
		return 3
	case pop < 20_000:
		return 4
	case pop < 50_000:
		return 6
	case pop < 100_000:
		return 10
	case pop < 500_000:
		return 16
	default:
		return 25
	}
}

// displayName prefers the dataset's "City, ST" attribution, falling back
// to the reference place name, with the gazetteer artifacts cleaned up.
func displayName(rec refdata.ZipRecord, ds *zhvi.Dataset, zip string) string {
	name := rec.Name
	if p, ok := ds.Place(zip); ok && p.City != "" {
		name = p.City
		if p.State != "" {
			name += ", " + p.State
		}
	}
	if name == "" {
		name = "ZIP " + zip
	}
	if rest, ok := strings.CutPrefix(name, "zip code "); ok {
		name = "ZIP " + rest
	}
	return strings.ReplaceAll(name, ", United States", "")
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
