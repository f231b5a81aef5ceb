// Package refdata loads the static per-ZIP reference data: population,
// place names, centroids, and optional simplified boundary geometry.
// The store is built once at startup and immutable thereafter.
package refdata

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DetailTier selects the boundary simplification level of the source
// cartographic boundary file.
type DetailTier string

const (
	Tier500k DetailTier = "500k" // 1:500,000 scale
	Tier20m  DetailTier = "20m"  // 1:20,000,000 scale
)

// ZipRecord is the immutable reference record for one ZIP code.
type ZipRecord struct {
	Zip        string
	Lat        float64
	Lon        float64
	Population int
	Name       string
	// Boundary holds simplified outer rings as [lon, lat] pairs.
	// Nil when boundaries were not requested at load time.
	Boundary [][][2]float64
}

// defaultPopulation is assumed when the population table has no usable
// entry for a ZIP, matching the upstream convention.
const defaultPopulation = 1000

// Store is the immutable ZIP reference data set, keyed by ZIP code.
type Store struct {
	records map[string]ZipRecord
	sorted  []string
}

// NewStore merges shapefile-derived geometry with the population table.
// Every ZIP present in the shapefile gets a record; population and name
// default when the table has no entry.
func NewStore(shapes []ShapeRecord, pops map[string]PopEntry) (*Store, error) {
	if len(shapes) == 0 {
		return nil, eris.New("refdata: no shape records")
	}

	records := make(map[string]ZipRecord, len(shapes))
	var defaulted int
	for _, s := range shapes {
		rec := ZipRecord{
			Zip:        s.Zip,
			Lat:        s.Lat,
			Lon:        s.Lon,
			Population: defaultPopulation,
			Boundary:   s.Rings,
		}
		if p, ok := pops[s.Zip]; ok {
			rec.Name = p.Name
			if p.Population > 0 {
				rec.Population = p.Population
			}
		} else {
			defaulted++
		}
		records[s.Zip] = rec
	}

	sorted := make([]string, 0, len(records))
	for zip := range records {
		sorted = append(sorted, zip)
	}
	sort.Strings(sorted)

	if defaulted > 0 {
		zap.L().Debug("refdata: zips without population entry",
			zap.Int("count", defaulted),
		)
	}

	return &Store{records: records, sorted: sorted}, nil
}

// Record returns the reference record for a ZIP code.
func (s *Store) Record(zip string) (ZipRecord, bool) {
	r, ok := s.records[zip]
	return r, ok
}

// Records returns all records ordered by ZIP code.
func (s *Store) Records() []ZipRecord {
	out := make([]ZipRecord, 0, len(s.sorted))
	for _, zip := range s.sorted {
		out = append(out, s.records[zip])
	}
	return out
}

// Len returns the number of ZIP records.
func (s *Store) Len() int {
	return len(s.records)
}
