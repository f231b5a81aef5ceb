// Package view recomputes the active map frame from an immutable view
// state: select ZIPs by predicate, then bucket their metric values. One
// frame per user event; no state is shared between passes.
package view

import (
	"github.com/rotisserie/eris"

	"github.com/home-economics/pricemaps/internal/bucket"
	"github.com/home-economics/pricemaps/internal/refdata"
	"github.com/home-economics/pricemaps/internal/spatial"
	"github.com/home-economics/pricemaps/internal/zhvi"
)

// State is the full input to a recompute pass. Values are replaced
// wholesale on each user event, never mutated.
type State struct {
	Metric    zhvi.MetricKind
	Predicate spatial.Predicate
}

// Frame is the output of one recompute pass.
type Frame struct {
	Metric      zhvi.MetricKind `json:"metric"`
	Buckets     bucket.Result   `json:"buckets"`
	Selected    int             `json:"selected"`
	NoData      []string        `json:"no_data,omitempty"`
	SmallSample bool            `json:"small_sample"`
}

// Engine recomputes frames against immutable loaded data.
type Engine struct {
	dataset   *zhvi.Dataset
	centroids []spatial.Centroid
	k         int
	palette   bucket.Palette
}

// NewEngine builds an engine over the loaded dataset and reference store.
func NewEngine(ds *zhvi.Dataset, ref *refdata.Store, k int, palette bucket.Palette) (*Engine, error) {
	if k < 1 {
		return nil, eris.Errorf("view: bucket count %d must be at least 1", k)
	}

	records := ref.Records()
	centroids := make([]spatial.Centroid, 0, len(records))
	for _, r := range records {
		centroids = append(centroids, spatial.Centroid{Zip: r.Zip, Lat: r.Lat, Lon: r.Lon})
	}

	return &Engine{
		dataset:   ds,
		centroids: centroids,
		k:         k,
		palette:   palette,
	}, nil
}

// Apply runs one full pass: spatial selection, then bucketing. An invalid
// predicate returns an error without a frame so the caller keeps its
// prior one. ZIPs in the selection with no value for the active metric
// are reported in NoData, never silently dropped.
func (e *Engine) Apply(state State) (Frame, error) {
	if !state.Metric.Valid() {
		return Frame{}, eris.Errorf("view: unknown metric %q", state.Metric)
	}
	pred := state.Predicate
	if pred == nil {
		pred = spatial.All{}
	}

	selected, err := spatial.Select(pred, e.centroids)
	if err != nil {
		return Frame{}, err
	}

	values := make([]bucket.ZipValue, 0, len(selected))
	var noData []string
	for _, zip := range selected {
		v, ok := e.dataset.Value(zip, state.Metric)
		if !ok {
			noData = append(noData, zip)
			continue
		}
		values = append(values, bucket.ZipValue{Zip: zip, Value: v})
	}

	res, err := bucket.Compute(values, e.k, e.palette)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Metric:      state.Metric,
		Buckets:     res,
		Selected:    len(selected),
		NoData:      noData,
		SmallSample: res.SmallSample,
	}, nil
}

// BucketCount returns the configured bucket count.
func (e *Engine) BucketCount() int {
	return e.k
}

// Palette returns the configured palette.
func (e *Engine) Palette() bucket.Palette {
	return e.palette
}
