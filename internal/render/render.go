// Package render writes the self-contained interactive map pages: one
// HTML document per metric with the full payload embedded, plus the raw
// payload JSON alongside.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/home-economics/pricemaps/internal/payload"
	"github.com/home-economics/pricemaps/internal/zhvi"
)

// PayloadFile is the name of the raw payload written next to the pages.
const PayloadFile = "payload.json"

// metricPage describes how one metric is rendered.
type metricPage struct {
	File     string
	Title    string
	Label    string
	Field    string // payload point field holding the value
	IsDollar bool
}

var metricPages = map[zhvi.MetricKind]metricPage{
	zhvi.MetricPriceLevel: {
		File:     "price_level.html",
		Title:    "US Home Prices by ZIP Code",
		Label:    "Typical home value",
		Field:    "p",
		IsDollar: true,
	},
	zhvi.MetricYoYChange: {
		File:  "yoy_change.html",
		Title: "US Home Price Changes - Year over Year",
		Label: "Price change, year over year",
		Field: "c",
	},
}

// PageFile returns the output filename for a metric.
func PageFile(kind zhvi.MetricKind) (string, error) {
	page, ok := metricPages[kind]
	if !ok {
		return "", eris.Errorf("render: unknown metric %q", kind)
	}
	return page.File, nil
}

// WriteSite renders every metric page and the payload JSON into outDir,
// creating it if needed.
func WriteSite(doc *payload.Document, outDir string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return eris.Wrapf(err, "render: create output dir %s", outDir)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "render: marshal payload")
	}
	payloadPath := filepath.Join(outDir, PayloadFile)
	if err := os.WriteFile(payloadPath, raw, 0644); err != nil {
		return eris.Wrapf(err, "render: write %s", payloadPath)
	}

	for _, kind := range zhvi.Metrics {
		path := filepath.Join(outDir, metricPages[kind].File)
		html, err := Page(doc, kind)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, html, 0644); err != nil {
			return eris.Wrapf(err, "render: write %s", path)
		}
		zap.L().Info("rendered map page",
			zap.String("metric", string(kind)),
			zap.String("path", path),
			zap.Int("bytes", len(html)),
		)
	}

	return nil
}

type pageData struct {
	Title       string
	Label       string
	Field       string
	Metric      string
	OtherFile   string
	OtherLabel  string
	DatasetDate string
	YearAgoDate string
	NoDataColor string
	SmallSample bool
	Legend      []legendEntry
	Payload     template.JS
}

type legendEntry struct {
	Color string
	Label string
}

// Page renders one metric's HTML document with the payload embedded.
func Page(doc *payload.Document, kind zhvi.MetricKind) ([]byte, error) {
	page, ok := metricPages[kind]
	if !ok {
		return nil, eris.Errorf("render: unknown metric %q", kind)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "render: marshal payload")
	}

	buckets := doc.Buckets[kind]
	data := pageData{
		Title:       page.Title,
		Label:       page.Label,
		Field:       page.Field,
		Metric:      string(kind),
		DatasetDate: doc.DatasetDate,
		YearAgoDate: doc.YearAgoDate,
		NoDataColor: doc.NoDataColor,
		SmallSample: buckets.SmallSample,
		Payload:     template.JS(raw), //nolint:gosec // marshaled from our own structs
	}
	for _, bkt := range buckets.Buckets {
		data.Legend = append(data.Legend, legendEntry{
			Color: bkt.Color,
			Label: BoundsLabel(bkt.Lower, bkt.Upper, page.IsDollar),
		})
	}
	for other, op := range metricPages {
		if other != kind {
			data.OtherFile = op.File
			data.OtherLabel = op.Label
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, eris.Wrapf(err, "render: execute template for %s", kind)
	}
	return buf.Bytes(), nil
}

// BoundsLabel formats a bucket interval for the legend.
func BoundsLabel(lower, upper float64, dollar bool) string {
	if dollar {
		return fmt.Sprintf("%s – %s", dollarShort(lower), dollarShort(upper))
	}
	return fmt.Sprintf("%+.1f%% to %+.1f%%", lower, upper)
}

// dollarShort renders a dollar amount compactly: $850k, $1.2M.
func dollarShort(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.0fk", v/1_000)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
