package refdata

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/home-economics/pricemaps/internal/fetcher"
)

// PopEntry is one row of the population reference table.
type PopEntry struct {
	Name       string
	Population int
}

// LoadPopulation reads a population table keyed by ZCTA. CSV and XLSX
// files are supported, dispatched on extension.
func LoadPopulation(ctx context.Context, path string) (map[string]PopEntry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadPopulationCSV(ctx, path)
	case ".xlsx":
		return loadPopulationXLSX(path)
	default:
		return nil, eris.Errorf("refdata: unsupported population file %s", path)
	}
}

// loadPopulationCSV reads the ZCTA population CSV. The upstream file is
// Latin-1 encoded with columns zcta, name, population.
func loadPopulationCSV(ctx context.Context, path string) (map[string]PopEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open population csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	decoded := charmap.ISO8859_1.NewDecoder().Reader(f)
	_, rows, err := fetcher.ReadCSV(ctx, decoded, fetcher.CSVOptions{
		HasHeader: true,
		TrimSpace: true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "refdata: parse population csv")
	}

	return popFromRows(rows), nil
}

// loadPopulationXLSX reads the same table from an XLSX workbook, first
// sheet, one header row.
func loadPopulationXLSX(path string) (map[string]PopEntry, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SkipRows: 1})
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read population xlsx")
	}
	return popFromRows(rows), nil
}

func popFromRows(rows [][]string) map[string]PopEntry {
	pops := make(map[string]PopEntry, len(rows))
	var bad int
	for _, row := range rows {
		if len(row) < 3 {
			bad++
			continue
		}
		zip := PadZip(row[0])
		if zip == "" {
			bad++
			continue
		}
		pop, err := strconv.Atoi(strings.ReplaceAll(row[2], ",", ""))
		if err != nil || pop < 0 {
			pop = 0 // store falls back to the default
		}
		pops[zip] = PopEntry{Name: row[1], Population: pop}
	}
	if bad > 0 {
		zap.L().Debug("refdata: skipped malformed population rows", zap.Int("count", bad))
	}
	return pops
}

// PadZip left-pads a ZIP code with zeros to five digits.
func PadZip(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for len(s) < 5 {
		s = "0" + s
	}
	return s
}
