package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/home-economics/pricemaps/internal/bucket"
	"github.com/home-economics/pricemaps/internal/refdata"
	"github.com/home-economics/pricemaps/internal/view"
	"github.com/home-economics/pricemaps/internal/zhvi"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	var csv strings.Builder
	csv.WriteString("RegionName,State,City,2024-06-30,2025-06-30\n")
	var shapes []refdata.ShapeRecord
	for i := range 6 {
		zip := fmt.Sprintf("100%02d", i)
		fmt.Fprintf(&csv, "%s,NY,New York,%d,%d\n", zip, 200000+i*50000, 220000+i*60000)
		shapes = append(shapes, refdata.ShapeRecord{Zip: zip, Lat: 40 + float64(i), Lon: -74})
	}

	ds, err := zhvi.Load(context.Background(), strings.NewReader(csv.String()))
	require.NoError(t, err)
	ref, err := refdata.NewStore(shapes, nil)
	require.NoError(t, err)
	engine, err := view.NewEngine(ds, ref, 5, bucket.DefaultPalette())
	require.NoError(t, err)

	siteDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "price_level.html"), []byte("<!DOCTYPE html>"), 0644))

	return New(engine, siteDir)
}

func postRebucket(t *testing.T, srv *Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/rebucket", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestRebucketAll(t *testing.T) {
	srv := newTestServer(t)

	rec := postRebucket(t, srv, RebucketRequest{Metric: zhvi.MetricPriceLevel})
	require.Equal(t, http.StatusOK, rec.Code)

	var frame view.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, 6, frame.Selected)
	assert.Len(t, frame.Buckets.Assignments, 6)
}

func TestRebucketDefaultsMetric(t *testing.T) {
	srv := newTestServer(t)

	rec := postRebucket(t, srv, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	var frame view.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, zhvi.MetricPriceLevel, frame.Metric)
}

func TestRebucketRect(t *testing.T) {
	srv := newTestServer(t)

	rec := postRebucket(t, srv, RebucketRequest{
		Metric: zhvi.MetricPriceLevel,
		Rect: &RectJSON{
			A: PointJSON{Lat: 39.5, Lon: -75},
			B: PointJSON{Lat: 42.5, Lon: -73},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var frame view.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, 3, frame.Selected)
	assert.True(t, frame.SmallSample)
}

func TestRebucketPolygon(t *testing.T) {
	srv := newTestServer(t)

	rec := postRebucket(t, srv, RebucketRequest{
		Metric: zhvi.MetricYoYChange,
		Polygon: &PolygonJSON{Outer: []PointJSON{
			{Lat: 39, Lon: -76}, {Lat: 46, Lon: -74}, {Lat: 39, Lon: -72},
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var frame view.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Positive(t, frame.Selected)
	assert.Equal(t, zhvi.MetricYoYChange, frame.Metric)
}

func TestRebucketInvalidPolygon(t *testing.T) {
	srv := newTestServer(t)

	rec := postRebucket(t, srv, RebucketRequest{
		Metric:  zhvi.MetricPriceLevel,
		Polygon: &PolygonJSON{Outer: []PointJSON{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestRebucketUnknownMetric(t *testing.T) {
	srv := newTestServer(t)

	rec := postRebucket(t, srv, RebucketRequest{Metric: zhvi.MetricKind("momentum")})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRebucketBadJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rebucket", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaticSite(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/price_level.html", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")
}
