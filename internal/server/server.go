// Package server exposes the rendered site plus a small JSON API for
// interactive re-bucketing, used by the local preview mode.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/home-economics/pricemaps/internal/spatial"
	"github.com/home-economics/pricemaps/internal/view"
	"github.com/home-economics/pricemaps/internal/zhvi"
)

// Server serves the output directory and the rebucket API.
type Server struct {
	engine  *view.Engine
	siteDir string
	router  http.Handler
}

// New builds the server around a view engine and a rendered site dir.
func New(engine *view.Engine, siteDir string) *Server {
	s := &Server{engine: engine, siteDir: siteDir}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/rebucket", s.handleRebucket)
	r.Handle("/*", http.FileServer(http.Dir(siteDir)))

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RebucketRequest is the API form of a view state: a metric plus at most
// one predicate. Precedence when several are present: polygon, then
// rect, then viewport, then all.
type RebucketRequest struct {
	Metric   zhvi.MetricKind `json:"metric"`
	Viewport *BBoxJSON       `json:"viewport,omitempty"`
	Rect     *RectJSON       `json:"rect,omitempty"`
	Polygon  *PolygonJSON    `json:"polygon,omitempty"`
}

// BBoxJSON is a wire bounding box.
type BBoxJSON struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// RectJSON is a wire rectangle given by two corners.
type RectJSON struct {
	A PointJSON `json:"a"`
	B PointJSON `json:"b"`
}

// PointJSON is a wire lat/lon pair.
type PointJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PolygonJSON is a wire polygon with optional holes.
type PolygonJSON struct {
	Outer []PointJSON   `json:"outer"`
	Holes [][]PointJSON `json:"holes,omitempty"`
}

func (req *RebucketRequest) predicate() spatial.Predicate {
	switch {
	case req.Polygon != nil:
		return spatial.Polygon{
			Outer: toPoints(req.Polygon.Outer),
			Holes: toRings(req.Polygon.Holes),
		}
	case req.Rect != nil:
		return spatial.NewRect(
			spatial.Point{Lat: req.Rect.A.Lat, Lon: req.Rect.A.Lon},
			spatial.Point{Lat: req.Rect.B.Lat, Lon: req.Rect.B.Lon},
		)
	case req.Viewport != nil:
		return spatial.BBox{
			South: req.Viewport.South,
			West:  req.Viewport.West,
			North: req.Viewport.North,
			East:  req.Viewport.East,
		}
	default:
		return spatial.All{}
	}
}

func toPoints(pts []PointJSON) []spatial.Point {
	out := make([]spatial.Point, len(pts))
	for i, p := range pts {
		out[i] = spatial.Point{Lat: p.Lat, Lon: p.Lon}
	}
	return out
}

func toRings(rings [][]PointJSON) [][]spatial.Point {
	if len(rings) == 0 {
		return nil
	}
	out := make([][]spatial.Point, len(rings))
	for i, r := range rings {
		out[i] = toPoints(r)
	}
	return out
}

func (s *Server) handleRebucket(w http.ResponseWriter, r *http.Request) {
	var req RebucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode rebucket request"))
		return
	}
	if req.Metric == "" {
		req.Metric = zhvi.MetricPriceLevel
	}

	frame, err := s.engine.Apply(view.State{Metric: req.Metric, Predicate: req.predicate()})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Debug("server: request rejected", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
