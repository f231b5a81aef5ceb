package view

import (
	"github.com/rotisserie/eris"

	"github.com/home-economics/pricemaps/internal/spatial"
	"github.com/home-economics/pricemaps/internal/zhvi"
)

// Session tracks one interactive map session: the active metric, an
// optional drawn boundary, the viewport, and the local-view toggle. Each
// event replaces the relevant piece of state and recomputes a fresh
// frame; a failed recompute leaves the session (and its last good frame)
// untouched.
//
// Predicate precedence mirrors the map client: a drawn boundary wins,
// then the viewport when local view is on, then the full universe.
type Session struct {
	engine    *Engine
	metric    zhvi.MetricKind
	boundary  *spatial.Polygon
	viewport  *spatial.BBox
	localView bool
	frame     Frame
}

// NewSession starts a session on the global selection for the given metric.
func NewSession(engine *Engine, metric zhvi.MetricKind) (*Session, error) {
	s := &Session{engine: engine, metric: metric}
	frame, err := engine.Apply(s.state())
	if err != nil {
		return nil, err
	}
	s.frame = frame
	return s, nil
}

func (s *Session) state() State {
	return State{Metric: s.metric, Predicate: s.predicate()}
}

func (s *Session) predicate() spatial.Predicate {
	switch {
	case s.boundary != nil:
		return *s.boundary
	case s.localView && s.viewport != nil:
		return *s.viewport
	default:
		return spatial.All{}
	}
}

// Frame returns the last successfully computed frame.
func (s *Session) Frame() Frame {
	return s.frame
}

// DrawBoundary replaces any drawn boundary and recomputes. An invalid
// polygon is rejected before any state changes.
func (s *Session) DrawBoundary(poly spatial.Polygon) (Frame, error) {
	if err := poly.Validate(); err != nil {
		return s.frame, err
	}
	prev := s.boundary
	s.boundary = &poly
	frame, err := s.engine.Apply(s.state())
	if err != nil {
		s.boundary = prev
		return s.frame, err
	}
	s.frame = frame
	return frame, nil
}

// ClearBoundary removes the drawn boundary, reverting to the viewport
// (local view) or the global selection.
func (s *Session) ClearBoundary() (Frame, error) {
	s.boundary = nil
	frame, err := s.engine.Apply(s.state())
	if err != nil {
		return s.frame, err
	}
	s.frame = frame
	return frame, nil
}

// SetViewport records the current viewport and recomputes when it is the
// active predicate (local view on, no boundary drawn).
func (s *Session) SetViewport(box spatial.BBox) (Frame, error) {
	if err := box.Validate(); err != nil {
		return s.frame, err
	}
	s.viewport = &box
	if s.boundary != nil || !s.localView {
		return s.frame, nil
	}
	frame, err := s.engine.Apply(s.state())
	if err != nil {
		return s.frame, err
	}
	s.frame = frame
	return frame, nil
}

// SetLocalView toggles viewport-driven bucketing and recomputes.
func (s *Session) SetLocalView(on bool) (Frame, error) {
	s.localView = on
	frame, err := s.engine.Apply(s.state())
	if err != nil {
		return s.frame, err
	}
	s.frame = frame
	return frame, nil
}

// ToggleMetric switches the active metric, keeping the current selection.
func (s *Session) ToggleMetric(metric zhvi.MetricKind) (Frame, error) {
	if !metric.Valid() {
		return s.frame, eris.Errorf("view: unknown metric %q", metric)
	}
	prev := s.metric
	s.metric = metric
	frame, err := s.engine.Apply(s.state())
	if err != nil {
		s.metric = prev
		return s.frame, err
	}
	s.frame = frame
	return frame, nil
}
