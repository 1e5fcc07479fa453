package server

import (
	"net/http"
	"strconv"

	"github.com/sherine-k/schedtrace/pkg/finished"
	"github.com/sherine-k/schedtrace/pkg/metrics"
	"github.com/sherine-k/schedtrace/pkg/model"
)

// GET /api/v1/state
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.agg.Snapshot())
}

type laneTimeline struct {
	Lane     int                     `json:"lane"`
	Segments []model.TimelineSegment `json:"segments"`
}

type timelineResponse struct {
	Generation uint64         `json:"generation"`
	MultiLevel bool           `json:"multi_level"`
	SpanMs     float64        `json:"span_ms"`
	Lanes      []laneTimeline `json:"lanes"`
}

// handleGetTimeline returns every lane, or only the one named by ?lane=N.
// GET /api/v1/timeline
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	st := s.agg.Snapshot()

	resp := timelineResponse{
		Generation: st.Session.Generation,
		MultiLevel: st.MultiLevel,
		SpanMs:     st.Span(),
	}

	if q := r.URL.Query().Get("lane"); q != "" {
		lane, err := strconv.Atoi(q)
		if err != nil || lane < 0 || lane >= len(st.Lanes) {
			respondError(w, reqID, http.StatusBadRequest,
				newAPIError(ErrBadRequest, "lane must be an integer in [0, %d)", len(st.Lanes)))
			return
		}
		resp.Lanes = []laneTimeline{{Lane: lane, Segments: nonNil(st.Lane(lane))}}
		respondOK(w, reqID, resp)
		return
	}

	resp.Lanes = make([]laneTimeline, 0, len(st.Lanes))
	for lane := range st.Lanes {
		resp.Lanes = append(resp.Lanes, laneTimeline{Lane: lane, Segments: nonNil(st.Lanes[lane])})
	}
	respondOK(w, reqID, resp)
}

type finishedResponse struct {
	Size      int                     `json:"size"`
	Processes []model.ProcessSnapshot `json:"processes"`
	Waves     []finished.Wave         `json:"waves"`
	Distinct  []model.ProcessSnapshot `json:"distinct"`
}

// GET /api/v1/finished
func (s *Server) handleGetFinished(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	st := s.agg.Snapshot()
	respondOK(w, reqID, finishedResponse{
		Size:      len(st.Finished),
		Processes: nonNil(st.Finished),
		Waves:     nonNil(st.Waves),
		Distinct:  nonNil(st.Distinct),
	})
}

type metricsResponse struct {
	Current    *metrics.Point  `json:"current"`
	Series     []metrics.Point `json:"series"`
	Comparison []metrics.Point `json:"comparison"`
}

// GET /api/v1/metrics
func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	st := s.agg.Snapshot()
	respondOK(w, reqID, metricsResponse{
		Current:    st.Current,
		Series:     nonNil(st.Series),
		Comparison: nonNil(st.Comparison),
	})
}

// DELETE /api/v1/metrics/comparison
func (s *Server) handleClearComparison(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	st, err := s.loop.ClearComparison(r.Context())
	if err != nil {
		s.respondLoopError(w, reqID, err)
		return
	}
	respondOK(w, reqID, metricsResponse{
		Current:    st.Current,
		Series:     nonNil(st.Series),
		Comparison: nonNil(st.Comparison),
	})
}

// nonNil makes empty collections encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
