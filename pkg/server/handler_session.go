package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sherine-k/schedtrace/pkg/command"
	"github.com/sherine-k/schedtrace/pkg/model"
)

type startSessionRequest struct {
	Algorithm string     `json:"algorithm"`
	Origin    *time.Time `json:"origin,omitempty"`
}

// GET /api/v1/session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.agg.Snapshot().Session)
}

// handleStartSession opens a new generation. The origin defaults to now.
// POST /api/v1/session/start
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, newAPIError(ErrBadRequest, "invalid JSON: %v", err))
		return
	}
	algorithm, ok := model.ParseAlgorithm(req.Algorithm)
	if !ok {
		respondError(w, reqID, http.StatusUnprocessableEntity, &APIError{
			Code:    ErrValidation,
			Message: "unknown algorithm",
			Details: []command.FieldError{{Field: "algorithm", Message: "unknown algorithm '" + req.Algorithm + "'"}},
		})
		return
	}

	origin := time.Now()
	if req.Origin != nil {
		origin = *req.Origin
	}
	st, err := s.loop.StartAt(r.Context(), algorithm, origin)
	if err != nil {
		s.respondLoopError(w, reqID, err)
		return
	}
	respondOK(w, reqID, st.Session)
}

// POST /api/v1/session/reset
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	st, err := s.loop.Reset(r.Context())
	if err != nil {
		s.respondLoopError(w, reqID, err)
		return
	}
	respondOK(w, reqID, st.Session)
}
