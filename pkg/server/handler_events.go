package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sherine-k/schedtrace/pkg/events"
)

type ingestResponse struct {
	Channel    string `json:"channel"`
	Generation uint64 `json:"generation"`
}

// handleIngestEvent hands a raw engine payload to the adapter.
// POST /api/v1/events/{channel}
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	channel := chi.URLParam(r, "channel")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, newAPIError(ErrBadRequest, "reading payload: %v", err))
		return
	}

	if err := s.bus.OnEvent(channel, body); err != nil {
		var me *events.MalformedEventError
		switch {
		case errors.Is(err, events.ErrUnknownChannel):
			respondError(w, reqID, http.StatusNotFound, newAPIError(ErrNotFound, "channel '%s' not found", channel))
		case errors.As(err, &me):
			respondError(w, reqID, http.StatusBadRequest, newAPIError(ErrMalformed, "%s", me.Error()))
		default:
			respondError(w, reqID, http.StatusInternalServerError, newAPIError(ErrInternal, "%v", err))
		}
		return
	}

	respondAccepted(w, reqID, ingestResponse{Channel: channel, Generation: s.agg.Generation()})
}
