package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sherine-k/schedtrace/pkg/command"
)

// POST /api/v1/commands/run_simulation
func (s *Server) handleRunSimulation(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, &command.RunSimulation{})
}

// POST /api/v1/commands/run_with_parameters
func (s *Server) handleRunWithParameters(w http.ResponseWriter, r *http.Request) {
	s.submitCommand(w, r, &command.RunWithParameters{})
}

// submitCommand decodes the body into cmd, validates it and dispatches it. A rejected
// command leaves the session untouched.
func (s *Server) submitCommand(w http.ResponseWriter, r *http.Request, cmd command.Command) {
	reqID := RequestIDFromContext(r.Context())

	if err := json.NewDecoder(r.Body).Decode(cmd); err != nil {
		respondError(w, reqID, http.StatusBadRequest, newAPIError(ErrBadRequest, "invalid JSON: %v", err))
		return
	}

	env, err := s.submitter.Submit(r.Context(), cmd)
	if err != nil {
		var ve *command.ValidationError
		switch {
		case errors.As(err, &ve):
			respondError(w, reqID, http.StatusUnprocessableEntity, &APIError{
				Code:    ErrValidation,
				Message: ve.Message,
				Details: ve.Fields,
			})
		default:
			s.respondLoopError(w, reqID, err)
		}
		return
	}

	respondAccepted(w, reqID, env)
}
