package transport

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lexiqai/llm-gateway/internal/orchestrator"
)

// CircuitInspector exposes the breakers guarding completion backends
type CircuitInspector interface {
	Circuits() []orchestrator.CircuitStatus
	ResetCircuit(endpointID string) bool
}

type circuitsResponse struct {
	Circuits []orchestrator.CircuitStatus `json:"circuits"`
}

// CircuitsHandler serves GET /v1/circuits
func CircuitsHandler(inspector CircuitInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		writeJSON(w, http.StatusOK, circuitsResponse{Circuits: inspector.Circuits()})
	}
}

// CircuitResetHandler serves POST /v1/circuits/reset?endpoint_id=
func CircuitResetHandler(inspector CircuitInspector, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		id := r.URL.Query().Get("endpoint_id")
		if id == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "endpoint_id is required"})
			return
		}
		if !inspector.ResetCircuit(id) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no circuit for endpoint " + id})
			return
		}
		logger.Info().Str("endpoint_id", id).Msg("Manual circuit reset")
		writeJSON(w, http.StatusOK, circuitsResponse{Circuits: inspector.Circuits()})
	}
}
