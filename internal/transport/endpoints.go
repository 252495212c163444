package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lexiqai/llm-gateway/internal/endpoint"
)

// EndpointLister lists registered endpoints
type EndpointLister interface {
	List(kind endpoint.Kind) []endpoint.Endpoint
	All() []endpoint.Endpoint
}

// Refresher re-runs model discovery
type Refresher interface {
	RefreshAll(ctx context.Context, sources []endpoint.Source) []endpoint.RefreshResult
}

type endpointsResponse struct {
	Endpoints []endpoint.Endpoint `json:"endpoints"`
}

type refreshResponse struct {
	Results []endpoint.RefreshResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// EndpointsHandler serves GET /v1/endpoints with an optional ?kind= filter
func EndpointsHandler(lister EndpointLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		var list []endpoint.Endpoint
		if raw := r.URL.Query().Get("kind"); raw != "" {
			kind, err := endpoint.ParseKind(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			list = lister.List(kind)
		} else {
			list = lister.All()
		}
		writeJSON(w, http.StatusOK, endpointsResponse{Endpoints: list})
	}
}

// RefreshHandler serves POST /v1/endpoints/refresh. Per-source failures are
// reported in the body; known endpoints are kept either way.
func RefreshHandler(refresher Refresher, sources []endpoint.Source, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		results := refresher.RefreshAll(r.Context(), sources)
		logger.Info().Interface("results", results).Msg("Manual endpoint refresh")
		writeJSON(w, http.StatusOK, refreshResponse{Results: results})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
