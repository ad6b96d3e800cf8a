package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/veritas-legal/clausecore/internal/apperr"
	"github.com/veritas-legal/clausecore/internal/model"
)

// Orchestrator is the interface Query depends on, satisfied by
// *service.QueryOrchestrator.
type Orchestrator interface {
	Run(ctx context.Context, question string, sources []string, mode model.SearchMode) (*model.QueryResult, error)
}

type queryRequest struct {
	Question string           `json:"question"`
	Sources  []string         `json:"sources"`
	Mode     model.SearchMode `json:"mode,omitempty"`
}

// Query handles POST /query: validates the request body, runs the
// pipeline, and returns the QueryResult as-is — it is already the
// complete response contract, success or refusal.
func Query(orchestrator Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := w.Header().Get("X-Request-ID")

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, requestID, apperr.ValidationError("malformed request body"))
			return
		}

		if strings.TrimSpace(req.Question) == "" {
			writeError(w, r, requestID, apperr.EmptyQuestion())
			return
		}
		if len(req.Sources) == 0 {
			writeError(w, r, requestID, apperr.ValidationError("sources must not be empty"))
			return
		}

		result, err := orchestrator.Run(r.Context(), req.Question, req.Sources, req.Mode)
		if err != nil {
			writeError(w, r, requestID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	}
}
