package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/veritas-legal/clausecore/internal/apperr"
)

// writeError renders err as the standard JSON error envelope, mapping
// apperr.Kind to its HTTP status. Unrecognized errors are treated as
// internal errors so a bug never leaks raw error text to the caller.
func writeError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal(err)
	}

	status := apperr.HTTPStatus(appErr.Kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "request_id", requestID, "kind", appErr.Kind, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   false,
		"error":     appErr.Message,
		"code":      appErr.Code,
		"requestId": requestID,
	})
}
