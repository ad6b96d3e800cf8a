package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Degradable reports whether the audit sink has tripped into degraded
// mode (persistent compliance-write failures). Only /ready consults it;
// /query keeps serving while the sink is degraded.
type Degradable interface {
	Degraded() bool
}

// Ready returns a handler for GET /ready: 200 only if the database is
// reachable and the audit sink is not degraded.
func Ready(db DBPinger, audit Degradable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		reasons := []string{}
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				reasons = append(reasons, "database unreachable")
			}
		}
		if audit != nil && audit.Degraded() {
			reasons = append(reasons, "audit sink degraded")
		}

		w.Header().Set("Content-Type", "application/json")
		if len(reasons) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ready":   false,
				"reasons": reasons,
			})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"ready": true})
	}
}
