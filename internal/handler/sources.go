package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veritas-legal/clausecore/internal/apperr"
)

// SourceLister is the interface Sources/SourceDetail depend on, satisfied
// by *provider.PgChunkStore.
type SourceLister interface {
	ListSources(ctx context.Context) ([]string, error)
	ListDocuments(ctx context.Context, source string) ([]string, error)
}

// Sources handles GET /sources: lists the corpus's known sources.
func Sources(store SourceLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := w.Header().Get("X-Request-ID")

		sources, err := store.ListSources(r.Context())
		if err != nil {
			writeError(w, r, requestID, apperr.Internal(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"sources": sources})
	}
}

// SourceDetail handles GET /sources/{name}: lists the documents within
// one source, since ChunkStore.ListDocuments already makes this free.
func SourceDetail(store SourceLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := w.Header().Get("X-Request-ID")
		name := chi.URLParam(r, "name")

		docs, err := store.ListDocuments(r.Context(), name)
		if err != nil {
			writeError(w, r, requestID, apperr.Internal(err))
			return
		}
		if len(docs) == 0 {
			writeError(w, r, requestID, apperr.SourceNotFound(name))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"source":        name,
			"documentCount": len(docs),
			"documents":     docs,
		})
	}
}
