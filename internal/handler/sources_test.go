package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type stubSourceLister struct {
	sources   []string
	documents map[string][]string
	err       error
}

func (s *stubSourceLister) ListSources(ctx context.Context) ([]string, error) {
	return s.sources, s.err
}

func (s *stubSourceLister) ListDocuments(ctx context.Context, source string) ([]string, error) {
	return s.documents[source], s.err
}

func TestSources_ListsAll(t *testing.T) {
	handler := Sources(&stubSourceLister{sources: []string{"cme", "dbms"}})

	req := httptest.NewRequest(http.MethodGet, "/sources", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string][]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body["sources"]) != 2 {
		t.Errorf("sources = %v, want 2 entries", body["sources"])
	}
}

func TestSourceDetail_KnownSource(t *testing.T) {
	lister := &stubSourceLister{documents: map[string][]string{"cme": {"doc1.pdf", "doc2.pdf"}}}

	r := chi.NewRouter()
	r.Get("/sources/{name}", SourceDetail(lister))

	req := httptest.NewRequest(http.MethodGet, "/sources/cme", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["documentCount"].(float64) != 2 {
		t.Errorf("documentCount = %v, want 2", body["documentCount"])
	}
}

func TestSourceDetail_UnknownSourceIs404(t *testing.T) {
	lister := &stubSourceLister{documents: map[string][]string{}}

	r := chi.NewRouter()
	r.Get("/sources/{name}", SourceDetail(lister))

	req := httptest.NewRequest(http.MethodGet, "/sources/unknown", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
