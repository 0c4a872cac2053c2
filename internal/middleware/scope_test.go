package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProjectScopeRequiresHeader(t *testing.T) {
	handler := ProjectScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a project scope")
	}))
	req := httptest.NewRequest(http.MethodGet, "/jobs/abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestProjectScopePropagates(t *testing.T) {
	var got string
	handler := ProjectScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ProjectIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/jobs/abc", nil)
	req.Header.Set("X-Project-ID", "proj-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got != "proj-42" {
		t.Fatalf("project id = %q", got)
	}
}
