package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

const projectIDKey contextKey = "project_id"

// ProjectScope extracts the caller's project from the X-Project-ID header.
// Every job route is scoped: reads and writes only ever see the caller's own
// jobs, so a missing project is a 400, not a broader default.
func ProjectScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID := r.Header.Get("X-Project-ID")
		if projectID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "bad_request",
				"message": "X-Project-ID header required",
			})
			return
		}
		ctx := context.WithValue(r.Context(), projectIDKey, projectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ProjectIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(projectIDKey).(string); ok {
		return v
	}
	return ""
}
