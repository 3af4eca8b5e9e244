package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	sessionHeader      = "X-Session-ID"
	maxSessionIDLength = 128
)

// requireSessionID rejects malformed session IDs before they reach the
// registry and echoes the ID back in X-Session-ID.
func requireSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "sessionID"))
		if !validSessionID(id) {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		w.Header().Set(sessionHeader, id)
		next.ServeHTTP(w, r)
	})
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
