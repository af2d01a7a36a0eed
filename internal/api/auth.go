package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth requires "Authorization: Bearer <token>" on the wrapped routes.
// An empty token lets every request through; the API binds to localhost by
// default.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				RecordConnectionRejected("auth")
				writeError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
