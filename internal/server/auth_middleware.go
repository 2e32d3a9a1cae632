package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenAuth rejects requests that carry neither "Authorization: Bearer <token>"
// nor a token query parameter matching token. Browsers cannot set headers on
// websocket upgrades, hence the query fallback.
func tokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got == "" {
				got = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
