package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func hasToken(given string, set []string) bool {
	if given == "" {
		return false
	}
	ok := false
	for _, t := range set {
		if subtle.ConstantTimeCompare([]byte(t), []byte(given)) == 1 {
			ok = true
		}
	}
	return ok
}

// RequireToken only lets scrapers through that present one of tokens as a
// bearer token. With no tokens configured every request is allowed.
func RequireToken(tokens []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(tokens) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasToken(bearerToken(r), tokens) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}
