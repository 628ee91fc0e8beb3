package middleware

import (
	"net/http"
	"strings"
)

// CanonicalPath lowercases the request path and drops trailing slashes so
// that /METRICS/ routes like /metrics.
func CanonicalPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.ToLower(r.URL.Path)
		if len(p) > 1 {
			p = strings.TrimRight(p, "/")
			if p == "" {
				p = "/"
			}
		}
		r.URL.Path = p
		r.URL.RawPath = ""
		next.ServeHTTP(w, r)
	})
}
