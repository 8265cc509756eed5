package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ForPrefix applies mw only to requests whose path starts with prefix.
func ForPrefix(prefix string, mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				guarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessToken guards the IPTV and HDHomeRun surfaces. When token is empty
// the surface is public. A mismatch returns a bare 401 with no body, so
// probing never learns whether a channel exists.
func AccessToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("access_token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyHeader is the management API authentication header.
const APIKeyHeader = "X-API-Key"

// APIKey guards the management API. When required is false the middleware
// is a no-op.
func APIKey(required bool, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !required || key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
