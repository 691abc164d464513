package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetconv/internal/logging"
)

// APIKeyAuth returns middleware that checks the X-API-Key header (or an
// "Authorization: Bearer" token) against keys. When required is false every
// request passes. When required is true and keys is empty every request is rejected.
func APIKeyAuth(required bool, keys []string) func(http.Handler) http.Handler {
	valid := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			valid = append(valid, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)
			if key == "" {
				logging.FromContext(r.Context()).Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}

			if !matchKey([]byte(key), valid) {
				logging.FromContext(r.Context()).Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// matchKey compares key against every valid key in constant time,
// so the duration does not reveal which key matched.
func matchKey(key []byte, valid [][]byte) bool {
	match := 0
	for _, v := range valid {
		match |= subtle.ConstantTimeCompare(key, v)
	}
	return match == 1
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","message":"` + message + `","code":"` + code + `"}` + "\n"))
}
