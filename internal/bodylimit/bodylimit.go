// Package bodylimit implements the mutation-endpoint body size cap described
// in §6: requests on the routes it is mounted on (internal/httpserver mounts
// it on the authenticated /v1 sub-router) are capped (default 1 MB) and
// rejected with 413 when the cap is exceeded.
package bodylimit

import (
	"errors"
	"net/http"
)

// DefaultMaxBytes is used when the caller has not configured MAX_BODY_BYTES.
const DefaultMaxBytes = 1 << 20 // 1 MiB

// Middleware wraps r.Body in http.MaxBytesReader and returns 413 with an
// empty body the first time a handler's Decode call exceeds maxBytes. The
// limit check is lazy — it only fires when something actually reads the
// body past the cap, matching http.MaxBytesReader's own behavior.
func Middleware(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// IsBodyTooLarge reports whether err originates from an http.MaxBytesReader
// limit being exceeded, so callers decoding a request body can translate it
// into the shared error envelope instead of a raw 400.
func IsBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

// RespondIfTooLarge writes the §6 413-with-empty-body response and reports
// true if err was a body-size violation; otherwise it writes nothing and
// returns false so the caller can fall through to its own error handling.
func RespondIfTooLarge(w http.ResponseWriter, err error) bool {
	if !IsBodyTooLarge(err) {
		return false
	}
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	return true
}
