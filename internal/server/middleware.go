package server

import (
	"fmt"
	"net/http"
)

// limitSubmits applies the token-bucket limiter to job creation. Reads are
// never limited; polling clients hit the list and status routes far more
// often than they submit.
func (s *Server) limitSubmits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.submitLimiter != nil && !s.submitLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeErr(w, http.StatusTooManyRequests, fmt.Errorf("submission rate exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
