package api

import (
	"net"
	"net/http"

	"github.com/shelfmarkapp/shelfmark-server/internal/http/response"
)

// limitWrites applies the per-client write budget. Clients are keyed by
// remote IP; RealIP middleware has already unwrapped any proxy headers.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.writes.Allow(clientKey(r)) {
			response.TooManyRequests(w, "write rate limit exceeded", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
