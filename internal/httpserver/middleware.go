// internal/httpserver/middleware.go
//
// Cross-cutting HTTP middleware: access logging, latency metrics, default
// JSON content type and credentialed CORS.

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// requestLogger attaches the global zerolog logger to the request and writes
// one access line per request.
func requestLogger(next http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		lvl := zerolog.InfoLevel
		switch {
		case status >= 500:
			lvl = zerolog.ErrorLevel
		case r.URL.Path == "/health" || r.URL.Path == "/metrics":
			lvl = zerolog.DebugLevel
		}
		hlog.FromRequest(r).WithLevel(lvl).
			Str("reqId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})
	return hlog.NewHandler(log.Logger)(access(next))
}

// observeLatency records request latency by chi route pattern, so /game/{id}
// is one series regardless of the ID.
func (s *Server) observeLatency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.ObserveRequest(route, time.Since(start))
	})
}

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFor enables credentialed CORS for a single origin (CLIENT_ORIGIN).
func corsFor(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkOrigin admits WebSocket upgrades from the configured client origin and
// from non-browser clients that send no Origin header.
func (s *Server) checkOrigin(r *http.Request) bool {
	o := r.Header.Get("Origin")
	return o == "" || o == s.cfg.ClientOrigin
}
