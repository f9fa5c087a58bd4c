package http

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// requestIDHeader carries the request ID across the SPA, gateway, and logs
const requestIDHeader = "X-Request-ID"

// partitionHeader selects the OSDU data partition for a request
const partitionHeader = "data-partition-id"

// buildMiddleware wraps the mux with the standard chain: request ID,
// body limit, CORS, then metrics closest to the mux.
func (s *Server) buildMiddleware(next http.Handler) http.Handler {
	handler := next
	if s.metrics != nil {
		handler = s.metricsMiddleware(handler)
	}
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}
	if s.config.MaxRequestSize > 0 {
		handler = s.bodyLimitMiddleware(handler)
	}
	return s.requestIDMiddleware(handler)
}

// requestIDMiddleware propagates or generates a request ID
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set(requestIDHeader, reqID)
		}
		w.Header().Set(requestIDHeader, reqID)
		next.ServeHTTP(w, r)
	})
}

// bodyLimitMiddleware caps request body size
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+partitionHeader+", "+requestIDHeader)
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes WebSocket upgrades through to the underlying writer. The
// wrapper must not hide the Hijacker interface or /ws routes break.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, rw, err := hj.Hijack()
	if err == nil {
		r.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// metricsMiddleware records request counts and latency per route group
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := routeLabel(r.URL.Path)
		s.metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(rec.status))
		s.metrics.RecordHTTPDuration(route, time.Since(start))
	})
}

// routeLabel collapses request paths into low-cardinality metric labels
func routeLabel(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	switch parts[0] {
	case "api":
		if len(parts) > 1 {
			return "/api/" + parts[1]
		}
		return "/api"
	case "graphql":
		return "/graphql"
	case "file":
		return "/file"
	case "health", "ws":
		return "/" + parts[0]
	default:
		return "/other"
	}
}
