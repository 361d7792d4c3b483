package metrics

import (
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware returns middleware that records HTTP metrics. Requests
// matched by a ServeMux are labeled with the route pattern rather than the
// raw URL path, keeping series cardinality bounded for parameterized
// routes; unmatched requests fall back to the URL path.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			// The mux sets r.Pattern while routing, so it is only
			// available after the handler ran.
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			reg.RecordRequest(r.Method, route, rw.statusCode, time.Since(start).Seconds())
		})
	}
}
