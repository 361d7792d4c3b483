package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMiddleware_RecordsStatus(t *testing.T) {
	reg := NewRegistry()
	handler := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/api/forecast", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("GET", "/api/forecast", "4xx"))
	assert.Equal(t, 1.0, got)
}

func TestHTTPMiddleware_DefaultsTo200(t *testing.T) {
	reg := NewRegistry()
	handler := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) // implicit 200
	}))

	req := httptest.NewRequest("GET", "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("GET", "/healthz", "2xx"))
	assert.Equal(t, 1.0, got)
}

func TestHTTPMiddleware_RoutePatternLabel(t *testing.T) {
	reg := NewRegistry()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/observations/{date}", func(w http.ResponseWriter, r *http.Request) {})
	handler := HTTPMiddleware(reg)(mux)

	req := httptest.NewRequest("GET", "/api/observations/2024-03-31", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// One series per route, not per concrete URL.
	got := testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("GET", "GET /api/observations/{date}", "2xx"))
	assert.Equal(t, 1.0, got)
}

func TestHTTPMiddleware_InFlightReturnsToZero(t *testing.T) {
	reg := NewRegistry()
	handler := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequestsInFlight))
	}))

	req := httptest.NewRequest("GET", "/api/regime", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 0.0, testutil.ToFloat64(reg.httpRequestsInFlight))
}
