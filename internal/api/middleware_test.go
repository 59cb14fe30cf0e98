package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"analise-fundamental/observability"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	// Test default status code
	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status code to be 200, got %d", rw.statusCode)
	}

	rw.WriteHeader(http.StatusNotFound)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code to be 404, got %d", rw.statusCode)
	}

	data := []byte(`{"erro": "x"}`)
	n, err := rw.Write(data)
	if err != nil {
		t.Errorf("Write returned error: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	n2, _ := rw.Write(data)
	if rw.responseSize != len(data)+n2 {
		t.Errorf("Expected cumulative response size to be %d, got %d", len(data)+n2, rw.responseSize)
	}
}

func TestMetricsMiddleware_RoutePattern(t *testing.T) {
	metrics := observability.GetMetrics()

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/acao/{ticker}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/acao/{ticker}", "200"))
	for _, path := range []string{"/api/acao/AAPL", "/api/acao/MSFT"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	}

	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/acao/{ticker}", "200"))
	if after-before != 2 {
		t.Errorf("Expected 2 requests under the route pattern, got %v", after-before)
	}
}

func TestMetricsMiddleware_WithoutRouter(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	})

	wrapped := MetricsMiddleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/error", nil)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestMetricsMiddleware_UnmatchedPathsShareLabel(t *testing.T) {
	metrics := observability.GetMetrics()

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/estado", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))
	paths := []string{"/nope", "/api/nope/1", "/wp-login.php"}
	for _, path := range paths {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404 for %s, got %d", path, w.Code)
		}
	}

	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404"))
	if after-before != float64(len(paths)) {
		t.Errorf("Expected %d requests under %q, got %v", len(paths), unmatchedRoute, after-before)
	}
	for _, path := range paths {
		if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", path, "404")); got != 0 {
			t.Errorf("Expected no series labelled with raw path %s, got %v", path, got)
		}
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
	}))

	t.Run("generates uuid", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		id := w.Header().Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("Expected a UUID, got %q", id)
		}
		if seen != id {
			t.Errorf("Expected context ID %q, got %q", id, seen)
		}
	})

	t.Run("keeps caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("Expected abc-123, got %q", got)
		}
		if seen != "abc-123" {
			t.Errorf("Expected context ID abc-123, got %q", seen)
		}
	})
}
