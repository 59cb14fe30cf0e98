package api

import (
	"net/http"
	"strconv"
	"time"

	"analise-fundamental/observability"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-Id"

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK, // default status code
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.responseSize += size
	return size, err
}

// RequestID reuses the caller's X-Request-Id or generates a UUID, echoes it
// back and stores it in the context for the logger
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), id)))
	})
}

// unmatchedRoute labels requests no route matched, keeping the path label bounded
const unmatchedRoute = "unmatched"

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		// /api/acao/{ticker} is recorded as one route
		routePattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			routePattern = rctx.RoutePattern()
		}
		if routePattern == "" {
			routePattern = unmatchedRoute
		}

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapped.statusCode)

		observability.GetMetrics().RecordHTTPRequest(r.Method, routePattern, statusCode, duration, wrapped.responseSize)
		observability.WithContext(r.Context()).Debug("request served",
			"method", r.Method,
			"route", routePattern,
			"status", wrapped.statusCode,
			"duration", duration)
	})
}
