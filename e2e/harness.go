// Package e2e provides end-to-end testing infrastructure for the fundamentals API.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"analise-fundamental/config"
	"analise-fundamental/e2e/mocks"
	"analise-fundamental/fundamentals"
	"analise-fundamental/internal/api"
	"analise-fundamental/internal/app"
	"analise-fundamental/observability"
	"analise-fundamental/repository"
	"analise-fundamental/services"
)

// TestHarness provides the infrastructure for running E2E tests.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	cache      repository.ResponseCache
	metrics    *observability.Metrics
	app        *app.App
	router     http.Handler
	config     *config.Config
}

// NewTestHarness creates a new test harness with all dependencies initialized.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Setup wires the real providers against the mock upstreams. The cache
// backend comes from E2E_CACHE_BACKEND (default memory).
func (h *TestHarness) Setup() error {
	h.mockServer = mocks.NewMockServer()
	h.config = h.createTestConfig()
	h.metrics = observability.NewMetrics(prometheus.NewRegistry())

	var err error
	h.cache, err = repository.NewResponseCache(h.ctx, h.config)
	if err != nil {
		return fmt.Errorf("failed to create %s cache: %w", h.config.Cache.Backend, err)
	}

	breakers := services.NewCircuitBreakerRegistry(h.config.CircuitBreaker, h.metrics)
	yahoo := services.NewYahooService(h.config.Yahoo, services.YahooDeps{
		Cache:    h.cache,
		CacheTTL: h.config.Cache.TTL,
		Breakers: breakers,
		Metrics:  h.metrics,
	})
	treasury := services.NewDefaultTreasuryResolver(h.config.Treasury, yahoo, breakers, h.metrics)

	var appCache app.CacheInterface
	if h.cache != nil {
		appCache = h.cache
	}
	h.app = app.New(h.config, fundamentals.NewBuilder(yahoo), treasury, appCache, breakers, h.metrics)

	handler := api.NewHandler(h.app, h.config)
	h.router = api.NewRouter(handler, h.config)

	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.cancel != nil {
		h.cancel()
	}

	if h.app != nil {
		h.app.Shutdown(context.Background())
	}

	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// Metrics returns the metrics registry private to this harness.
func (h *TestHarness) Metrics() *observability.Metrics {
	return h.metrics
}

// App returns the application instance.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Router returns the HTTP router for making requests.
func (h *TestHarness) Router() http.Handler {
	return h.router
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// DoRequest performs an HTTP request and returns the response.
func (h *TestHarness) DoRequest(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *TestHarness) createTestConfig() *config.Config {
	mockURL := h.mockServer.URL()

	cfg := config.NewTestConfig()
	cfg.Yahoo.BaseURL = mockURL
	cfg.Yahoo.CookieURL = mockURL + mocks.ConsentPath
	cfg.Yahoo.Timeout = 5 * time.Second
	cfg.Treasury.XMLURL = mockURL + mocks.TreasuryXMLPath
	cfg.Treasury.FiscalDataURL = mockURL + mocks.FiscalDataPath
	cfg.Treasury.Timeout = 2 * time.Second

	cfg.Cache.Backend = config.CacheMemory
	if backend := os.Getenv("E2E_CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = backend
	}
	if url := os.Getenv("E2E_DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("E2E_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}

	return cfg
}
