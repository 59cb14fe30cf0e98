package api

import (
	"net/http"

	"analise-fundamental/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/estado", h.HandleStatus)
		r.Get("/health", h.HandleHealth)

		// Equities
		r.Get("/acao/{ticker}", h.HandleGetStock)
		r.Get("/acoes", h.HandleGetStocks)
		r.Post("/batch", h.HandleBatch)

		// Treasury
		r.Route("/tesouro", func(r chi.Router) {
			r.Get("/10anos", h.HandleTenYearRate)
			r.Get("/todas", h.HandleAllRates)
		})
	})

	return r
}
