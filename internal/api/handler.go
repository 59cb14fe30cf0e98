package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"analise-fundamental/config"
	"analise-fundamental/internal/app"
	"analise-fundamental/models"
	"analise-fundamental/observability"

	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleStatus returns the static service description
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, models.NewServiceStatus())
}

// HandleHealth returns cache and circuit breaker state
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.app.Health(r.Context())

	// An open breaker means an upstream is being short-circuited
	for _, cb := range report.Breakers {
		if cb.State == "open" {
			report.Status = "degraded"
			break
		}
	}

	h.jsonResponse(w, http.StatusOK, report)
}

// HandleGetStock returns the document for one ticker
func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))

	doc, err := h.app.GetStock(r.Context(), ticker)
	if err != nil {
		h.stockError(w, r, ticker, err)
		return
	}

	h.jsonResponse(w, http.StatusOK, doc)
}

// HandleGetStocks returns documents for the comma separated tickers query
// parameter
func (h *Handler) HandleGetStocks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tickers")
	if raw == "" {
		h.jsonError(w, "Parâmetro 'tickers' obrigatório", http.StatusBadRequest)
		return
	}

	tickers := app.NormalizeTickers(strings.Split(raw, ","))
	if len(tickers) == 0 {
		h.jsonError(w, "Nenhum ticker válido fornecido", http.StatusBadRequest)
		return
	}

	h.jsonResponse(w, http.StatusOK, h.app.GetStocks(r.Context(), tickers))
}

// BatchRequest is the POST /api/batch body
type BatchRequest struct {
	Tickers *[]any `json:"tickers"`
}

// symbols keeps string and numeric entries and skips anything else
func (b BatchRequest) symbols() []string {
	var out []string
	for _, v := range *b.Tickers {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		}
	}
	return out
}

// HandleBatch processes up to Batch.MaxTickers tickers from a JSON body
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tickers == nil {
		h.jsonError(w, "JSON com campo 'tickers' obrigatório", http.StatusBadRequest)
		return
	}

	tickers := app.NormalizeTickers(req.symbols())
	if len(tickers) == 0 {
		h.jsonError(w, "Nenhum ticker válido", http.StatusBadRequest)
		return
	}

	h.jsonResponse(w, http.StatusOK, h.app.RunBatch(r.Context(), tickers))
}

// HandleTenYearRate returns the resolved 10-year treasury yield
func (h *Handler) HandleTenYearRate(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.app.TenYearRate(r.Context()))
}

// HandleAllRates returns every named treasury tenor
func (h *Handler) HandleAllRates(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, h.app.AllRates(r.Context()))
}

func (h *Handler) stockError(w http.ResponseWriter, r *http.Request, ticker string, err error) {
	switch models.KindOf(err) {
	case models.KindInvalidInput:
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case models.KindNotFound, models.KindUpstreamUnavailable:
		h.jsonResponse(w, http.StatusNotFound, models.ErrorDocument{Erro: err.Error(), Ticker: ticker})
	default:
		observability.WithContext(r.Context()).Error("unexpected error building document",
			"ticker", ticker,
			"error", err)
		h.jsonResponse(w, http.StatusInternalServerError, models.NewTickerFailure(ticker, err))
	}
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		observability.Error("failed to encode response", "error", err)
		http.Error(w, `{"erro": "internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, status, models.ErrorResponse{Erro: message})
}
