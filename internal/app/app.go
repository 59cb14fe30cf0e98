package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"analise-fundamental/config"
	"analise-fundamental/models"
	"analise-fundamental/observability"
	"analise-fundamental/services"
)

// DocumentBuilder defines the per-ticker document operation needed by App
type DocumentBuilder interface {
	Build(ctx context.Context, ticker string) (*models.StockDocument, error)
}

// CacheInterface defines the response cache operations needed by App
type CacheInterface interface {
	Close()
	Health(ctx context.Context) error
	Backend() string
	CleanExpired(ctx context.Context) (int64, error)
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	cfg      *config.Config
	builder  DocumentBuilder
	treasury services.TreasuryRateProvider
	cache    CacheInterface
	breakers *services.CircuitBreakerRegistry
	metrics  *observability.Metrics
	now      func() time.Time
}

// New creates a new App. cache and breakers may be nil.
func New(cfg *config.Config, builder DocumentBuilder, treasury services.TreasuryRateProvider, cache CacheInterface, breakers *services.CircuitBreakerRegistry, metrics *observability.Metrics) *App {
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	return &App{
		cfg:      cfg,
		builder:  builder,
		treasury: treasury,
		cache:    cache,
		breakers: breakers,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Shutdown releases the response cache
func (a *App) Shutdown(ctx context.Context) {
	if a.cache != nil {
		a.cache.Close()
	}
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.^=-]{1,15}$`)

// ValidateTicker rejects symbols the provider could never resolve. ticker
// must already be normalised. A blank ticker is invalid input; a malformed
// one is reported like any other unknown symbol.
func ValidateTicker(ticker string) error {
	if ticker == "" {
		return models.ErrInvalidInput.WithMsg("Ticker não fornecido")
	}
	if !tickerPattern.MatchString(ticker) {
		return models.ErrNotFound.WithMsg(fmt.Sprintf("Ticker inválido: %s", ticker))
	}
	return nil
}

// NormalizeTickers trims and upper-cases each symbol and drops blanks.
// Order and duplicates are kept.
func NormalizeTickers(raw []string) []string {
	tickers := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}

// GetStock builds the document for one ticker and attaches the 10-year
// treasury yield. The yield is only resolved when the document succeeds.
func (a *App) GetStock(ctx context.Context, ticker string) (*models.StockDocument, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if err := ValidateTicker(symbol); err != nil {
		return nil, err
	}

	doc, err := a.buildOne(ctx, symbol)
	if err != nil {
		return nil, err
	}
	doc.DadosMercado.TesouroEUA10Anos = a.treasury.Resolve(ctx).Valor
	return doc, nil
}

// GetStocks builds a document per ticker in order. The treasury yield is
// resolved once and shared. Failed tickers become inline failure entries.
func (a *App) GetStocks(ctx context.Context, tickers []string) models.MultiStockResponse {
	rate := a.treasury.Resolve(ctx).Valor
	a.metrics.RecordBatchTickers("acoes", len(tickers))

	resp := models.MultiStockResponse{
		Sucesso:           true,
		Total:             len(tickers),
		TaxaTesouro10Anos: rate,
		Acoes:             make([]any, 0, len(tickers)),
	}
	for _, ticker := range tickers {
		doc, err := a.buildChecked(ctx, ticker)
		if err != nil {
			resp.Acoes = append(resp.Acoes, models.NewTickerFailure(ticker, err))
			continue
		}
		doc.DadosMercado.TesouroEUA10Anos = rate
		resp.Acoes = append(resp.Acoes, doc)
		resp.Processadas++
	}
	return resp
}

// RunBatch is GetStocks for the POST batch endpoint: input beyond
// Batch.MaxTickers is dropped and successful entries carry sucesso:true.
func (a *App) RunBatch(ctx context.Context, tickers []string) models.BatchResponse {
	rate := a.treasury.Resolve(ctx).Valor

	if limit := a.cfg.Batch.MaxTickers; len(tickers) > limit {
		dropped := len(tickers) - limit
		observability.WithContext(ctx).Warn("batch truncated",
			"received", len(tickers),
			"limit", limit,
			"dropped", dropped)
		a.metrics.RecordBatchTruncated(dropped)
		tickers = tickers[:limit]
	}
	a.metrics.RecordBatchTickers("batch", len(tickers))

	resp := models.BatchResponse{
		Sucesso:           true,
		Total:             len(tickers),
		TaxaTesouro10Anos: rate,
		Resultados:        make([]any, 0, len(tickers)),
	}
	for _, ticker := range tickers {
		doc, err := a.buildChecked(ctx, ticker)
		if err != nil {
			resp.Resultados = append(resp.Resultados, models.NewTickerFailure(ticker, err))
			continue
		}
		doc.DadosMercado.TesouroEUA10Anos = rate
		doc.MarkSuccess()
		resp.Resultados = append(resp.Resultados, doc)
	}
	return resp
}

// TenYearRate resolves the 10-year yield through the fallback chain
func (a *App) TenYearRate(ctx context.Context) models.TreasuryRateResponse {
	return models.NewTreasuryRateResponse(a.treasury.Resolve(ctx))
}

// AllRates returns every named tenor with the current timestamp
func (a *App) AllRates(ctx context.Context) models.AllRatesResponse {
	return models.AllRatesResponse{
		DataHora: a.now().Format(time.RFC3339),
		Taxas:    a.treasury.TenorRates(ctx),
	}
}

// HealthReport is the /api/health body
type HealthReport struct {
	Status   string                                   `json:"status"`
	Cache    string                                   `json:"cache"`
	Error    string                                   `json:"error,omitempty"`
	Breakers map[string]services.CircuitBreakerStatus `json:"circuit_breakers,omitempty"`
}

// Health reports cache reachability and breaker states. A failing cache
// marks the report degraded.
func (a *App) Health(ctx context.Context) HealthReport {
	report := HealthReport{Status: "ok", Cache: "none"}
	if a.cache != nil {
		report.Cache = a.cache.Backend()
		if err := a.cache.Health(ctx); err != nil {
			report.Status = "degraded"
			report.Error = err.Error()
		}
	}
	if a.breakers != nil {
		report.Breakers = a.breakers.Status()
	}
	return report
}

// CleanCache removes expired cache entries
func (a *App) CleanCache(ctx context.Context) (int64, error) {
	if a.cache == nil {
		return 0, fmt.Errorf("response cache not configured")
	}
	return a.cache.CleanExpired(ctx)
}

func (a *App) buildChecked(ctx context.Context, ticker string) (*models.StockDocument, error) {
	if err := ValidateTicker(ticker); err != nil {
		a.metrics.RecordDocumentError(string(models.KindOf(err)))
		return nil, err
	}
	return a.buildOne(ctx, ticker)
}

func (a *App) buildOne(ctx context.Context, ticker string) (*models.StockDocument, error) {
	timer := a.metrics.NewTimer()

	doc, err := a.builder.Build(ctx, ticker)
	if err != nil {
		timer.ObserveDocument("error")
		a.metrics.RecordDocumentError(string(models.KindOf(err)))
		observability.WithContext(ctx).Warn("document build failed",
			"ticker", ticker,
			"kind", models.KindOf(err),
			"error", err)
		return nil, err
	}

	timer.ObserveDocument("success")
	return doc, nil
}
