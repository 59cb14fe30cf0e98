package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"analise-fundamental/config"
	"analise-fundamental/models"
	"analise-fundamental/observability"
	"analise-fundamental/repository"
)

const yahooService = "yahoo"

// Yahoo API operations, used as metric labels and cache key prefixes
const (
	opQuoteSummary = "quote_summary"
	opTimeseries   = "timeseries"
	opChart        = "chart"
	opCrumb        = "crumb"
)

// quoteModules are flattened into one snapshot; on key clashes the earlier module wins
var quoteModules = []string{
	"price",
	"summaryDetail",
	"financialData",
	"defaultKeyStatistics",
	"assetProfile",
	"quoteType",
}

// statementLine maps a fundamentals-timeseries key to the line-item label
// the extractors look up
type statementLine struct {
	key   string
	label string
}

var incomeLines = []statementLine{
	{"TotalRevenue", "Total Revenue"},
	{"OperatingRevenue", "Operating Revenue"},
	{"NetIncome", "Net Income"},
	{"NetIncomeCommonStockholders", "Net Income Common Stockholders"},
	{"EBITDA", "EBITDA"},
	{"NormalizedEBITDA", "Normalized EBITDA"},
}

var balanceSheetLines = []statementLine{
	{"OrdinarySharesNumber", "Ordinary Shares Number"},
	{"ShareIssued", "Share Issued"},
	{"Goodwill", "Goodwill"},
	{"OtherIntangibleAssets", "Other Intangible Assets"},
	{"GoodwillAndOtherIntangibleAssets", "Goodwill And Other Intangible Assets"},
	{"StockholdersEquity", "Stockholders Equity"},
	{"TotalEquityGrossMinorityInterest", "Total Equity Gross Minority Interest"},
	{"TotalDebt", "Total Debt"},
	{"TotalAssets", "Total Assets"},
}

var cashFlowLines = []statementLine{
	{"OperatingCashFlow", "Operating Cash Flow"},
	{"CapitalExpenditure", "Capital Expenditure"},
	{"StockBasedCompensation", "Stock Based Compensation"},
	{"FreeCashFlow", "Free Cash Flow"},
}

// YahooDeps are the collaborators shared with the rest of the process
type YahooDeps struct {
	Cache    repository.ResponseCache // nil disables caching
	CacheTTL time.Duration
	Breakers *CircuitBreakerRegistry // nil disables the breaker
	Metrics  *observability.Metrics
}

// YahooService fetches quotes, annual statements and index closes from Yahoo Finance
type YahooService struct {
	client    *resty.Client
	cookieURL string
	timeout   time.Duration
	years     int

	cache    repository.ResponseCache
	cacheTTL time.Duration
	breakers *CircuitBreakerRegistry
	metrics  *observability.Metrics
	group    singleflight.Group

	crumbMu sync.Mutex
	crumb   string

	now func() time.Time
}

// NewYahooService creates the provider session used for the lifetime of the process
func NewYahooService(cfg config.YahooConfig, deps YahooDeps) *YahooService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.GetMetrics()
	}

	return &YahooService{
		client:    client,
		cookieURL: cfg.CookieURL,
		timeout:   cfg.Timeout,
		years:     cfg.StatementYears,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		breakers:  deps.Breakers,
		metrics:   metrics,
		now:       time.Now,
	}
}

// GetQuote returns the flattened key/value snapshot for a ticker
func (s *YahooService) GetQuote(ctx context.Context, ticker string) (models.QuoteSnapshot, error) {
	key := cacheKey(opQuoteSummary, ticker)

	return fetchDecoded(ctx, s, opQuoteSummary, key,
		func(ctx context.Context) ([]byte, error) {
			return s.get(ctx, opQuoteSummary, "/v10/finance/quoteSummary/{symbol}",
				map[string]string{"symbol": ticker},
				map[string]string{"modules": strings.Join(quoteModules, ",")},
				true)
		},
		decodeQuoteSummary,
	)
}

// GetFinancials returns the three annual statements. Statements that could
// not be fetched are nil and their errors are joined into the returned error;
// the returned Financials is never nil.
func (s *YahooService) GetFinancials(ctx context.Context, ticker string) (*models.Financials, error) {
	fin := &models.Financials{}

	var errs []error
	var err error
	if fin.Income, err = s.statement(ctx, ticker, "income", incomeLines); err != nil {
		errs = append(errs, fmt.Errorf("income statement: %w", err))
	}
	if fin.BalanceSheet, err = s.statement(ctx, ticker, "balance_sheet", balanceSheetLines); err != nil {
		errs = append(errs, fmt.Errorf("balance sheet: %w", err))
	}
	if fin.CashFlow, err = s.statement(ctx, ticker, "cash_flow", cashFlowLines); err != nil {
		errs = append(errs, fmt.Errorf("cash flow: %w", err))
	}

	return fin, errors.Join(errs...)
}

// LastClose returns the most recent daily close of a symbol such as ^TNX
func (s *YahooService) LastClose(ctx context.Context, symbol string) (float64, error) {
	key := cacheKey(opChart, symbol)

	return fetchDecoded(ctx, s, opChart, key,
		func(ctx context.Context) ([]byte, error) {
			return s.get(ctx, opChart, "/v8/finance/chart/{symbol}",
				map[string]string{"symbol": symbol},
				map[string]string{"range": "5d", "interval": "1d"},
				false)
		},
		decodeLastClose,
	)
}

func (s *YahooService) statement(ctx context.Context, ticker, kind string, lines []statementLine) (*models.Statement, error) {
	now := s.now().UTC()
	start := time.Date(now.Year()-s.years, time.January, 1, 0, 0, 0, 0, time.UTC)

	types := make([]string, len(lines))
	for i, l := range lines {
		types[i] = "annual" + l.key
	}

	key := cacheKey(opTimeseries, kind, ticker)

	return fetchDecoded(ctx, s, opTimeseries, key,
		func(ctx context.Context) ([]byte, error) {
			return s.get(ctx, opTimeseries, "/ws/fundamentals-timeseries/v1/finance/timeseries/{symbol}",
				map[string]string{"symbol": ticker},
				map[string]string{
					"type":    strings.Join(types, ","),
					"period1": strconv.FormatInt(start.Unix(), 10),
					"period2": strconv.FormatInt(now.Unix(), 10),
				},
				false)
		},
		func(body []byte) (*models.Statement, error) {
			return decodeTimeseries(body, lines)
		},
	)
}

// fetchDecoded serves a provider body from the response cache, or fetches it
// once per key across concurrent callers. Only bodies that decode are stored.
// The shared fetch is detached from any one caller's cancellation; each
// caller stops waiting when its own context ends.
func fetchDecoded[T any](ctx context.Context, s *YahooService, operation, key string,
	fetch func(context.Context) ([]byte, error), decode func([]byte) (T, error)) (T, error) {
	var zero T
	if body, ok := s.cacheGet(ctx, key); ok {
		v, err := decode(body)
		if err == nil {
			return v, nil
		}
		observability.Debug("discarding undecodable cached response", "key", key, "error", err)
	}

	type result struct {
		body  []byte
		value T
	}

	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout())
		defer cancel()

		body, err := WithCircuitBreaker(fetchCtx, s.breakers, BreakerYahoo, func() ([]byte, error) {
			return fetch(fetchCtx)
		})
		if err != nil {
			return nil, err
		}
		v, err := decode(body)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				s.metrics.RecordExternalAPIError(yahooService, operation, "decode")
			}
			return nil, err
		}
		s.cacheSet(fetchCtx, key, body)
		return result{body: body, value: v}, nil
	})

	select {
	case <-ctx.Done():
		return zero, models.NewError(models.KindUpstreamUnavailable, "",
			fmt.Errorf("yahoo %s: %w", operation, ctx.Err()))
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(result).value, nil
	}
}

// fetchTimeout bounds one shared fetch: the crumb handshake plus the request itself
func (s *YahooService) fetchTimeout() time.Duration {
	if s.timeout <= 0 {
		return 30 * time.Second
	}
	return 3 * s.timeout
}

// get performs one GET against the provider and classifies the outcome
func (s *YahooService) get(ctx context.Context, operation, path string, pathParams, query map[string]string, withCrumb bool) ([]byte, error) {
	s.metrics.RecordExternalAPIRequest(yahooService, operation)
	timer := s.metrics.NewTimer()
	defer timer.ObserveExternalAPI(yahooService, operation)

	req := s.client.R().
		SetContext(ctx).
		SetPathParams(pathParams).
		SetQueryParams(query)

	if withCrumb {
		crumb, err := s.getCrumb(ctx)
		if err != nil {
			observability.Debug("continuing without yahoo crumb", "error", err)
		} else if crumb != "" {
			req.SetQueryParam("crumb", crumb)
		}
	}

	observability.Debug("yahoo request", "operation", operation, "path", path, "params", pathParams)

	resp, err := req.Get(path)
	if err != nil {
		s.metrics.RecordExternalAPIError(yahooService, operation, "network")
		return nil, models.NewError(models.KindUpstreamUnavailable, "",
			fmt.Errorf("yahoo %s request failed: %w", operation, err))
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusNotFound:
		s.metrics.RecordExternalAPIError(yahooService, operation, "not_found")
		return nil, models.NewError(models.KindNotFound, "",
			fmt.Errorf("yahoo %s: %s not found", operation, pathParams["symbol"]))
	case status == http.StatusUnauthorized && withCrumb:
		s.resetCrumb()
		fallthrough
	case !resp.IsSuccess():
		s.metrics.RecordExternalAPIError(yahooService, operation, "http_status")
		return nil, models.NewError(models.KindUpstreamUnavailable, "",
			fmt.Errorf("yahoo %s returned status %d", operation, status))
	}

	return resp.Body(), nil
}

// getCrumb returns the session crumb, performing the cookie handshake on first use.
// An empty cookie URL disables the handshake. Concurrent callers share one
// handshake and crumbMu is never held across it.
func (s *YahooService) getCrumb(ctx context.Context) (string, error) {
	if s.cookieURL == "" {
		return "", nil
	}

	s.crumbMu.Lock()
	crumb := s.crumb
	s.crumbMu.Unlock()
	if crumb != "" {
		return crumb, nil
	}

	v, err, _ := s.group.Do(cacheKey(opCrumb), func() (any, error) {
		crumb, err := s.fetchCrumb(ctx)
		if err != nil {
			return "", err
		}
		s.crumbMu.Lock()
		s.crumb = crumb
		s.crumbMu.Unlock()
		return crumb, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *YahooService) fetchCrumb(ctx context.Context) (string, error) {
	// The consent endpoint answers with an error status but still sets the cookie
	if _, err := s.client.R().SetContext(ctx).Get(s.cookieURL); err != nil {
		return "", fmt.Errorf("failed to fetch consent cookie: %w", err)
	}

	s.metrics.RecordExternalAPIRequest(yahooService, opCrumb)
	resp, err := s.client.R().SetContext(ctx).Get("/v1/test/getcrumb")
	if err != nil {
		s.metrics.RecordExternalAPIError(yahooService, opCrumb, "network")
		return "", fmt.Errorf("failed to fetch crumb: %w", err)
	}
	crumb := strings.TrimSpace(resp.String())
	if !resp.IsSuccess() || crumb == "" {
		s.metrics.RecordExternalAPIError(yahooService, opCrumb, "http_status")
		return "", fmt.Errorf("crumb endpoint returned status %d", resp.StatusCode())
	}
	return crumb, nil
}

func (s *YahooService) resetCrumb() {
	s.crumbMu.Lock()
	s.crumb = ""
	s.crumbMu.Unlock()
}

func (s *YahooService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	backend := s.cache.Backend()

	body, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.RecordCacheLookup(backend, "error")
		observability.Warn("response cache lookup failed", "backend", backend, "key", key, "error", err)
		return nil, false
	case !ok:
		s.metrics.RecordCacheLookup(backend, "miss")
		return nil, false
	default:
		s.metrics.RecordCacheLookup(backend, "hit")
		return body, true
	}
}

func (s *YahooService) cacheSet(ctx context.Context, key string, body []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, body, s.cacheTTL); err != nil {
		observability.Warn("response cache store failed", "backend", s.cache.Backend(), "key", key, "error", err)
	}
}

func cacheKey(parts ...string) string {
	return yahooService + ":" + strings.Join(parts, ":")
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *yahooError) asError(symbolErr string) error {
	if e == nil {
		return nil
	}
	if strings.EqualFold(e.Code, "Not Found") {
		return models.NewError(models.KindNotFound, "", fmt.Errorf("%s: %s", symbolErr, e.Description))
	}
	return models.NewError(models.KindUpstreamUnavailable, "", fmt.Errorf("%s: %s %s", symbolErr, e.Code, e.Description))
}

type quoteSummaryEnvelope struct {
	QuoteSummary struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *yahooError                  `json:"error"`
	} `json:"quoteSummary"`
}

func decodeQuoteSummary(body []byte) (models.QuoteSnapshot, error) {
	var env quoteSummaryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, models.NewError(models.KindUpstreamUnavailable, "",
			fmt.Errorf("failed to decode quote summary: %w", err))
	}
	if err := env.QuoteSummary.Error.asError("quote summary"); err != nil {
		return nil, err
	}
	if len(env.QuoteSummary.Result) == 0 {
		return nil, models.NewError(models.KindNotFound, "", errors.New("quote summary returned no result"))
	}

	snapshot := models.QuoteSnapshot{}
	modules := env.QuoteSummary.Result[0]
	for _, name := range quoteModules {
		raw, ok := modules[name]
		if !ok {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		for k, v := range fields {
			if k == "maxAge" {
				continue
			}
			if _, exists := snapshot[k]; exists {
				continue
			}
			if flat, ok := flattenValue(v); ok {
				snapshot[k] = flat
			}
		}
	}

	if len(snapshot) == 0 {
		return nil, models.NewError(models.KindNotFound, "", errors.New("quote summary has no fields"))
	}
	return snapshot, nil
}

// flattenValue collapses {"raw": x, "fmt": "..."} objects to x and drops
// empty objects, arrays and nulls
func flattenValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		raw, ok := val["raw"]
		if !ok || raw == nil {
			return nil, false
		}
		return raw, true
	case []any:
		return nil, false
	default:
		return val, true
	}
}

type timeseriesPoint struct {
	AsOfDate      string `json:"asOfDate"`
	ReportedValue struct {
		Raw *float64 `json:"raw"`
	} `json:"reportedValue"`
}

type timeseriesEnvelope struct {
	Timeseries struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *yahooError                  `json:"error"`
	} `json:"timeseries"`
}

func decodeTimeseries(body []byte, lines []statementLine) (*models.Statement, error) {
	var env timeseriesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, models.NewError(models.KindUpstreamUnavailable, "",
			fmt.Errorf("failed to decode timeseries: %w", err))
	}
	if err := env.Timeseries.Error.asError("timeseries"); err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(lines))
	for _, l := range lines {
		labels["annual"+l.key] = l.label
	}

	cells := make(map[string]map[time.Time]float64)
	dates := make(map[time.Time]struct{})

	for _, result := range env.Timeseries.Result {
		var meta struct {
			Type []string `json:"type"`
		}
		if raw, ok := result["meta"]; !ok || json.Unmarshal(raw, &meta) != nil || len(meta.Type) == 0 {
			continue
		}
		typ := meta.Type[0]
		label, known := labels[typ]
		raw, ok := result[typ]
		if !known || !ok {
			continue
		}

		var points []*timeseriesPoint
		if err := json.Unmarshal(raw, &points); err != nil {
			continue
		}
		for _, p := range points {
			if p == nil || p.ReportedValue.Raw == nil {
				continue
			}
			date, err := time.Parse(time.DateOnly, p.AsOfDate)
			if err != nil {
				continue
			}
			if cells[label] == nil {
				cells[label] = make(map[time.Time]float64)
			}
			cells[label][date] = *p.ReportedValue.Raw
			dates[date] = struct{}{}
		}
	}

	if len(cells) == 0 {
		return nil, nil
	}

	periods := make([]time.Time, 0, len(dates))
	for d := range dates {
		periods = append(periods, d)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].After(periods[j]) })

	st := models.NewStatement(periods)
	for label, byDate := range cells {
		row := make([]float64, len(periods))
		for i, d := range periods {
			if v, ok := byDate[d]; ok {
				row[i] = v
			} else {
				row[i] = math.NaN()
			}
		}
		st.SetRow(label, row)
	}
	return st, nil
}

type chartEnvelope struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

func decodeLastClose(body []byte) (float64, error) {
	var env chartEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, models.NewError(models.KindUpstreamUnavailable, "",
			fmt.Errorf("failed to decode chart: %w", err))
	}
	if err := env.Chart.Error.asError("chart"); err != nil {
		return 0, err
	}
	if len(env.Chart.Result) == 0 {
		return 0, models.NewError(models.KindNotFound, "", errors.New("chart returned no result"))
	}

	r := env.Chart.Result[0]
	if len(r.Indicators.Quote) > 0 {
		closes := r.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if c := closes[i]; c != nil && !math.IsNaN(*c) && !math.IsInf(*c, 0) {
				return *c, nil
			}
		}
	}
	if p := r.Meta.RegularMarketPrice; p != nil {
		return *p, nil
	}
	return 0, models.NewError(models.KindNotFound, "", errors.New("chart has no closing price"))
}
