// Package mocks provides an HTTP mock of the market data and treasury
// upstreams used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Paths served for the treasury sources
const (
	TreasuryXMLPath = "/treasury/yield.xml"
	FiscalDataPath  = "/fiscal/avg_interest_rates"
	ConsentPath     = "/consent"
)

// MockServer provides configurable mock responses for all external APIs.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	// Response configurations
	quotes      map[string]Quote
	statements  map[string]Statements
	closes      map[string][]float64
	yieldFeed   []YieldEntry
	fiscalRate  string
	crumb       string
	yahooStatus int

	// Error injection
	chartError    bool
	treasuryError bool
	fiscalError   bool

	// Request tracking for assertions
	requestLog []RequestLog
}

// NewMockServer creates a new mock server with default responses.
func NewMockServer() *MockServer {
	m := &MockServer{
		quotes:     make(map[string]Quote),
		statements: make(map[string]Statements),
		closes:     make(map[string][]float64),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler to route requests to appropriate mock handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
	})
	m.mu.Unlock()

	path := r.URL.Path

	switch {
	case strings.HasPrefix(path, "/v10/finance/quoteSummary/"):
		m.handleQuoteSummary(w, strings.TrimPrefix(path, "/v10/finance/quoteSummary/"))
	case strings.HasPrefix(path, "/ws/fundamentals-timeseries/v1/finance/timeseries/"):
		m.handleTimeseries(w, r, strings.TrimPrefix(path, "/ws/fundamentals-timeseries/v1/finance/timeseries/"))
	case strings.HasPrefix(path, "/v8/finance/chart/"):
		m.handleChart(w, strings.TrimPrefix(path, "/v8/finance/chart/"))
	case path == ConsentPath:
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "e2e", Path: "/"})
		w.WriteHeader(http.StatusNotFound)
	case path == "/v1/test/getcrumb":
		m.handleCrumb(w)
	case path == TreasuryXMLPath:
		m.handleTreasuryXML(w)
	case path == FiscalDataPath:
		m.handleFiscalData(w)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// CountRequests returns how many logged requests had a path starting with prefix
func (m *MockServer) CountRequests(prefix string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, req := range m.requestLog {
		if strings.HasPrefix(req.Path, prefix) {
			n++
		}
	}
	return n
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// SetQuote configures the quoteSummary response for ticker.
func (m *MockServer) SetQuote(ticker string, q Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[ticker] = q
}

// SetStatements configures the annual statement lines for ticker.
func (m *MockServer) SetStatements(ticker string, s Statements) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements[ticker] = s
}

// SetCloses configures the recent daily closes for an index symbol.
func (m *MockServer) SetCloses(symbol string, closes ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes[symbol] = closes
}

// SetYieldFeed replaces the Treasury XML feed entries.
func (m *MockServer) SetYieldFeed(entries ...YieldEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yieldFeed = entries
}

// SetFiscalRate configures avg_interest_rate_amt of the latest record.
func (m *MockServer) SetFiscalRate(rate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fiscalRate = rate
}

// SetYahooStatus forces every quoteSummary response to status. Zero restores
// normal behaviour.
func (m *MockServer) SetYahooStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yahooStatus = status
}

// SetChartError makes every index chart request fail.
func (m *MockServer) SetChartError(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chartError = fail
}

// SetTreasuryError makes the Treasury XML feed fail.
func (m *MockServer) SetTreasuryError(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.treasuryError = fail
}

// SetFiscalError makes the Fiscal Data API fail.
func (m *MockServer) SetFiscalError(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fiscalError = fail
}

// Reset restores default responses and clears injected errors.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes = make(map[string]Quote)
	m.statements = make(map[string]Statements)
	m.closes = make(map[string][]float64)
	m.yahooStatus = 0
	m.chartError = false
	m.treasuryError = false
	m.fiscalError = false
	m.requestLog = make([]RequestLog, 0)
	m.setDefaults()
}

func (m *MockServer) setDefaults() {
	m.crumb = "e2e-crumb"

	m.quotes["AAPL"] = Quote{
		ShortName:         "Apple Inc.",
		Sector:            "Technology",
		Industry:          "Consumer Electronics",
		CurrentPrice:      190.5,
		PreviousClose:     189.1,
		MarketCap:         2.95e12,
		Beta:              1.24,
		TrailingEPS:       6.42,
		ForwardEPS:        7.1,
		RevenueGrowth:     0.061,
		EarningsGrowth:    0.11,
		DebtToEquity:      181.3,
		ReturnOnEquity:    1.47,
		ProfitMargins:     0.253,
		SharesOutstanding: 15.5e9,
		BookValue:         4.4,
		DividendRate:      0.96,
		DividendYield:     0.0051,
		PayoutRatio:       0.15,
		TrailingPE:        29.7,
		FiftyTwoWeekHigh:  199.62,
		FiftyTwoWeekLow:   164.08,
	}
	m.statements["AAPL"] = Statements{
		"TotalRevenue":         {{"2023-09-30", 383e9}, {"2022-09-30", 394e9}, {"2021-09-30", 365e9}},
		"NetIncome":            {{"2023-09-30", 97e9}, {"2022-09-30", 99.8e9}, {"2021-09-30", 94.7e9}},
		"EBITDA":               {{"2023-09-30", 125.8e9}},
		"OrdinarySharesNumber": {{"2023-09-30", 15.55e9}, {"2022-09-30", 15.94e9}},
		"StockholdersEquity":   {{"2023-09-30", 62.1e9}},
		"TotalDebt":            {{"2023-09-30", 111e9}},
		"TotalAssets":          {{"2023-09-30", 352.6e9}},
		"OperatingCashFlow":    {{"2023-09-30", 110.5e9}},
		"CapitalExpenditure":   {{"2023-09-30", -10.9e9}},
	}
	m.quotes["NOPRICE"] = Quote{ShortName: "No Price Corp"}

	m.closes["^IRX"] = []float64{5.21, 5.2}
	m.closes["^FVX"] = []float64{4.12, 4.1}
	m.closes["^TNX"] = []float64{4.31, 4.25}
	m.closes["^TYX"] = []float64{4.45, 4.42}

	m.yieldFeed = []YieldEntry{
		{Date: "2024-05-01T00:00:00", TenYear: "4.63"},
		{Date: "2024-05-02T00:00:00", TenYear: "4.58"},
	}
	m.fiscalRate = "3.215"
}

func (m *MockServer) handleQuoteSummary(w http.ResponseWriter, symbol string) {
	m.mu.RLock()
	status := m.yahooStatus
	q, ok := m.quotes[symbol]
	m.mu.RUnlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"quoteSummary": map[string]any{
				"result": nil,
				"error":  map[string]string{"code": "Not Found", "description": "Quote not found for ticker symbol: " + symbol},
			},
		})
		return
	}

	modules := map[string]any{
		"price": compact(map[string]any{
			"shortName":                  q.ShortName,
			"regularMarketPreviousClose": raw(q.PreviousClose),
			"marketCap":                  raw(q.MarketCap),
		}),
		"summaryDetail": compact(map[string]any{
			"beta":             raw(q.Beta),
			"dividendRate":     raw(q.DividendRate),
			"dividendYield":    raw(q.DividendYield),
			"payoutRatio":      raw(q.PayoutRatio),
			"trailingPE":       raw(q.TrailingPE),
			"fiftyTwoWeekHigh": raw(q.FiftyTwoWeekHigh),
			"fiftyTwoWeekLow":  raw(q.FiftyTwoWeekLow),
		}),
		"financialData": compact(map[string]any{
			"currentPrice":   raw(q.CurrentPrice),
			"revenueGrowth":  raw(q.RevenueGrowth),
			"earningsGrowth": raw(q.EarningsGrowth),
			"debtToEquity":   raw(q.DebtToEquity),
			"returnOnEquity": raw(q.ReturnOnEquity),
			"profitMargins":  raw(q.ProfitMargins),
			"freeCashflow":   raw(q.FreeCashflow),
		}),
		"defaultKeyStatistics": compact(map[string]any{
			"trailingEps":       raw(q.TrailingEPS),
			"forwardEps":        raw(q.ForwardEPS),
			"sharesOutstanding": raw(q.SharesOutstanding),
			"bookValue":         raw(q.BookValue),
		}),
		"assetProfile": compact(map[string]any{
			"sector":   q.Sector,
			"industry": q.Industry,
		}),
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"quoteSummary": map[string]any{
			"result": []any{modules},
			"error":  nil,
		},
	})
}

func (m *MockServer) handleTimeseries(w http.ResponseWriter, r *http.Request, symbol string) {
	m.mu.RLock()
	statements := m.statements[symbol]
	m.mu.RUnlock()

	results := make([]any, 0)
	for _, typ := range strings.Split(r.URL.Query().Get("type"), ",") {
		points, ok := statements[strings.TrimPrefix(typ, "annual")]
		if !ok {
			continue
		}
		rendered := make([]any, 0, len(points))
		for _, p := range points {
			rendered = append(rendered, map[string]any{
				"asOfDate":      p.AsOfDate,
				"periodType":    "12M",
				"reportedValue": map[string]any{"raw": p.Value, "fmt": fmt.Sprintf("%.2f", p.Value)},
			})
		}
		results = append(results, map[string]any{
			"meta": map[string]any{"symbol": []string{symbol}, "type": []string{typ}},
			typ:    rendered,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timeseries": map[string]any{"result": results, "error": nil},
	})
}

func (m *MockServer) handleChart(w http.ResponseWriter, symbol string) {
	m.mu.RLock()
	fail := m.chartError
	closes, ok := m.closes[symbol]
	m.mu.RUnlock()

	if fail {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"chart": map[string]any{
				"result": nil,
				"error":  map[string]string{"code": "Not Found", "description": "No data found, symbol may be delisted"},
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta":       map[string]any{"symbol": symbol},
				"indicators": map[string]any{"quote": []any{map[string]any{"close": closes}}},
			}},
			"error": nil,
		},
	})
}

func (m *MockServer) handleCrumb(w http.ResponseWriter) {
	m.mu.RLock()
	crumb := m.crumb
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(crumb))
}

func (m *MockServer) handleTreasuryXML(w http.ResponseWriter) {
	m.mu.RLock()
	fail := m.treasuryError
	entries := append([]YieldEntry{}, m.yieldFeed...)
	m.mu.RUnlock()

	if fail {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8" standalone="yes"?>`)
	b.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata" xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices">`)
	for _, e := range entries {
		fmt.Fprintf(&b, `<entry><content type="application/xml"><m:properties><d:NEW_DATE m:type="Edm.DateTime">%s</d:NEW_DATE><d:BC_10YEAR m:type="Edm.Double">%s</d:BC_10YEAR></m:properties></content></entry>`, e.Date, e.TenYear)
	}
	b.WriteString(`</feed>`)

	w.Header().Set("Content-Type", "application/atom+xml")
	w.Write([]byte(b.String()))
}

func (m *MockServer) handleFiscalData(w http.ResponseWriter) {
	m.mu.RLock()
	fail := m.fiscalError
	rate := m.fiscalRate
	m.mu.RUnlock()

	if fail {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": []any{map[string]string{
			"record_date":           "2024-04-30",
			"security_desc":         "Total Marketable",
			"avg_interest_rate_amt": rate,
		}},
	})
}

func raw(v float64) any {
	if v == 0 {
		return nil
	}
	return map[string]any{"raw": v, "fmt": fmt.Sprintf("%.2f", v)}
}

// compact drops nil and empty string values
func compact(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == nil || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
