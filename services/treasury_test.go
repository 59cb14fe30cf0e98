package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"analise-fundamental/config"
	"analise-fundamental/observability"
)

const yieldFeedXML = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<feed xml:base="https://data.treasury.gov/Feed.svc/" xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices" xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata" xmlns="http://www.w3.org/2005/Atom">
  <title type="text">DailyTreasuryYieldCurveRateData</title>
  <entry>
    <id>1</id>
    <content type="application/xml">
      <m:properties>
        <d:NEW_DATE m:type="Edm.DateTime">2024-03-01T00:00:00</d:NEW_DATE>
        <d:BC_10YEAR m:type="Edm.Double">4.18</d:BC_10YEAR>
      </m:properties>
    </content>
  </entry>
  <entry>
    <id>2</id>
    <content type="application/xml">
      <m:properties>
        <d:NEW_DATE m:type="Edm.DateTime">2024-03-05T00:00:00</d:NEW_DATE>
        <d:BC_10YEAR m:type="Edm.Double">4.13</d:BC_10YEAR>
      </m:properties>
    </content>
  </entry>
  <entry>
    <id>3</id>
    <content type="application/xml">
      <m:properties>
        <d:NEW_DATE m:type="Edm.DateTime">2024-03-06T00:00:00</d:NEW_DATE>
        <d:BC_10YEAR m:null="true" />
      </m:properties>
    </content>
  </entry>
  <entry>
    <id>4</id>
    <content type="application/xml">
      <m:properties>
        <d:NEW_DATE m:type="Edm.DateTime">2024-03-04T00:00:00</d:NEW_DATE>
        <d:BC_10YEAR m:type="Edm.Double">4.22</d:BC_10YEAR>
      </m:properties>
    </content>
  </entry>
</feed>`

const fiscalDataJSON = `{"data": [{"record_date": "2025-05-31", "security_desc": "Treasury Notes", "avg_interest_rate_amt": "3.215"}], "meta": {"count": 1}}`

// stubSource is a scripted RateSource
type stubSource struct {
	name  string
	rate  float64
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchRate(context.Context) (float64, error) {
	s.calls++
	return s.rate, s.err
}

// stubIndexQuotes serves LastClose from a map and counts calls per symbol
type stubIndexQuotes struct {
	mu     sync.Mutex
	closes map[string]float64
	calls  map[string]int
}

func newStubIndexQuotes(closes map[string]float64) *stubIndexQuotes {
	return &stubIndexQuotes{closes: closes, calls: make(map[string]int)}
}

func (s *stubIndexQuotes) LastClose(_ context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	v, ok := s.closes[symbol]
	if !ok {
		return 0, errors.New("no data")
	}
	return v, nil
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func TestTreasuryResolver_FallbackChain(t *testing.T) {
	failing := errors.New("boom")

	tests := []struct {
		name      string
		sources   []*stubSource
		wantRate  float64
		wantFonte string
		wantCalls []int
	}{
		{
			name: "first source wins",
			sources: []*stubSource{
				{name: "a", rate: 0.0425},
				{name: "b", rate: 0.05},
				{name: "c", rate: 0.06},
			},
			wantRate: 0.0425, wantFonte: "a", wantCalls: []int{1, 0, 0},
		},
		{
			name: "second after first fails",
			sources: []*stubSource{
				{name: "a", err: failing},
				{name: "b", rate: 0.05},
				{name: "c", rate: 0.06},
			},
			wantRate: 0.05, wantFonte: "b", wantCalls: []int{1, 1, 0},
		},
		{
			name: "third after two fail",
			sources: []*stubSource{
				{name: "a", err: failing},
				{name: "b", err: failing},
				{name: "c", rate: 0.06},
			},
			wantRate: 0.06, wantFonte: "c", wantCalls: []int{1, 1, 1},
		},
		{
			name: "constant when all fail",
			sources: []*stubSource{
				{name: "a", err: failing},
				{name: "b", err: failing},
				{name: "c", err: failing},
			},
			wantRate: 0.043, wantFonte: SourceFallback, wantCalls: []int{1, 1, 1},
		},
		{
			name: "non-finite rates are failures",
			sources: []*stubSource{
				{name: "a", rate: math.NaN()},
				{name: "b", rate: math.Inf(1)},
				{name: "c", err: failing},
			},
			wantRate: 0.043, wantFonte: SourceFallback, wantCalls: []int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := make([]RateSource, len(tt.sources))
			for i, s := range tt.sources {
				sources[i] = s
			}
			r := NewTreasuryResolver(nil, testMetrics(), sources...)

			got := r.Resolve(context.Background())
			if got.Valor != tt.wantRate || got.Fonte != tt.wantFonte {
				t.Errorf("Resolve() = %+v, want {%v %s}", got, tt.wantRate, tt.wantFonte)
			}
			for i, s := range tt.sources {
				if s.calls != tt.wantCalls[i] {
					t.Errorf("source %s called %d times, want %d", s.name, s.calls, tt.wantCalls[i])
				}
			}
		})
	}
}

func TestTreasuryResolver_Metrics(t *testing.T) {
	m := testMetrics()
	r := NewTreasuryResolver(nil, m,
		&stubSource{name: SourceYahooTNX, err: errors.New("down")},
		&stubSource{name: SourceTreasuryXML, rate: 0.041},
	)

	r.Resolve(context.Background())

	if got := testutil.ToFloat64(m.TreasurySourceFailuresTotal.WithLabelValues(SourceYahooTNX)); got != 1 {
		t.Errorf("expected 1 yahoo failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.TreasuryResolutionsTotal.WithLabelValues(SourceTreasuryXML)); got != 1 {
		t.Errorf("expected 1 treasury_xml resolution, got %f", got)
	}
}

func TestFallbackTreasuryRate(t *testing.T) {
	if FallbackTreasuryRate != 0.043 {
		t.Errorf("FallbackTreasuryRate = %v, want 0.043", FallbackTreasuryRate)
	}
}

func TestYahooIndexSource(t *testing.T) {
	quotes := newStubIndexQuotes(map[string]float64{Index10Year: 4.25})
	src := NewYahooIndexSource(quotes)

	got, err := src.FetchRate(context.Background())
	if err != nil {
		t.Fatalf("FetchRate failed: %v", err)
	}
	if got != 0.0425 {
		t.Errorf("FetchRate = %v, want 0.0425", got)
	}
	if src.Name() != SourceYahooTNX {
		t.Errorf("Name = %q", src.Name())
	}

	if _, err := NewYahooIndexSource(newStubIndexQuotes(nil)).FetchRate(context.Background()); err == nil {
		t.Error("expected error when the index has no data")
	}
}

func TestParseYieldFeed(t *testing.T) {
	got, err := parseYieldFeed([]byte(yieldFeedXML))
	if err != nil {
		t.Fatalf("parseYieldFeed failed: %v", err)
	}
	// 2024-03-06 has no value, so 2024-03-05 is the latest usable entry
	if got != 0.0413 {
		t.Errorf("parseYieldFeed = %v, want 0.0413", got)
	}

	tests := []struct {
		name string
		body string
	}{
		{"not xml", "<html"},
		{"no entries", `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`},
		{"no 10-year values", `<feed><entry><content><properties><NEW_DATE>2024-01-02T00:00:00</NEW_DATE><BC_10YEAR></BC_10YEAR></properties></content></entry></feed>`},
		{"bad number", `<feed><entry><content><properties><NEW_DATE>2024-01-02T00:00:00</NEW_DATE><BC_10YEAR>n/a</BC_10YEAR></properties></content></entry></feed>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseYieldFeed([]byte(tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// newTreasuryServer serves a fixed response and returns a getter for the
// query of the last request
func newTreasuryServer(t *testing.T, status int, body, contentType string) (*httptest.Server, func() url.Values) {
	t.Helper()
	var (
		mu   sync.Mutex
		last url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.URL.Query()
		mu.Unlock()
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, func() url.Values {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestTreasuryXMLSource_FetchRate(t *testing.T) {
	srv, _ := newTreasuryServer(t, http.StatusOK, yieldFeedXML, "application/xml")
	m := testMetrics()
	src := NewTreasuryXMLSource(resty.New().SetTimeout(time.Second), srv.URL+"/feed?data=yield", nil, m)

	got, err := src.FetchRate(context.Background())
	if err != nil {
		t.Fatalf("FetchRate failed: %v", err)
	}
	if got != 0.0413 {
		t.Errorf("FetchRate = %v, want 0.0413", got)
	}
	if got := testutil.ToFloat64(m.ExternalAPIRequestsTotal.WithLabelValues("treasury", SourceTreasuryXML)); got != 1 {
		t.Errorf("expected 1 request metric, got %f", got)
	}
}

func TestTreasuryXMLSource_HTTPError(t *testing.T) {
	srv, _ := newTreasuryServer(t, http.StatusServiceUnavailable, "", "text/plain")
	src := NewTreasuryXMLSource(resty.New(), srv.URL, nil, testMetrics())

	if _, err := src.FetchRate(context.Background()); err == nil {
		t.Error("expected error for a non-2xx response")
	}
}

func TestFiscalDataSource_FetchRate(t *testing.T) {
	srv, lastQuery := newTreasuryServer(t, http.StatusOK, fiscalDataJSON, "application/json")
	src := NewFiscalDataSource(resty.New(), srv.URL, "2024-01-01", nil, testMetrics())

	got, err := src.FetchRate(context.Background())
	if err != nil {
		t.Fatalf("FetchRate failed: %v", err)
	}
	if got != 0.03215 {
		t.Errorf("FetchRate = %v, want 0.03215", got)
	}

	q := lastQuery()
	if q.Get("filter") != "record_date:gte:2024-01-01" {
		t.Errorf("filter = %q", q.Get("filter"))
	}
	if q.Get("sort") != "-record_date" {
		t.Errorf("sort = %q", q.Get("sort"))
	}
	if q.Get("page[size]") != "1" {
		t.Errorf("page[size] = %q", q.Get("page[size]"))
	}
}

func TestFiscalDataSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty data", http.StatusOK, `{"data": []}`},
		{"missing amount", http.StatusOK, `{"data": [{"record_date": "2025-05-31"}]}`},
		{"bad json", http.StatusOK, `{"data": `},
		{"server error", http.StatusInternalServerError, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTreasuryServer(t, tt.status, tt.body, "application/json")
			src := NewFiscalDataSource(resty.New(), srv.URL, "2024-01-01", nil, testMetrics())
			if _, err := src.FetchRate(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewDefaultTreasuryResolver_FallsThroughToFiscalData(t *testing.T) {
	xmlSrv, _ := newTreasuryServer(t, http.StatusBadGateway, "", "text/plain")
	fiscalSrv, _ := newTreasuryServer(t, http.StatusOK, fiscalDataJSON, "application/json")

	cfg := config.NewTestConfig().Treasury
	cfg.XMLURL = xmlSrv.URL
	cfg.FiscalDataURL = fiscalSrv.URL

	m := testMetrics()
	r := NewDefaultTreasuryResolver(cfg, newStubIndexQuotes(nil), NewCircuitBreakerRegistry(config.NewTestConfig().CircuitBreaker, m), m)

	got := r.Resolve(context.Background())
	if got.Fonte != SourceFiscalData || got.Valor != 0.03215 {
		t.Errorf("Resolve() = %+v, want {0.03215 fiscal_data}", got)
	}
}

func TestTreasuryResolver_TenorRates(t *testing.T) {
	quotes := newStubIndexQuotes(map[string]float64{
		Index13Week: 5.2,
		Index5Year:  4.1,
		Index10Year: 4.3,
		// ^TYX unavailable
	})
	r := NewTreasuryResolver(quotes, testMetrics(), &stubSource{name: "unused", rate: 0.09})

	rates := r.TenorRates(context.Background())

	tests := []struct {
		name string
		got  *float64
		want *float64
	}{
		{"1_mes", rates.UmMes, ptr(0.052)},
		{"3_meses", rates.TresMeses, ptr(0.052)},
		{"6_meses", rates.SeisMeses, ptr(0.041)},
		{"1_ano", rates.UmAno, ptr(0.041)},
		{"2_anos", rates.DoisAnos, ptr(0.041)},
		{"5_anos", rates.CincoAnos, ptr(0.041)},
		{"10_anos", rates.DezAnos, ptr(0.043)},
		{"30_anos", rates.TrintaAnos, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			switch {
			case tt.want == nil && tt.got != nil:
				t.Errorf("%s = %v, want nil", tt.name, *tt.got)
			case tt.want != nil && tt.got == nil:
				t.Errorf("%s = nil, want %v", tt.name, *tt.want)
			case tt.want != nil && math.Abs(*tt.got-*tt.want) > 1e-12:
				t.Errorf("%s = %v, want %v", tt.name, *tt.got, *tt.want)
			}
		})
	}

	for symbol, n := range quotes.calls {
		if n != 1 {
			t.Errorf("index %s fetched %d times, want 1", symbol, n)
		}
	}
	if rates.UmMes == rates.TresMeses {
		t.Error("tenors sharing an index must not share a pointer")
	}
}

func TestTreasuryResolver_TenorRates_TenYearFallsBackToResolve(t *testing.T) {
	r := NewTreasuryResolver(newStubIndexQuotes(nil), testMetrics(),
		&stubSource{name: SourceTreasuryXML, rate: 0.0413})

	rates := r.TenorRates(context.Background())

	if rates.DezAnos == nil || *rates.DezAnos != 0.0413 {
		t.Errorf("10_anos = %v, want 0.0413 from the resolver", rates.DezAnos)
	}
	if rates.UmMes != nil || rates.TrintaAnos != nil {
		t.Error("expected unavailable tenors to be nil")
	}
}
