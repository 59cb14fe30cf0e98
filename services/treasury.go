package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"analise-fundamental/config"
	"analise-fundamental/models"
	"analise-fundamental/observability"
)

// FallbackTreasuryRate is the documented approximation returned when every
// source fails. It is part of the public contract and is not configurable.
const FallbackTreasuryRate = 0.043

// Treasury source names reported in "fonte" and in metrics
const (
	SourceYahooTNX    = "yahoo_tnx"
	SourceTreasuryXML = "treasury_xml"
	SourceFiscalData  = "fiscal_data"
	SourceFallback    = "fallback"
)

// Yahoo index symbols quoting yields times 100
const (
	Index13Week = "^IRX"
	Index5Year  = "^FVX"
	Index10Year = "^TNX"
	Index30Year = "^TYX"
)

// YahooIndexSource reads the 10-year yield from the ^TNX index close
type YahooIndexSource struct {
	quotes IndexQuoteProvider
}

func NewYahooIndexSource(quotes IndexQuoteProvider) *YahooIndexSource {
	return &YahooIndexSource{quotes: quotes}
}

func (s *YahooIndexSource) Name() string { return SourceYahooTNX }

func (s *YahooIndexSource) FetchRate(ctx context.Context) (float64, error) {
	closeValue, err := s.quotes.LastClose(ctx, Index10Year)
	if err != nil {
		return 0, err
	}
	return closeValue / 100, nil
}

// TreasuryXMLSource reads the daily par yield curve feed published by the Treasury
type TreasuryXMLSource struct {
	client   *resty.Client
	url      string
	breakers *CircuitBreakerRegistry
	metrics  *observability.Metrics
}

func NewTreasuryXMLSource(client *resty.Client, url string, breakers *CircuitBreakerRegistry, metrics *observability.Metrics) *TreasuryXMLSource {
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	return &TreasuryXMLSource{client: client, url: url, breakers: breakers, metrics: metrics}
}

func (s *TreasuryXMLSource) Name() string { return SourceTreasuryXML }

type yieldFeed struct {
	Entries []yieldEntry `xml:"entry"`
}

type yieldEntry struct {
	Properties struct {
		NewDate  string `xml:"NEW_DATE"`
		BC10Year string `xml:"BC_10YEAR"`
	} `xml:"content>properties"`
}

func (s *TreasuryXMLSource) FetchRate(ctx context.Context) (float64, error) {
	return WithCircuitBreaker(ctx, s.breakers, BreakerTreasuryXML, func() (float64, error) {
		body, err := treasuryGet(ctx, s.client, s.metrics, SourceTreasuryXML, s.url, nil)
		if err != nil {
			return 0, err
		}
		return parseYieldFeed(body)
	})
}

// parseYieldFeed returns the 10-year yield of the most recent dated entry
// that reports one, as a decimal fraction
func parseYieldFeed(body []byte) (float64, error) {
	var feed yieldFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return 0, fmt.Errorf("failed to decode yield feed: %w", err)
	}

	var (
		latest time.Time
		value  string
	)
	for _, e := range feed.Entries {
		raw := strings.TrimSpace(e.Properties.BC10Year)
		if raw == "" || strings.TrimSpace(e.Properties.NewDate) == "" {
			continue
		}
		date, err := parseFeedDate(e.Properties.NewDate)
		if err != nil {
			continue
		}
		if value == "" || date.After(latest) {
			latest, value = date, raw
		}
	}
	if value == "" {
		return 0, errors.New("yield feed has no 10-year entry")
	}

	rate, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid BC_10YEAR %q: %w", value, err)
	}
	return rate.Div(decimal.NewFromInt(100)).InexactFloat64(), nil
}

func parseFeedDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised NEW_DATE %q", s)
}

// FiscalDataSource reads the average interest rate from the Fiscal Data API
type FiscalDataSource struct {
	client   *resty.Client
	url      string
	since    string
	breakers *CircuitBreakerRegistry
	metrics  *observability.Metrics
}

func NewFiscalDataSource(client *resty.Client, url, since string, breakers *CircuitBreakerRegistry, metrics *observability.Metrics) *FiscalDataSource {
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	return &FiscalDataSource{client: client, url: url, since: since, breakers: breakers, metrics: metrics}
}

func (s *FiscalDataSource) Name() string { return SourceFiscalData }

type fiscalDataResponse struct {
	Data []struct {
		RecordDate         string `json:"record_date"`
		AvgInterestRateAmt string `json:"avg_interest_rate_amt"`
	} `json:"data"`
}

func (s *FiscalDataSource) FetchRate(ctx context.Context) (float64, error) {
	return WithCircuitBreaker(ctx, s.breakers, BreakerFiscalData, func() (float64, error) {
		body, err := treasuryGet(ctx, s.client, s.metrics, SourceFiscalData, s.url, map[string]string{
			"filter":     "record_date:gte:" + s.since,
			"sort":       "-record_date",
			"page[size]": "1",
		})
		if err != nil {
			return 0, err
		}

		var resp fiscalDataResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return 0, fmt.Errorf("failed to decode fiscal data response: %w", err)
		}
		if len(resp.Data) == 0 {
			return 0, errors.New("fiscal data returned no records")
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(resp.Data[0].AvgInterestRateAmt))
		if err != nil {
			return 0, fmt.Errorf("invalid avg_interest_rate_amt %q: %w", resp.Data[0].AvgInterestRateAmt, err)
		}
		return rate.Div(decimal.NewFromInt(100)).InexactFloat64(), nil
	})
}

func treasuryGet(ctx context.Context, client *resty.Client, metrics *observability.Metrics, operation, url string, query map[string]string) ([]byte, error) {
	metrics.RecordExternalAPIRequest("treasury", operation)
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI("treasury", operation)

	observability.Debug("treasury request", "source", operation, "url", url)

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(url)
	if err != nil {
		metrics.RecordExternalAPIError("treasury", operation, "network")
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	if !resp.IsSuccess() {
		metrics.RecordExternalAPIError("treasury", operation, "http_status")
		return nil, fmt.Errorf("%s returned status %d", operation, resp.StatusCode())
	}
	return resp.Body(), nil
}

// TreasuryResolver produces the 10-year yield from an ordered chain of sources
type TreasuryResolver struct {
	sources []RateSource
	quotes  IndexQuoteProvider
	metrics *observability.Metrics
}

// NewTreasuryResolver tries sources in the given order. quotes serves the
// other tenors for TenorRates.
func NewTreasuryResolver(quotes IndexQuoteProvider, metrics *observability.Metrics, sources ...RateSource) *TreasuryResolver {
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	return &TreasuryResolver{sources: sources, quotes: quotes, metrics: metrics}
}

// NewDefaultTreasuryResolver wires the ^TNX index, the Treasury XML feed and
// the Fiscal Data API, in that order
func NewDefaultTreasuryResolver(cfg config.TreasuryConfig, quotes IndexQuoteProvider, breakers *CircuitBreakerRegistry, metrics *observability.Metrics) *TreasuryResolver {
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	client := resty.New().SetTimeout(cfg.Timeout)

	return NewTreasuryResolver(quotes, metrics,
		NewYahooIndexSource(quotes),
		NewTreasuryXMLSource(client, cfg.XMLURL, breakers, metrics),
		NewFiscalDataSource(client, cfg.FiscalDataURL, cfg.FiscalDataFrom, breakers, metrics),
	)
}

// Resolve returns the first finite rate any source produces, or
// FallbackTreasuryRate. It never fails.
func (r *TreasuryResolver) Resolve(ctx context.Context) models.TreasuryRate {
	for _, src := range r.sources {
		rate, err := src.FetchRate(ctx)
		if err == nil && isFinite(rate) {
			r.metrics.RecordTreasuryResolution(src.Name())
			return models.TreasuryRate{Valor: rate, Fonte: src.Name()}
		}
		if err == nil {
			err = fmt.Errorf("non-finite rate %v", rate)
		}
		r.metrics.RecordTreasurySourceFailure(src.Name())
		observability.WithContext(ctx).Warn("treasury source failed, trying next",
			"source", src.Name(),
			"error", err)
	}

	r.metrics.RecordTreasuryResolution(SourceFallback)
	observability.WithContext(ctx).Warn("all treasury sources failed, using fallback rate",
		"rate", FallbackTreasuryRate)
	return models.TreasuryRate{Valor: FallbackTreasuryRate, Fonte: SourceFallback}
}

// TenorRates reads each yield index once and maps it onto the named tenors.
// Tenors whose index could not be read are nil, except 10_anos which falls
// back to Resolve.
func (r *TreasuryResolver) TenorRates(ctx context.Context) models.TenorRates {
	read := make(map[string]*float64)
	for _, symbol := range []string{Index13Week, Index5Year, Index10Year, Index30Year} {
		if r.quotes == nil {
			break
		}
		closeValue, err := r.quotes.LastClose(ctx, symbol)
		if err != nil || !isFinite(closeValue) {
			observability.WithContext(ctx).Warn("yield index unavailable", "symbol", symbol, "error", err)
			continue
		}
		read[symbol] = ptr(closeValue / 100)
	}

	rates := models.TenorRates{
		UmMes:      clone(read[Index13Week]),
		TresMeses:  clone(read[Index13Week]),
		SeisMeses:  clone(read[Index5Year]),
		UmAno:      clone(read[Index5Year]),
		DoisAnos:   clone(read[Index5Year]),
		CincoAnos:  clone(read[Index5Year]),
		DezAnos:    clone(read[Index10Year]),
		TrintaAnos: clone(read[Index30Year]),
	}
	if rates.DezAnos == nil {
		rates.DezAnos = ptr(r.Resolve(ctx).Valor)
	}
	return rates
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ptr(v float64) *float64 {
	return &v
}

func clone(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return ptr(*p)
}
