package services

import (
	"context"

	"analise-fundamental/models"
)

// QuoteProvider defines the company data operations of the market data provider
type QuoteProvider interface {
	GetQuote(ctx context.Context, ticker string) (models.QuoteSnapshot, error)
	GetFinancials(ctx context.Context, ticker string) (*models.Financials, error)
}

// IndexQuoteProvider defines the index close lookup used for treasury yields
type IndexQuoteProvider interface {
	LastClose(ctx context.Context, symbol string) (float64, error)
}

// MarketDataProvider is the full provider surface
type MarketDataProvider interface {
	QuoteProvider
	IndexQuoteProvider
}

// RateSource is one link of the treasury fallback chain. Rates are decimal
// fractions (0.043 for 4.3%).
type RateSource interface {
	Name() string
	FetchRate(ctx context.Context) (float64, error)
}

// TreasuryRateProvider defines the treasury yield operations
type TreasuryRateProvider interface {
	Resolve(ctx context.Context) models.TreasuryRate
	TenorRates(ctx context.Context) models.TenorRates
}

// Compile-time interface verification
var _ MarketDataProvider = (*YahooService)(nil)
var _ TreasuryRateProvider = (*TreasuryResolver)(nil)
var _ RateSource = (*YahooIndexSource)(nil)
var _ RateSource = (*TreasuryXMLSource)(nil)
var _ RateSource = (*FiscalDataSource)(nil)
