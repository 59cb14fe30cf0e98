// Package fundamentals maps provider records onto the stock document.
package fundamentals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"analise-fundamental/extract"
	"analise-fundamental/models"
	"analise-fundamental/observability"
	"analise-fundamental/services"
)

// Statement line-item candidates, in priority order
var (
	netIncomeLabels  = []string{"Net Income", "Net Income Common Stockholders"}
	revenueLabels    = []string{"Total Revenue", "Operating Revenue"}
	ebitdaLabels     = []string{"EBITDA", "Normalized EBITDA"}
	sharesLabels     = []string{"Ordinary Shares Number", "Share Issued"}
	debtLabels       = []string{"Total Debt"}
	equityLabels     = []string{"Stockholders Equity", "Total Equity Gross Minority Interest"}
	intangibleLabels = []string{"Intangible Assets", "Other Intangible Assets"}
	goodwillLabels   = []string{"Goodwill"}
	assetsLabels     = []string{"Total Assets"}
	opCashLabels     = []string{"Operating Cash Flow", "Total Cash From Operating Activities"}
	capexLabels      = []string{"Capital Expenditure", "Capital Expenditures"}
	sbcLabels        = []string{"Stock Based Compensation", "Share Based Compensation"}
)

// Builder produces stock documents from the market data provider
type Builder struct {
	provider services.QuoteProvider
	now      func() time.Time
}

func NewBuilder(provider services.QuoteProvider) *Builder {
	return &Builder{provider: provider, now: time.Now}
}

// PriceNotFound is the error for a ticker without a usable price
func PriceNotFound(ticker string, cause error) error {
	return models.NewError(models.KindNotFound, fmt.Sprintf("Preço não encontrado para %s", ticker), cause)
}

// Build fetches the quote and statements for ticker and maps them onto a
// document. Only a missing quote or price fails; every other field falls
// back to its default. tesouroEUA10Anos is left at 0.
func (b *Builder) Build(ctx context.Context, ticker string) (*models.StockDocument, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return nil, models.ErrInvalidInput.WithMsg("Ticker não fornecido")
	}
	log := observability.WithContext(ctx).With("ticker", symbol)

	quote, err := b.provider.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, PriceNotFound(symbol, err)
		}
		return nil, err
	}

	price, ok := extract.FirstNonZero(quote, "currentPrice", "regularMarketPreviousClose")
	if !ok {
		return nil, PriceNotFound(symbol, nil)
	}

	fin, err := b.provider.GetFinancials(ctx, symbol)
	if err != nil {
		log.Warn("financial statements unavailable, using defaults", "error", err)
	}
	if fin == nil {
		fin = &models.Financials{}
	}

	doc := &models.StockDocument{
		Ticker:               symbol,
		NomeEmpresa:          extract.Text(quote, "shortName", models.UnknownLabel),
		Setor:                extract.Text(quote, "sector", models.UnknownLabel),
		Industria:            extract.Text(quote, "industry", models.UnknownLabel),
		PrecoAtual:           finite(price),
		Beta:                 finite(extract.NonZero(quote, "beta", models.DefaultBeta)),
		CapitalizacaoMercado: truncate(extract.Field(quote, "marketCap", 0)),
		DadosFinanceiros:     financialData(quote, fin),
		DadosMercado: models.DadosMercado{
			Maximo52Semanas: finite(extract.Field(quote, "fiftyTwoWeekHigh", 0)),
			Minimo52Semanas: finite(extract.Field(quote, "fiftyTwoWeekLow", 0)),
		},
		Metadados: models.Metadados{
			FonteDados:        models.DataSourceYahoo,
			UltimaAtualizacao: b.now().Format(time.RFC3339),
		},
	}

	return doc, nil
}

func financialData(q models.QuoteSnapshot, fin *models.Financials) models.DadosFinanceiros {
	income, balance, cash := fin.Income, fin.BalanceSheet, fin.CashFlow

	netIncome := extract.Series(income, netIncomeLabels, models.MarginHistoryYears, 0)
	revenue := extract.Series(income, revenueLabels, models.MarginHistoryYears, 0)

	sharesHistory := extract.Series(balance, sharesLabels, models.SharesHistoryYears, 0)
	shares := sharesHistory[0]
	if !(shares > 0) {
		shares = extract.Field(q, "sharesOutstanding", 0)
	}

	operatingCash := extract.Scalar(cash, opCashLabels, extract.Latest, 0)
	capex := extract.Scalar(cash, capexLabels, extract.Latest, 0)

	return models.DadosFinanceiros{
		LucrosPorAcaoTTM:           finite(extract.Field(q, "trailingEps", 0)),
		LucrosPorAcaoFuturo:        finite(extract.Field(q, "forwardEps", 0)),
		CrescimentoReceita5A:       finite(extract.NonZero(q, "revenueGrowth", models.DefaultGrowthRate)),
		CrescimentoLucros5A:        finite(extract.NonZero(q, "earningsGrowth", models.DefaultGrowthRate)),
		DividaEbitda:               finite(debtToEBITDA(q, income, balance)),
		DividaCapitalProprio:       finite(extract.Field(q, "debtToEquity", 0) / 100),
		ROE:                        finite(extract.Field(q, "returnOnEquity", 0)),
		ROIC:                       0,
		MargemLiquidaAtual:         finite(extract.Field(q, "profitMargins", 0)),
		HistoricoMargemLiquida:     finiteAll(extract.Ratio(netIncome, revenue)),
		AcoesCirculacaoAtual:       truncate(shares),
		HistoricoAcoesCirculacao:   truncateAll(sharesHistory),
		HistoricoLucros:            finiteAll(extract.Series(income, netIncomeLabels, models.EarningsHistoryYears, 0)),
		FluxoCaixaOperacional:      finite(operatingCash),
		Capex:                      finite(capex),
		FluxoCaixaLivre:            finite(extract.NonZero(q, "freeCashflow", operatingCash+capex)),
		CompensacaoBaseadaAcoes:    finite(extract.Scalar(cash, sbcLabels, extract.Latest, 0)),
		ValorContabilisticoPorAcao: finite(extract.Field(q, "bookValue", 0)),
		CapitalProprio:             finite(extract.Scalar(balance, equityLabels, extract.Latest, 0)),
		Intangiveis:                finite(extract.Scalar(balance, intangibleLabels, extract.Latest, 0)),
		Goodwill:                   finite(extract.Scalar(balance, goodwillLabels, extract.Latest, 0)),
		AtivosTotal:                finite(extract.Scalar(balance, assetsLabels, extract.Latest, 0)),
		DividendoPorAcao:           finite(extract.Field(q, "dividendRate", 0)),
		RendimentoDividendo:        finite(extract.Field(q, "dividendYield", 0)),
		RacioDistribuicao:          finite(extract.Field(q, "payoutRatio", 0)),
		RacioPrecoLucroTTM:         finite(extract.Field(q, "trailingPE", 0)),
		RacioPrecoLucroMedia5A:     0,
	}
}

// debtToEBITDA divides total debt by EBITDA from the income statement, then
// from the snapshot. Without any EBITDA it estimates twice debt/equity, or 0.
func debtToEBITDA(q models.QuoteSnapshot, income, balance *models.Statement) float64 {
	debt := extract.Scalar(balance, debtLabels, extract.Latest, 0)

	ebitda := extract.Scalar(income, ebitdaLabels, extract.Latest, 0)
	if ebitda == 0 {
		ebitda = extract.Field(q, "ebitda", 0)
	}
	if ebitda != 0 {
		return debt / ebitda
	}

	if dte, ok := q.Float("debtToEquity"); ok {
		return dte / 100 * 2
	}
	return 0
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finiteAll(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = finite(v)
	}
	return out
}

// truncate converts toward zero; values outside the int64 range become 0
func truncate(v float64) int64 {
	v = finite(v)
	if v >= math.MaxInt64 || v <= math.MinInt64 {
		return 0
	}
	return int64(v)
}

func truncateAll(vs []float64) []int64 {
	out := make([]int64, len(vs))
	for i, v := range vs {
		out[i] = truncate(v)
	}
	return out
}
