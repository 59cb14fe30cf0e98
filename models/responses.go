package models

import (
	"github.com/shopspring/decimal"
)

const (
	ServiceName    = "Rodrigo Silva Analise Fundamental API"
	ServiceVersion = "3.1"
)

// ServiceStatus is the /api/estado body
type ServiceStatus struct {
	Estado    string          `json:"estado"`
	Servico   string          `json:"servico"`
	Versao    string          `json:"versao"`
	Endpoints EndpointCatalog `json:"endpoints"`
}

// EndpointCatalog lists the public routes with a short description
type EndpointCatalog struct {
	Acao          string `json:"/api/acao/<ticker>"`
	Acoes         string `json:"/api/acoes"`
	Tesouro10Anos string `json:"/api/tesouro/10anos"`
	TesouroTodas  string `json:"/api/tesouro/todas"`
	Batch         string `json:"/api/batch"`
}

// NewServiceStatus returns the static service description
func NewServiceStatus() ServiceStatus {
	return ServiceStatus{
		Estado:  "online",
		Servico: ServiceName,
		Versao:  ServiceVersion,
		Endpoints: EndpointCatalog{
			Acao:          "Dados de uma ação",
			Acoes:         "Múltiplas ações (tickers=AAPL,MSFT,...)",
			Tesouro10Anos: "Taxa US 10Y",
			TesouroTodas:  "Todas as taxas",
			Batch:         "Processamento em lote",
		},
	}
}

// MultiStockResponse is the /api/acoes body. Acoes holds *StockDocument or
// TickerFailure values in request order.
type MultiStockResponse struct {
	Sucesso           bool    `json:"sucesso"`
	Total             int     `json:"total"`
	Processadas       int     `json:"processadas"`
	TaxaTesouro10Anos float64 `json:"taxa_tesouro_10anos"`
	Acoes             []any   `json:"acoes"`
}

// BatchResponse is the POST /api/batch body
type BatchResponse struct {
	Sucesso           bool    `json:"sucesso"`
	Total             int     `json:"total"`
	TaxaTesouro10Anos float64 `json:"taxa_tesouro_10anos"`
	Resultados        []any   `json:"resultados"`
}

// TreasuryRate is a resolved 10-year yield in decimal form and the source
// that produced it
type TreasuryRate struct {
	Valor float64
	Fonte string
}

// TreasuryRateResponse is the /api/tesouro/10anos body
type TreasuryRateResponse struct {
	Sucesso           bool    `json:"sucesso"`
	TaxaTesouro10Anos float64 `json:"taxa_tesouro_10anos"`
	Formatado         string  `json:"formatado"`
	Fonte             string  `json:"fonte"`
}

// NewTreasuryRateResponse wraps a resolved rate
func NewTreasuryRateResponse(rate TreasuryRate) TreasuryRateResponse {
	return TreasuryRateResponse{
		Sucesso:           true,
		TaxaTesouro10Anos: rate.Valor,
		Formatado:         FormatPercent(rate.Valor),
		Fonte:             rate.Fonte,
	}
}

// FormatPercent renders a decimal rate as a percentage with two decimals,
// e.g. 0.043 -> "4.30%"
func FormatPercent(rate float64) string {
	return decimal.NewFromFloat(rate).Shift(2).StringFixed(2) + "%"
}

// TenorRates maps named maturities to decimal yields. A nil value means the
// index could not be read.
type TenorRates struct {
	UmMes      *float64 `json:"1_mes"`
	TresMeses  *float64 `json:"3_meses"`
	SeisMeses  *float64 `json:"6_meses"`
	UmAno      *float64 `json:"1_ano"`
	DoisAnos   *float64 `json:"2_anos"`
	CincoAnos  *float64 `json:"5_anos"`
	DezAnos    *float64 `json:"10_anos"`
	TrintaAnos *float64 `json:"30_anos"`
}

// AllRatesResponse is the /api/tesouro/todas body
type AllRatesResponse struct {
	DataHora string     `json:"data_hora"`
	Taxas    TenorRates `json:"taxas"`
}

// ErrorResponse is the body of a hard (400) failure
type ErrorResponse struct {
	Erro string `json:"erro"`
}
