package models

// Default values used when the provider has nothing for a field
const (
	UnknownLabel         = "Desconhecido"
	DefaultBeta          = 1.0
	DefaultGrowthRate    = 0.05
	DataSourceYahoo      = "Yahoo Finance"
	MarginHistoryYears   = 3
	SharesHistoryYears   = 3
	EarningsHistoryYears = 5
)

// StockDocument is the output document for one ticker.
// Field order is the serialization order.
type StockDocument struct {
	Ticker               string           `json:"ticker"`
	NomeEmpresa          string           `json:"nomeEmpresa"`
	Setor                string           `json:"setor"`
	Industria            string           `json:"industria"`
	PrecoAtual           float64          `json:"precoAtual"`
	Beta                 float64          `json:"beta"`
	CapitalizacaoMercado int64            `json:"capitalizacaoMercado"`
	DadosFinanceiros     DadosFinanceiros `json:"dadosFinanceiros"`
	DadosMercado         DadosMercado     `json:"dadosMercado"`
	Metadados            Metadados        `json:"metadados"`

	// Sucesso is only set by batch processing
	Sucesso *bool `json:"sucesso,omitempty"`
}

// DadosFinanceiros holds valuation inputs and historical series
type DadosFinanceiros struct {
	LucrosPorAcaoTTM           float64   `json:"lucrosPorAcaoTTM"`
	LucrosPorAcaoFuturo        float64   `json:"lucrosPorAcaoFuturo"`
	CrescimentoReceita5A       float64   `json:"crescimentoReceita5A"`
	CrescimentoLucros5A        float64   `json:"crescimentoLucros5A"`
	DividaEbitda               float64   `json:"dividaEbitda"`
	DividaCapitalProprio       float64   `json:"dividaCapitalProprio"`
	ROE                        float64   `json:"roe"`
	ROIC                       float64   `json:"roic"`
	MargemLiquidaAtual         float64   `json:"margemLiquidaAtual"`
	HistoricoMargemLiquida     []float64 `json:"historicoMargemLiquida"`
	AcoesCirculacaoAtual       int64     `json:"acoesCirculacaoAtual"`
	HistoricoAcoesCirculacao   []int64   `json:"historicoAcoesCirculacao"`
	HistoricoLucros            []float64 `json:"historicoLucros"`
	FluxoCaixaOperacional      float64   `json:"fluxoCaixaOperacional"`
	Capex                      float64   `json:"capex"`
	FluxoCaixaLivre            float64   `json:"fluxoCaixaLivre"`
	CompensacaoBaseadaAcoes    float64   `json:"compensacaoBaseadaAcoes"`
	ValorContabilisticoPorAcao float64   `json:"valorContabilisticoPorAcao"`
	CapitalProprio             float64   `json:"capitalProprio"`
	Intangiveis                float64   `json:"intangiveis"`
	Goodwill                   float64   `json:"goodwill"`
	AtivosTotal                float64   `json:"ativosTotal"`
	DividendoPorAcao           float64   `json:"dividendoPorAcao"`
	RendimentoDividendo        float64   `json:"rendimentoDividendo"`
	RacioDistribuicao          float64   `json:"racioDistribuicao"`
	RacioPrecoLucroTTM         float64   `json:"racioPrecoLucroTTM"`
	RacioPrecoLucroMedia5A     float64   `json:"racioPrecoLucroMedia5A"`
}

// DadosMercado holds market-level inputs
type DadosMercado struct {
	TesouroEUA10Anos float64 `json:"tesouroEUA10Anos"`
	Maximo52Semanas  float64 `json:"maximo52Semanas"`
	Minimo52Semanas  float64 `json:"minimo52Semanas"`
}

// Metadados describes where and when the document was produced
type Metadados struct {
	FonteDados        string `json:"fonteDados"`
	UltimaAtualizacao string `json:"ultimaAtualizacao"`
}

// MarkSuccess flags the document as a successful batch entry
func (d *StockDocument) MarkSuccess() {
	ok := true
	d.Sucesso = &ok
}

// ErrorDocument is the single-ticker soft failure body
type ErrorDocument struct {
	Erro   string `json:"erro"`
	Ticker string `json:"ticker"`
}

// TickerFailure is a failed entry inside a multi-ticker response and the
// single-ticker 500 body
type TickerFailure struct {
	Ticker  string `json:"ticker"`
	Erro    string `json:"erro"`
	Sucesso bool   `json:"sucesso"`
}

// NewTickerFailure builds a failure entry for ticker
func NewTickerFailure(ticker string, err error) TickerFailure {
	return TickerFailure{Ticker: ticker, Erro: err.Error(), Sucesso: false}
}
