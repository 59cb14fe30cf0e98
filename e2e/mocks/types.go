package mocks

// Quote is the subset of quoteSummary fields a mocked ticker reports. Zero
// values are omitted from the response.
type Quote struct {
	ShortName         string
	Sector            string
	Industry          string
	CurrentPrice      float64
	PreviousClose     float64
	MarketCap         float64
	Beta              float64
	TrailingEPS       float64
	ForwardEPS        float64
	RevenueGrowth     float64
	EarningsGrowth    float64
	DebtToEquity      float64
	ReturnOnEquity    float64
	ProfitMargins     float64
	SharesOutstanding float64
	FreeCashflow      float64
	BookValue         float64
	DividendRate      float64
	DividendYield     float64
	PayoutRatio       float64
	TrailingPE        float64
	FiftyTwoWeekHigh  float64
	FiftyTwoWeekLow   float64
}

// StatementPoint is one annual value of a fundamentals-timeseries line
type StatementPoint struct {
	AsOfDate string
	Value    float64
}

// Statements maps timeseries keys (TotalRevenue, NetIncome, ...) to annual
// points, most recent first
type Statements map[string][]StatementPoint

// YieldEntry is one day of the Treasury par yield curve feed
type YieldEntry struct {
	Date    string // 2006-01-02T15:04:05
	TenYear string // percent, empty for a missing value
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Query  string
}
