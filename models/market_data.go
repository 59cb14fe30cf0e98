package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// QuoteSnapshot is the flat field-name to scalar record the provider returns
// for one ticker (price, market cap, ratios, company profile).
type QuoteSnapshot map[string]any

// Float returns the named field as a finite float64.
// ok is false when the field is absent, non-numeric or not finite.
func (q QuoteSnapshot) Float(key string) (float64, bool) {
	v, exists := q[key]
	if !exists || v == nil {
		return 0, false
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String returns the named field when it is a non-empty string
func (q QuoteSnapshot) String(key string) (string, bool) {
	s, ok := q[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Has reports whether the field is present with a non-nil value
func (q QuoteSnapshot) Has(key string) bool {
	v, ok := q[key]
	return ok && v != nil
}

// Statement is a tabular financial statement: rows keyed by line-item label,
// columns ordered by reporting period, most recent first.
// Cells without a reported number hold NaN.
type Statement struct {
	Periods []time.Time
	rows    map[string][]float64
}

// NewStatement creates an empty statement over the given periods
func NewStatement(periods []time.Time) *Statement {
	return &Statement{
		Periods: periods,
		rows:    make(map[string][]float64),
	}
}

// SetRow stores the values for a line item. Values beyond the number of
// periods are ignored and missing trailing values become NaN.
func (s *Statement) SetRow(label string, values []float64) {
	row := make([]float64, len(s.Periods))
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = math.NaN()
		}
	}
	s.rows[label] = row
}

// Empty reports whether the statement is absent or has no rows
func (s *Statement) Empty() bool {
	return s == nil || len(s.rows) == 0
}

// Row returns the raw values for a label
func (s *Statement) Row(label string) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	row, ok := s.rows[label]
	return row, ok
}

// Cell returns the value at (label, column). ok is false when the label is
// missing, the column is out of range, or the cell is not a number.
func (s *Statement) Cell(label string, column int) (float64, bool) {
	row, ok := s.Row(label)
	if !ok || column < 0 || column >= len(row) {
		return 0, false
	}
	v := row[column]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Labels returns the number of line items held
func (s *Statement) Labels() int {
	if s == nil {
		return 0
	}
	return len(s.rows)
}

// Financials groups the three annual statements of one company.
// Any of them may be nil when the provider has nothing for the ticker.
type Financials struct {
	Income       *Statement
	BalanceSheet *Statement
	CashFlow     *Statement
}
