// Package extract pulls numeric fields out of provider records with
// caller-supplied defaults. Nothing here fails: absence always resolves to
// the default.
package extract

import (
	"math"

	"analise-fundamental/models"
)

// Latest is the column index of the most recent reporting period
const Latest = 0

// Lookup tries each label in order and returns the first cell at column
// that holds a number. A label whose cell is missing or not a number is
// skipped in favour of the next one.
func Lookup(st *models.Statement, labels []string, column int) (float64, bool) {
	if st.Empty() {
		return 0, false
	}
	for _, label := range labels {
		if v, ok := st.Cell(label, column); ok {
			return v, true
		}
	}
	return 0, false
}

// Scalar returns Lookup's value or def
func Scalar(st *models.Statement, labels []string, column int, def float64) float64 {
	if v, ok := Lookup(st, labels, column); ok {
		return v
	}
	return def
}

// Series returns exactly n values, most recent first, from the row of the
// first label present in the statement. Cells that are not numbers become 0.
// Periods the row does not cover, an absent statement, or no matching label
// yield def.
func Series(st *models.Statement, labels []string, n int, def float64) []float64 {
	if n <= 0 {
		return []float64{}
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = def
	}
	if st.Empty() {
		return out
	}

	for _, label := range labels {
		row, ok := st.Row(label)
		if !ok {
			continue
		}
		for i := 0; i < n && i < len(row); i++ {
			if math.IsNaN(row[i]) || math.IsInf(row[i], 0) {
				out[i] = 0
			} else {
				out[i] = row[i]
			}
		}
		return out
	}
	return out
}

// Field returns a numeric snapshot field or def when it is absent
func Field(q models.QuoteSnapshot, key string, def float64) float64 {
	if v, ok := q.Float(key); ok {
		return v
	}
	return def
}

// NonZero returns a numeric snapshot field, or def when the field is absent
// or zero
func NonZero(q models.QuoteSnapshot, key string, def float64) float64 {
	if v, ok := q.Float(key); ok && v != 0 {
		return v
	}
	return def
}

// FirstNonZero returns the first non-zero field among keys
func FirstNonZero(q models.QuoteSnapshot, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := q.Float(key); ok && v != 0 {
			return v, true
		}
	}
	return 0, false
}

// Text returns a string snapshot field or def
func Text(q models.QuoteSnapshot, key, def string) string {
	if s, ok := q.String(key); ok {
		return s
	}
	return def
}

// Ratio divides position by position; a zero denominator gives 0 at that
// position. The result has the length of num.
func Ratio(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		if i >= len(den) || den[i] == 0 {
			out[i] = 0
			continue
		}
		out[i] = num[i] / den[i]
	}
	return out
}
