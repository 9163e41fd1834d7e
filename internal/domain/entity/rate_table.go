package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateTable is a snapshot of rates for one unit of the base currency.
// It is built once per successful refresh and never mutated afterwards.
type RateTable struct {
	Base            string
	rates           map[string]decimal.Decimal
	LastUpdated     time.Time
	LastUpdatedText string
	FetchedAt       time.Time
}

// NewRateTable validates and copies the raw rates into an immutable table.
// The base currency rate is pinned to exactly 1.
func NewRateTable(base string, raw map[string]float64, lastUpdated time.Time, lastUpdatedText string) (*RateTable, error) {
	base = NormalizeCode(base)
	if base == "" {
		return nil, fmt.Errorf("rate table base currency is required")
	}

	rates := make(map[string]decimal.Decimal, len(raw)+1)
	for code, value := range raw {
		code = NormalizeCode(code)
		if code == "" {
			continue
		}
		if !(value > 0) {
			return nil, fmt.Errorf("invalid rate for %s: %v", code, value)
		}
		rates[code] = decimal.NewFromFloat(value)
	}
	rates[base] = decimal.NewFromInt(1)

	return &RateTable{
		Base:            base,
		rates:           rates,
		LastUpdated:     lastUpdated,
		LastUpdatedText: lastUpdatedText,
		FetchedAt:       time.Now(),
	}, nil
}

// Rate returns the rate of code against the base currency
func (t *RateTable) Rate(code string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Decimal{}, false
	}
	rate, ok := t.rates[NormalizeCode(code)]
	return rate, ok
}

// Has reports whether the table carries a rate for code
func (t *RateTable) Has(code string) bool {
	_, ok := t.Rate(code)
	return ok
}

// Len returns the number of currencies in the table
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}

// Codes returns the table's currency codes sorted alphabetically
func (t *RateTable) Codes() []string {
	if t == nil {
		return nil
	}
	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// PairRate returns rate[to] / rate[from]. The base cancels out, so any
// table containing both codes gives the same pair rate.
func (t *RateTable) PairRate(from, to string) (decimal.Decimal, error) {
	fromRate, ok := t.Rate(from)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s not in rate table", ErrInvalidPair, from)
	}
	toRate, ok := t.Rate(to)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s not in rate table", ErrInvalidPair, to)
	}
	return toRate.Div(fromRate), nil
}

// NormalizeCode upper-cases and trims a currency code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
