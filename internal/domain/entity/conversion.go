package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxHistoryEntries bounds the persisted conversion history
const MaxHistoryEntries = 10

const (
	amountPlaces = 2
	ratePlaces   = 4
)

// ConversionResult is the outcome of one computation. It is not persisted;
// only the HistoryEntry derived from it is.
type ConversionResult struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Input       string    `json:"input"`
	Amount      string    `json:"amount"`
	Rate        string    `json:"rate"`
	LastUpdated string    `json:"lastUpdated"`
	ComputedAt  time.Time `json:"computedAt"`
}

// HistoryEntry is an immutable record of a completed conversion
type HistoryEntry struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    string    `json:"amount"`
	Result    string    `json:"result"`
	Rate      string    `json:"rate"`
}

// SanitizeAmount keeps digits and the first decimal point of raw user input
func SanitizeAmount(raw string) string {
	var b strings.Builder
	seenPoint := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenPoint:
			seenPoint = true
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAmount parses a sanitized amount string
func ParseAmount(amount string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}
	if value.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is negative", ErrMalformedAmount, amount)
	}
	return value, nil
}

// Convert computes (input / rate[from]) * rate[to] against table. input is
// the sanitized amount string and is carried unchanged onto the result.
// The converted amount is rounded to 2 places and the pair rate to 4.
func Convert(table *RateTable, input, from, to string, now time.Time) (ConversionResult, error) {
	if table == nil {
		return ConversionResult{}, ErrStaleDataUnavailable
	}

	amount, err := ParseAmount(input)
	if err != nil {
		return ConversionResult{}, err
	}

	fromRate, ok := table.Rate(from)
	if !ok {
		return ConversionResult{}, fmt.Errorf("%w: %s not in rate table", ErrInvalidPair, from)
	}
	toRate, ok := table.Rate(to)
	if !ok {
		return ConversionResult{}, fmt.Errorf("%w: %s not in rate table", ErrInvalidPair, to)
	}
	if fromRate.Sign() <= 0 {
		return ConversionResult{}, fmt.Errorf("%w: non-positive rate for %s", ErrComputation, from)
	}

	converted := amount.Div(fromRate).Mul(toRate)
	pairRate := toRate.Div(fromRate)

	return ConversionResult{
		From:        NormalizeCode(from),
		To:          NormalizeCode(to),
		Input:       input,
		Amount:      converted.StringFixed(amountPlaces),
		Rate:        pairRate.StringFixed(ratePlaces),
		LastUpdated: table.LastUpdatedText,
		ComputedAt:  now,
	}, nil
}

// ToHistoryEntry derives the persisted record of a result
func (r ConversionResult) ToHistoryEntry(id string) HistoryEntry {
	return HistoryEntry{
		ID:        id,
		Timestamp: r.ComputedAt,
		From:      r.From,
		To:        r.To,
		Amount:    r.Input,
		Result:    r.Amount,
		Rate:      r.Rate,
	}
}

// PrependHistory returns a new slice with entry first, truncated to MaxHistoryEntries
func PrependHistory(history []HistoryEntry, entry HistoryEntry) []HistoryEntry {
	size := len(history) + 1
	if size > MaxHistoryEntries {
		size = MaxHistoryEntries
	}
	updated := make([]HistoryEntry, 0, size)
	updated = append(updated, entry)
	for _, e := range history {
		if len(updated) == MaxHistoryEntries {
			break
		}
		updated = append(updated, e)
	}
	return updated
}
