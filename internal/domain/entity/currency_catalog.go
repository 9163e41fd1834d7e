package entity

import (
	"sort"
	"strings"
)

// CurrencyCatalog maps currency codes to display names
type CurrencyCatalog map[string]string

// Currency is a single catalog entry
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"NGN": "₦",
	"INR": "₹",
	"CNY": "¥",
	"AUD": "A$",
	"CAD": "C$",
}

// NewCurrencyCatalog builds a catalog from (code, name) pairs as returned by the codes endpoint
func NewCurrencyCatalog(pairs [][]string) CurrencyCatalog {
	catalog := make(CurrencyCatalog, len(pairs))
	for _, pair := range pairs {
		if len(pair) == 0 {
			continue
		}
		code := NormalizeCode(pair[0])
		if code == "" {
			continue
		}
		name := ""
		if len(pair) > 1 {
			name = strings.TrimSpace(pair[1])
		}
		catalog[code] = name
	}
	return catalog
}

// Name returns the display name for code, or the bare code when the catalog has no entry
func (c CurrencyCatalog) Name(code string) string {
	code = NormalizeCode(code)
	if name, ok := c[code]; ok && name != "" {
		return name
	}
	return code
}

// Search filters the catalog on code or name, case-insensitively, skipping exclude.
// An empty query matches everything.
func (c CurrencyCatalog) Search(query, exclude string) []Currency {
	term := strings.ToLower(strings.TrimSpace(query))
	exclude = NormalizeCode(exclude)

	result := make([]Currency, 0, len(c))
	for code, name := range c {
		if code == exclude {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(code), term) && !strings.Contains(strings.ToLower(name), term) {
			continue
		}
		result = append(result, Currency{Code: code, Name: c.Name(code), Symbol: Symbol(code)})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

// Symbol returns the display symbol for a currency, falling back to the code itself
func Symbol(code string) string {
	code = NormalizeCode(code)
	if symbol, ok := currencySymbols[code]; ok {
		return symbol
	}
	return code
}
