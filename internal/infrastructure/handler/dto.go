package handler

import "github.com/damon-houk/fx-converter/internal/domain/entity"

// AmountRequest is the body of PUT /api/amount
type AmountRequest struct {
	Amount string `json:"amount"`
}

// AmountResponse echoes the stored, sanitized amount
type AmountResponse struct {
	Amount string `json:"amount"`
}

// PairRequest is the body of PUT /api/pair. An empty side is left unchanged.
type PairRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PairResponse describes the current pair
type PairResponse struct {
	From       string `json:"from"`
	To         string `json:"to"`
	IsFavorite bool   `json:"isFavorite"`
}

// FavoriteToggleResponse is returned by POST /api/favorites/toggle
type FavoriteToggleResponse struct {
	Pair       string `json:"pair"`
	IsFavorite bool   `json:"isFavorite"`
}

// FavoritesResponse lists favorite pairs
type FavoritesResponse struct {
	Favorites []entity.FavoritePair `json:"favorites"`
}

// HistoryResponse lists recent conversions
type HistoryResponse struct {
	ShowHistory bool                  `json:"showHistory"`
	History     []entity.HistoryEntry `json:"history"`
}

// CurrenciesResponse lists catalog matches
type CurrenciesResponse struct {
	Currencies []entity.Currency `json:"currencies"`
}

// RefreshResponse reports a manual refresh
type RefreshResponse struct {
	LastUpdated string `json:"lastUpdated,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}
