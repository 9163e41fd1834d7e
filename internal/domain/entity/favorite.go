package entity

import (
	"fmt"
	"strings"
)

// FavoritePair is an ordered (from, to) pair. USD/EUR and EUR/USD are distinct.
type FavoritePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewFavoritePair normalizes both codes
func NewFavoritePair(from, to string) FavoritePair {
	return FavoritePair{From: NormalizeCode(from), To: NormalizeCode(to)}
}

// Key returns the persisted "FROM/TO" form
func (p FavoritePair) Key() string {
	return p.From + "/" + p.To
}

func (p FavoritePair) String() string {
	return p.Key()
}

// ParsePairKey parses a "FROM/TO" key
func ParsePairKey(key string) (FavoritePair, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 2 {
		return FavoritePair{}, fmt.Errorf("%w: %q", ErrInvalidPairKey, key)
	}
	pair := NewFavoritePair(parts[0], parts[1])
	if pair.From == "" || pair.To == "" {
		return FavoritePair{}, fmt.Errorf("%w: %q", ErrInvalidPairKey, key)
	}
	return pair, nil
}
