package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/domain/repository"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
)

// FavoritesKey is the store key of the favorite pairs
const FavoritesKey = "favoriteConversions"

var _ repository.FavoritesRepository = (*JSONFavoritesRepository)(nil)

// JSONFavoritesRepository stores favorites as a JSON array of "FROM/TO" strings
type JSONFavoritesRepository struct {
	store  repository.KeyValueStore
	logger logger.Logger
}

// NewJSONFavoritesRepository creates a favorites repository over store
func NewJSONFavoritesRepository(store repository.KeyValueStore, log logger.Logger) *JSONFavoritesRepository {
	return &JSONFavoritesRepository{
		store:  store,
		logger: logger.OrDefault(log).WithField("component", "favorites_repository"),
	}
}

// LoadFavorites returns the stored pairs in insertion order; unparsable or duplicate keys are skipped
func (r *JSONFavoritesRepository) LoadFavorites(ctx context.Context) ([]entity.FavoritePair, error) {
	data, err := r.store.Load(ctx, FavoritesKey)
	if errors.Is(err, entity.ErrNotFound) {
		return []entity.FavoritePair{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode favorites: %w", err)
	}

	pairs := make([]entity.FavoritePair, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		pair, err := entity.ParsePairKey(key)
		if err != nil {
			r.logger.Warn("Skipping stored favorite", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		if seen[pair.Key()] {
			continue
		}
		seen[pair.Key()] = true
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// SaveFavorites writes the full favorite set
func (r *JSONFavoritesRepository) SaveFavorites(ctx context.Context, favorites []entity.FavoritePair) error {
	keys := make([]string, 0, len(favorites))
	for _, pair := range favorites {
		keys = append(keys, pair.Key())
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal favorites: %w", err)
	}
	if err := r.store.Save(ctx, FavoritesKey, data); err != nil {
		return fmt.Errorf("failed to store favorites: %w", err)
	}
	return nil
}
