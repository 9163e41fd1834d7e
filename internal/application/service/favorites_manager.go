package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/domain/repository"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/damon-houk/fx-converter/internal/infrastructure/metrics"
)

// FavoritesManager keeps the ordered set of favorite pairs and persists it on every change
type FavoritesManager struct {
	repo    repository.FavoritesRepository
	logger  logger.Logger
	metrics *metrics.ExchangeMetrics

	mu    sync.RWMutex
	pairs []entity.FavoritePair
}

// NewFavoritesManager creates a new favorites manager
func NewFavoritesManager(repo repository.FavoritesRepository, log logger.Logger, m *metrics.ExchangeMetrics) *FavoritesManager {
	return &FavoritesManager{
		repo:    repo,
		logger:  logger.OrDefault(log).WithField("component", "favorites"),
		metrics: m,
	}
}

// Load replaces the in-memory set with the persisted one
func (f *FavoritesManager) Load(ctx context.Context) error {
	pairs, err := f.repo.LoadFavorites(ctx)
	if err != nil {
		f.logger.Error("Failed to load favorites", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	f.mu.Lock()
	f.pairs = pairs
	f.mu.Unlock()

	f.metrics.SetFavoritesCount(len(pairs))
	return nil
}

// Toggle adds the pair if absent or removes it if present, then persists the set.
// It returns whether the pair is a favorite afterwards. If saving fails the
// in-memory set is left unchanged.
func (f *FavoritesManager) Toggle(ctx context.Context, from, to string) (bool, error) {
	pair := entity.NewFavoritePair(from, to)
	if pair.From == "" || pair.To == "" {
		return false, fmt.Errorf("%w: %q", entity.ErrInvalidPairKey, pair.Key())
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	updated := make([]entity.FavoritePair, 0, len(f.pairs)+1)
	removed := false
	for _, p := range f.pairs {
		if p == pair {
			removed = true
			continue
		}
		updated = append(updated, p)
	}
	if !removed {
		updated = append(updated, pair)
	}

	if err := f.repo.SaveFavorites(ctx, updated); err != nil {
		f.logger.Error("Failed to persist favorites", map[string]interface{}{
			"pair":  pair.Key(),
			"error": err.Error(),
		})
		return removed, fmt.Errorf("failed to save favorites: %w", err)
	}

	f.pairs = updated
	f.metrics.SetFavoritesCount(len(updated))
	f.logger.Info("Favorite toggled", map[string]interface{}{
		"pair":     pair.Key(),
		"favorite": !removed,
	})
	return !removed, nil
}

// IsFavorite reports whether from/to is in the set
func (f *FavoritesManager) IsFavorite(from, to string) bool {
	pair := entity.NewFavoritePair(from, to)

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, p := range f.pairs {
		if p == pair {
			return true
		}
	}
	return false
}

// List returns the favorites in insertion order
func (f *FavoritesManager) List() []entity.FavoritePair {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]entity.FavoritePair, len(f.pairs))
	copy(out, f.pairs)
	return out
}
