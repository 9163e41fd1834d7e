package repository

import (
	"context"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
)

// FavoritesRepository persists favorite pairs in insertion order
type FavoritesRepository interface {
	LoadFavorites(ctx context.Context) ([]entity.FavoritePair, error)
	SaveFavorites(ctx context.Context, favorites []entity.FavoritePair) error
}
