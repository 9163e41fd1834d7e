package repository

import (
	"context"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
)

// HistoryRepository persists the conversion history, newest first
type HistoryRepository interface {
	// LoadHistory returns the stored history, or an empty slice when none was saved
	LoadHistory(ctx context.Context) ([]entity.HistoryEntry, error)

	// SaveHistory replaces the stored history
	SaveHistory(ctx context.Context, history []entity.HistoryEntry) error
}
