package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/domain/repository"
)

// HistoryKey is the store key of the conversion history
const HistoryKey = "conversionHistory"

var _ repository.HistoryRepository = (*JSONHistoryRepository)(nil)

// JSONHistoryRepository stores the history as a JSON array, newest first
type JSONHistoryRepository struct {
	store repository.KeyValueStore
}

// NewJSONHistoryRepository creates a history repository over store
func NewJSONHistoryRepository(store repository.KeyValueStore) *JSONHistoryRepository {
	return &JSONHistoryRepository{store: store}
}

// LoadHistory returns at most entity.MaxHistoryEntries entries
func (r *JSONHistoryRepository) LoadHistory(ctx context.Context) ([]entity.HistoryEntry, error) {
	data, err := r.store.Load(ctx, HistoryKey)
	if errors.Is(err, entity.ErrNotFound) {
		return []entity.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var history []entity.HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if len(history) > entity.MaxHistoryEntries {
		history = history[:entity.MaxHistoryEntries]
	}
	if history == nil {
		history = []entity.HistoryEntry{}
	}
	return history, nil
}

// SaveHistory writes the full history
func (r *JSONHistoryRepository) SaveHistory(ctx context.Context, history []entity.HistoryEntry) error {
	if history == nil {
		history = []entity.HistoryEntry{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := r.store.Save(ctx, HistoryKey, data); err != nil {
		return fmt.Errorf("failed to store history: %w", err)
	}
	return nil
}
