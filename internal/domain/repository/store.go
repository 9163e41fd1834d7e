// Package repository defines the persistence ports of the converter
package repository

import "context"

// KeyValueStore is the durable storage port. Implementations return
// entity.ErrNotFound from Load when the key is absent.
type KeyValueStore interface {
	// Load returns the raw value stored under key
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the value stored under key
	Save(ctx context.Context, key string, value []byte) error
}
