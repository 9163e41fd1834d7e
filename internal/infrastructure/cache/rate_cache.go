// Package cache owns the current rate table and currency catalog
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/domain/service"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/damon-houk/fx-converter/internal/infrastructure/metrics"
)

// RateCache holds the latest rate table and catalog. Both are replaced
// wholesale on a successful refresh and left untouched on failure.
//
// Each refresh takes a sequence number when issued; a response whose
// sequence is older than the last applied one is discarded, so an
// out-of-order reply cannot overwrite newer data.
type RateCache struct {
	source     service.RateSource
	base       string
	expiration time.Duration
	logger     logger.Logger
	metrics    *metrics.ExchangeMetrics

	mutex        sync.RWMutex
	table        *entity.RateTable
	catalog      entity.CurrencyCatalog
	refreshedAt  time.Time
	rateSeq      uint64
	appliedRates uint64
	catalogSeq   uint64
	appliedCodes uint64
}

// NewRateCache creates an empty cache for rates against base
func NewRateCache(source service.RateSource, base string, log logger.Logger, m *metrics.ExchangeMetrics) *RateCache {
	return &RateCache{
		source:     source,
		base:       entity.NormalizeCode(base),
		expiration: 24 * time.Hour,
		logger:     logger.OrDefault(log).WithField("component", "rate_cache"),
		metrics:    m,
		catalog:    entity.CurrencyCatalog{},
	}
}

// SetExpiration sets how long a table is considered fresh
func (c *RateCache) SetExpiration(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.expiration = d
}

// Base returns the anchor currency of the cached tables
func (c *RateCache) Base() string {
	return c.base
}

// RefreshRates fetches the latest table. On failure the prior table is kept
// and the error wraps entity.ErrNetworkFailure.
func (c *RateCache) RefreshRates(ctx context.Context) (*entity.RateTable, error) {
	c.mutex.Lock()
	c.rateSeq++
	seq := c.rateSeq
	c.mutex.Unlock()

	started := time.Now()
	table, err := c.source.FetchLatestRates(ctx, c.base)
	if err != nil {
		if !errors.Is(err, entity.ErrNetworkFailure) {
			err = errors.Join(entity.ErrNetworkFailure, err)
		}
		c.metrics.ObserveRefresh(metrics.KindRates, metrics.OutcomeFailure, started)
		c.logger.Error("Failed to refresh rates", map[string]interface{}{
			"base":  c.base,
			"seq":   seq,
			"error": err.Error(),
		})
		return nil, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if seq < c.appliedRates {
		c.metrics.ObserveRefresh(metrics.KindRates, metrics.OutcomeSuperseded, started)
		c.logger.Warn("Discarding out-of-order rate response", map[string]interface{}{
			"seq":     seq,
			"applied": c.appliedRates,
		})
		return c.table, nil
	}

	c.table = table
	c.appliedRates = seq
	c.refreshedAt = time.Now()

	c.metrics.ObserveRefresh(metrics.KindRates, metrics.OutcomeSuccess, started)
	c.metrics.SetRateTableSize(table.Len())
	c.logger.Info("Rates refreshed", map[string]interface{}{
		"base":         table.Base,
		"currencies":   table.Len(),
		"last_updated": table.LastUpdatedText,
		"seq":          seq,
	})

	return table, nil
}

// RefreshCatalog fetches the currency catalog with the same failure and ordering rules as RefreshRates
func (c *RateCache) RefreshCatalog(ctx context.Context) (entity.CurrencyCatalog, error) {
	c.mutex.Lock()
	c.catalogSeq++
	seq := c.catalogSeq
	c.mutex.Unlock()

	started := time.Now()
	catalog, err := c.source.FetchCurrencyCodes(ctx)
	if err != nil {
		if !errors.Is(err, entity.ErrNetworkFailure) {
			err = errors.Join(entity.ErrNetworkFailure, err)
		}
		c.metrics.ObserveRefresh(metrics.KindCatalog, metrics.OutcomeFailure, started)
		c.logger.Error("Failed to refresh currency catalog", map[string]interface{}{
			"seq":   seq,
			"error": err.Error(),
		})
		return nil, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if seq < c.appliedCodes {
		c.metrics.ObserveRefresh(metrics.KindCatalog, metrics.OutcomeSuperseded, started)
		return c.catalog, nil
	}

	c.catalog = catalog
	c.appliedCodes = seq

	c.metrics.ObserveRefresh(metrics.KindCatalog, metrics.OutcomeSuccess, started)
	c.logger.Info("Currency catalog refreshed", map[string]interface{}{
		"currencies": len(catalog),
		"seq":        seq,
	})

	return catalog, nil
}

// Table returns the current table, or entity.ErrStaleDataUnavailable before the first successful refresh
func (c *RateCache) Table() (*entity.RateTable, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.table == nil {
		return nil, entity.ErrStaleDataUnavailable
	}
	return c.table, nil
}

// Catalog returns the current catalog. The returned map must not be modified.
func (c *RateCache) Catalog() entity.CurrencyCatalog {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.catalog
}

// IsStale reports whether no table is loaded or the loaded one is older than the expiration
func (c *RateCache) IsStale() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.table == nil || time.Since(c.refreshedAt) > c.expiration
}

// RefreshedAt returns when the current table was applied
func (c *RateCache) RefreshedAt() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.refreshedAt
}
