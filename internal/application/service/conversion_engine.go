// Package service internal/application/service/conversion_engine.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/domain/repository"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/damon-houk/fx-converter/internal/infrastructure/metrics"
	"github.com/google/uuid"
)

const persistTimeout = 5 * time.Second

// RateProvider exposes the currently loaded rate table
type RateProvider interface {
	Table() (*entity.RateTable, error)
}

// EngineOptions configures a ConversionEngine
type EngineOptions struct {
	Debounce    time.Duration
	DefaultFrom string
	DefaultTo   string
}

// ConversionEngine owns the conversion inputs, the latest result and the
// bounded history. Input changes are debounced; the debounced computation
// reads whatever inputs are current when it fires. Results reach listeners
// in computation order, and listeners may call back into the engine.
type ConversionEngine struct {
	rates     RateProvider
	history   repository.HistoryRepository
	logger    logger.Logger
	metrics   *metrics.ExchangeMetrics
	debouncer *Debouncer
	now       func() time.Time
	newID     func() string

	mu      sync.RWMutex
	amount  string
	from    string
	to      string
	entries []entity.HistoryEntry
	result  *entity.ConversionResult

	notifyMu   sync.Mutex
	pending    []entity.ConversionResult
	delivering bool

	listenerMu     sync.RWMutex
	listeners      []func(entity.ConversionResult)
	errorListeners []func(error)
}

// NewConversionEngine creates a new conversion engine
func NewConversionEngine(rates RateProvider, history repository.HistoryRepository, opts EngineOptions, log logger.Logger, m *metrics.ExchangeMetrics) *ConversionEngine {
	if opts.DefaultFrom == "" {
		opts.DefaultFrom = "USD"
	}
	if opts.DefaultTo == "" {
		opts.DefaultTo = "EUR"
	}

	e := &ConversionEngine{
		rates:   rates,
		history: history,
		logger:  logger.OrDefault(log).WithField("component", "conversion_engine"),
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
		from:    entity.NormalizeCode(opts.DefaultFrom),
		to:      entity.NormalizeCode(opts.DefaultTo),
	}
	e.debouncer = NewDebouncer(opts.Debounce, e.computeDebounced, m.IncCoalesced)
	return e
}

// LoadHistory replaces the in-memory history with the persisted one
func (e *ConversionEngine) LoadHistory(ctx context.Context) error {
	entries, err := e.history.LoadHistory(ctx)
	if err != nil {
		e.logger.Error("Failed to load conversion history", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(entries) > entity.MaxHistoryEntries {
		entries = entries[:entity.MaxHistoryEntries]
	}

	e.mu.Lock()
	e.entries = entries
	e.mu.Unlock()

	e.metrics.SetHistoryLength(len(entries))
	e.logger.Debug("Conversion history loaded", map[string]interface{}{
		"entries": len(entries),
	})
	return nil
}

// SetAmount sanitizes raw input, stores it and returns the stored value.
// A changed amount re-arms the debounce.
func (e *ConversionEngine) SetAmount(raw string) string {
	amount := entity.SanitizeAmount(raw)
	e.setInputs(func() { e.amount = amount })
	return amount
}

// SetFromCode changes the source currency
func (e *ConversionEngine) SetFromCode(code string) {
	code = entity.NormalizeCode(code)
	e.setInputs(func() { e.from = code })
}

// SetToCode changes the target currency
func (e *ConversionEngine) SetToCode(code string) {
	code = entity.NormalizeCode(code)
	e.setInputs(func() { e.to = code })
}

// SetPair changes both currencies in one step
func (e *ConversionEngine) SetPair(from, to string) {
	from = entity.NormalizeCode(from)
	to = entity.NormalizeCode(to)
	e.setInputs(func() { e.from, e.to = from, to })
}

// Swap exchanges the source and target currencies
func (e *ConversionEngine) Swap() {
	e.setInputs(func() { e.from, e.to = e.to, e.from })
}

// setInputs applies mutate under the lock and re-arms the debounce when the
// inputs actually changed
func (e *ConversionEngine) setInputs(mutate func()) {
	e.mu.Lock()
	before := [3]string{e.amount, e.from, e.to}
	mutate()
	changed := before != [3]string{e.amount, e.from, e.to}
	e.mu.Unlock()

	if changed {
		e.debouncer.Trigger()
	}
}

// Amount returns the current sanitized amount
func (e *ConversionEngine) Amount() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.amount
}

// From returns the source currency
func (e *ConversionEngine) From() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.from
}

// To returns the target currency
func (e *ConversionEngine) To() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.to
}

// Result returns a copy of the latest result, or nil before the first one
func (e *ConversionEngine) Result() *entity.ConversionResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.result == nil {
		return nil
	}
	r := *e.result
	return &r
}

// History returns a copy of the history, newest first
func (e *ConversionEngine) History() []entity.HistoryEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]entity.HistoryEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

// OnResult registers fn to receive every new result
func (e *ConversionEngine) OnResult(fn func(entity.ConversionResult)) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// OnError registers fn to receive computation failures from debounced runs
func (e *ConversionEngine) OnError(fn func(error)) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.errorListeners = append(e.errorListeners, fn)
}

// Flush runs a pending debounced computation now
func (e *ConversionEngine) Flush() bool {
	return e.debouncer.Flush()
}

// ConvertNow drops any pending debounced run and computes immediately
func (e *ConversionEngine) ConvertNow(ctx context.Context) (*entity.ConversionResult, error) {
	e.debouncer.Cancel()
	return e.ComputeNow(ctx)
}

// Close drops any pending computation
func (e *ConversionEngine) Close() {
	e.debouncer.Cancel()
}

// ComputeNow converts the current inputs against the current rate table.
// An empty or zero amount is a no-op and returns nil, nil.
func (e *ConversionEngine) ComputeNow(ctx context.Context) (*entity.ConversionResult, error) {
	e.mu.Lock()

	if e.amount == "" {
		e.mu.Unlock()
		e.metrics.ObserveConversion(metrics.OutcomeSkipped)
		return nil, nil
	}

	amount, err := entity.ParseAmount(e.amount)
	if err != nil {
		e.mu.Unlock()
		e.metrics.ObserveConversion(metrics.OutcomeSkipped)
		return nil, err
	}
	if amount.IsZero() {
		e.mu.Unlock()
		e.metrics.ObserveConversion(metrics.OutcomeSkipped)
		return nil, nil
	}

	table, err := e.rates.Table()
	if err != nil {
		e.mu.Unlock()
		e.metrics.ObserveConversion(metrics.OutcomeSkipped)
		return nil, err
	}

	result, err := e.convert(table)
	if err != nil {
		e.mu.Unlock()
		if errors.Is(err, entity.ErrInvalidPair) {
			e.metrics.ObserveConversion(metrics.OutcomeSkipped)
		} else {
			e.metrics.ObserveConversion(metrics.OutcomeFailure)
		}
		return nil, err
	}

	e.entries = entity.PrependHistory(e.entries, result.ToHistoryEntry(e.newID()))
	e.result = &result
	entries := make([]entity.HistoryEntry, len(e.entries))
	copy(entries, e.entries)

	// persisting under the lock keeps saved history in computation order
	if err := e.history.SaveHistory(ctx, entries); err != nil {
		e.logger.Error("Failed to persist conversion history", map[string]interface{}{
			"error": err.Error(),
		})
	}
	// queued before e.mu is released so delivery order matches computation order
	e.notifyMu.Lock()
	e.pending = append(e.pending, result)
	e.notifyMu.Unlock()
	e.mu.Unlock()

	e.metrics.ObserveConversion(metrics.OutcomeSuccess)
	e.metrics.SetHistoryLength(len(entries))
	e.logger.Info("Conversion computed", map[string]interface{}{
		"from":   result.From,
		"to":     result.To,
		"amount": result.Input,
		"result": result.Amount,
		"rate":   result.Rate,
	})

	e.deliver()
	return &result, nil
}

// convert must be called with e.mu held
func (e *ConversionEngine) convert(table *entity.RateTable) (result entity.ConversionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", entity.ErrComputation, r)
		}
	}()

	return entity.Convert(table, e.amount, e.from, e.to, e.now())
}

func (e *ConversionEngine) computeDebounced() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	_, err := e.ComputeNow(ctx)
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrComputation):
		e.logger.Error("Conversion failed", map[string]interface{}{
			"error": err.Error(),
		})
		e.notifyError(err)
	default:
		e.logger.Debug("Conversion skipped", map[string]interface{}{
			"reason": err.Error(),
		})
	}
}

// deliver drains the pending queue. Only one caller drains at a time; a
// result queued by a listener is delivered by the drain already running.
func (e *ConversionEngine) deliver() {
	e.notifyMu.Lock()
	if e.delivering {
		e.notifyMu.Unlock()
		return
	}
	e.delivering = true

	for len(e.pending) > 0 {
		result := e.pending[0]
		e.pending = e.pending[1:]
		e.notifyMu.Unlock()
		e.notify(result)
		e.notifyMu.Lock()
	}

	e.delivering = false
	e.notifyMu.Unlock()
}

func (e *ConversionEngine) notify(result entity.ConversionResult) {
	e.listenerMu.RLock()
	listeners := append([]func(entity.ConversionResult){}, e.listeners...)
	e.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(result)
	}
}

func (e *ConversionEngine) notifyError(err error) {
	e.listenerMu.RLock()
	listeners := append([]func(error){}, e.errorListeners...)
	e.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(err)
	}
}
