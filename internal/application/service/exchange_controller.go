// Package service internal/application/service/exchange_controller.go
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/damon-houk/fx-converter/internal/infrastructure/middleware"
	"golang.org/x/sync/errgroup"
)

// User-facing error messages
const (
	MsgRatesFailed      = "Failed to fetch rates. Please check your connection."
	MsgCurrenciesFailed = "Failed to load currencies. Please check your connection."
	MsgConversionFailed = "Failed to perform conversion. Please try again."
)

// RateStore is the rate cache as seen by the controller
type RateStore interface {
	RateProvider
	RefreshRates(ctx context.Context) (*entity.RateTable, error)
	RefreshCatalog(ctx context.Context) (entity.CurrencyCatalog, error)
	Catalog() entity.CurrencyCatalog
	IsStale() bool
}

// NetworkWatcher reports connectivity
type NetworkWatcher interface {
	Offline() bool
	Subscribe() (<-chan entity.NetworkStatus, func())
}

// ControllerOptions configures an ExchangeController
type ControllerOptions struct {
	RefreshOnReconnect bool
}

// State is a consistent snapshot of everything a consumer renders
type State struct {
	Amount      string                   `json:"amount"`
	From        Selection                `json:"from"`
	To          Selection                `json:"to"`
	Result      *entity.ConversionResult `json:"result,omitempty"`
	LastUpdated string                   `json:"lastUpdated,omitempty"`
	Loading     bool                     `json:"loading"`
	Stale       bool                     `json:"stale"`
	Error       string                   `json:"error,omitempty"`
	Offline     bool                     `json:"offline"`
	IsFavorite  bool                     `json:"isFavorite"`
	Favorites   []entity.FavoritePair    `json:"favorites"`
	ShowHistory bool                     `json:"showHistory"`
	History     []entity.HistoryEntry    `json:"history"`
}

// Selection describes one side of the current pair
type Selection struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// ExchangeController composes the rate cache, the conversion engine, the
// favorites set and the network monitor into one surface.
type ExchangeController struct {
	rates     RateStore
	engine    *ConversionEngine
	favorites *FavoritesManager
	network   NetworkWatcher
	logger    logger.Logger
	opts      ControllerOptions

	mu          sync.RWMutex
	loading     bool
	lastError   string
	showHistory bool
	unsubscribe func()
}

// NewExchangeController creates a new exchange controller
func NewExchangeController(rates RateStore, engine *ConversionEngine, favorites *FavoritesManager, network NetworkWatcher, opts ControllerOptions, log logger.Logger) *ExchangeController {
	c := &ExchangeController{
		rates:     rates,
		engine:    engine,
		favorites: favorites,
		network:   network,
		logger:    logger.OrDefault(log).WithField("component", "exchange_controller"),
		opts:      opts,
	}
	engine.OnError(func(err error) {
		if errors.Is(err, entity.ErrComputation) {
			c.setError(MsgConversionFailed)
		}
	})
	return c
}

// Init starts watching the network, then fetches rates and the catalog and
// loads persisted history and favorites, all concurrently. Fetch failures are
// surfaced through State.Error; the returned error joins every failure.
func (c *ExchangeController) Init(ctx context.Context) error {
	c.logger.Info("Initializing exchange controller", nil)
	c.WatchNetwork(ctx)

	var g errgroup.Group
	var mu sync.Mutex
	var errs []error
	collect := func(err error) {
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	g.Go(func() error { collect(c.refreshRates(ctx)); return nil })
	g.Go(func() error { collect(c.refreshCatalog(ctx)); return nil })
	g.Go(func() error { collect(c.engine.LoadHistory(ctx)); return nil })
	g.Go(func() error { collect(c.favorites.Load(ctx)); return nil })
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Warn("Initialization completed with errors", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		c.logger.Info("Exchange controller initialized", nil)
	}
	return err
}

// Refresh re-fetches rates and the catalog concurrently
func (c *ExchangeController) Refresh(ctx context.Context) error {
	c.logger.Info("Refreshing exchange data", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
	})

	var rateErr, catalogErr error
	var g errgroup.Group
	g.Go(func() error { rateErr = c.refreshRates(ctx); return nil })
	g.Go(func() error { catalogErr = c.refreshCatalog(ctx); return nil })
	_ = g.Wait()

	if rateErr == nil && catalogErr == nil {
		c.clearError()
	}
	return errors.Join(rateErr, catalogErr)
}

// Close stops watching the network and drops any pending computation
func (c *ExchangeController) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.engine.Close()
}

// SetAmount stores sanitized input and returns it
func (c *ExchangeController) SetAmount(raw string) string {
	return c.engine.SetAmount(raw)
}

// SetFromCode changes the source currency
func (c *ExchangeController) SetFromCode(code string) {
	c.engine.SetFromCode(code)
}

// SetToCode changes the target currency
func (c *ExchangeController) SetToCode(code string) {
	c.engine.SetToCode(code)
}

// SelectPair sets both currencies, as when picking a favorite or history entry
func (c *ExchangeController) SelectPair(from, to string) {
	c.engine.SetPair(from, to)
}

// Swap exchanges the source and target currencies
func (c *ExchangeController) Swap() {
	c.engine.Swap()
}

// Convert computes the current inputs immediately. Computation failures
// are surfaced through State.Error as well as returned.
func (c *ExchangeController) Convert(ctx context.Context) (*entity.ConversionResult, error) {
	result, err := c.engine.ConvertNow(ctx)
	if errors.Is(err, entity.ErrComputation) {
		c.setError(MsgConversionFailed)
	}
	return result, err
}

// ToggleFavorite toggles the current pair
func (c *ExchangeController) ToggleFavorite(ctx context.Context) (bool, error) {
	return c.favorites.Toggle(ctx, c.engine.From(), c.engine.To())
}

// IsFavorite reports whether the current pair is a favorite
func (c *ExchangeController) IsFavorite() bool {
	return c.favorites.IsFavorite(c.engine.From(), c.engine.To())
}

// Favorites lists the favorite pairs
func (c *ExchangeController) Favorites() []entity.FavoritePair {
	return c.favorites.List()
}

// ToggleHistory flips history visibility and returns the new value
func (c *ExchangeController) ToggleHistory() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showHistory = !c.showHistory
	return c.showHistory
}

// History returns the conversion history, newest first
func (c *ExchangeController) History() []entity.HistoryEntry {
	return c.engine.History()
}

// SearchCurrencies filters the catalog by code or name, leaving out exclude
func (c *ExchangeController) SearchCurrencies(query, exclude string) []entity.Currency {
	return c.rates.Catalog().Search(query, exclude)
}

// Engine exposes the conversion engine
func (c *ExchangeController) Engine() *ConversionEngine {
	return c.engine
}

// Snapshot returns the current state
func (c *ExchangeController) Snapshot() State {
	catalog := c.rates.Catalog()
	from, to := c.engine.From(), c.engine.To()

	state := State{
		Amount:     c.engine.Amount(),
		From:       selection(catalog, from),
		To:         selection(catalog, to),
		Result:     c.engine.Result(),
		Stale:      c.rates.IsStale(),
		IsFavorite: c.favorites.IsFavorite(from, to),
		Favorites:  c.favorites.List(),
		History:    c.engine.History(),
	}
	if table, err := c.rates.Table(); err == nil {
		state.LastUpdated = table.LastUpdatedText
	}
	if c.network != nil {
		state.Offline = c.network.Offline()
	}

	c.mu.RLock()
	state.Loading = c.loading
	state.Error = c.lastError
	state.ShowHistory = c.showHistory
	c.mu.RUnlock()

	return state
}

func selection(catalog entity.CurrencyCatalog, code string) Selection {
	return Selection{
		Code:   code,
		Name:   catalog.Name(code),
		Symbol: entity.Symbol(code),
	}
}

func (c *ExchangeController) refreshRates(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	_, err := c.rates.RefreshRates(ctx)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.lastError = MsgRatesFailed
	}
	c.mu.Unlock()
	return err
}

func (c *ExchangeController) refreshCatalog(ctx context.Context) error {
	_, err := c.rates.RefreshCatalog(ctx)
	if err != nil {
		c.setError(MsgCurrenciesFailed)
	}
	return err
}

// WatchNetwork subscribes to connectivity changes until ctx is done or the
// controller is closed. Calling it again while subscribed does nothing, so a
// caller may subscribe before starting the monitor and still call Init.
func (c *ExchangeController) WatchNetwork(ctx context.Context) {
	if c.network == nil {
		return
	}

	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return
	}
	updates, unsubscribe := c.network.Subscribe()
	done := make(chan struct{})
	c.unsubscribe = func() {
		unsubscribe()
		close(done)
	}
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-done:
				return
			case status := <-updates:
				c.logger.Info("Network status changed", map[string]interface{}{
					"status": status.String(),
				})
				if !status.Offline && c.opts.RefreshOnReconnect {
					if err := c.Refresh(ctx); err != nil {
						c.logger.Warn("Refresh after reconnect failed", map[string]interface{}{
							"error": err.Error(),
						})
					}
				}
			}
		}
	}()
}

func (c *ExchangeController) setError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

func (c *ExchangeController) clearError() {
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()
}
