package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/infrastructure/cache"
	"github.com/damon-houk/fx-converter/internal/infrastructure/network"
	"github.com/damon-houk/fx-converter/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type controllerFixture struct {
	source    *mocks.MockRateSource
	history   *mocks.MockHistoryRepository
	favorites *mocks.MockFavoritesRepository
	monitor   *network.Monitor
	ctrl      *ExchangeController
}

func newControllerFixture(t *testing.T, opts ControllerOptions) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		source:    new(mocks.MockRateSource),
		history:   new(mocks.MockHistoryRepository),
		favorites: new(mocks.MockFavoritesRepository),
		monitor: network.NewMonitor(network.ProberFunc(func(context.Context) bool { return true }),
			0, testLogger(), nil),
	}
	f.history.On("LoadHistory", mock.Anything).Return([]entity.HistoryEntry{}, nil)
	f.history.On("SaveHistory", mock.Anything, mock.Anything).Return(nil)
	f.favorites.On("LoadFavorites", mock.Anything).Return([]entity.FavoritePair{}, nil)
	f.favorites.On("SaveFavorites", mock.Anything, mock.Anything).Return(nil)

	rates := cache.NewRateCache(f.source, "USD", testLogger(), nil)
	engine := NewConversionEngine(rates, f.history, EngineOptions{Debounce: 20 * time.Millisecond}, testLogger(), nil)
	favorites := NewFavoritesManager(f.favorites, testLogger(), nil)
	f.ctrl = NewExchangeController(rates, engine, favorites, f.monitor, opts, testLogger())
	t.Cleanup(f.ctrl.Close)
	return f
}

func testCatalog() entity.CurrencyCatalog {
	return entity.NewCurrencyCatalog([][]string{
		{"USD", "United States Dollar"},
		{"EUR", "Euro"},
		{"GBP", "Pound Sterling"},
		{"JPY", "Japanese Yen"},
	})
}

func TestExchangeControllerInit(t *testing.T) {
	t.Run("loads everything and converts", func(t *testing.T) {
		f := newControllerFixture(t, ControllerOptions{})
		f.source.On("FetchLatestRates", mock.Anything, "USD").Return(testTable(t), nil)
		f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)

		require.NoError(t, f.ctrl.Init(context.Background()))

		state := f.ctrl.Snapshot()
		assert.False(t, state.Loading)
		assert.Empty(t, state.Error)
		assert.Equal(t, testUpdated, state.LastUpdated)
		assert.Equal(t, Selection{Code: "USD", Name: "United States Dollar", Symbol: "$"}, state.From)
		assert.Equal(t, Selection{Code: "EUR", Name: "Euro", Symbol: "€"}, state.To)

		f.ctrl.SetAmount("100")
		assert.Eventually(t, func() bool {
			s := f.ctrl.Snapshot()
			return s.Result != nil && s.Result.Amount == "92.00"
		}, time.Second, 5*time.Millisecond)
		assert.Len(t, f.ctrl.History(), 1)
	})

	t.Run("rate failure surfaces message", func(t *testing.T) {
		f := newControllerFixture(t, ControllerOptions{})
		f.source.On("FetchLatestRates", mock.Anything, "USD").Return(nil, errors.New("dial tcp: timeout"))
		f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)

		err := f.ctrl.Init(context.Background())
		assert.ErrorIs(t, err, entity.ErrNetworkFailure)

		state := f.ctrl.Snapshot()
		assert.Equal(t, MsgRatesFailed, state.Error)
		assert.False(t, state.Loading)
		assert.True(t, state.Stale)
		assert.Empty(t, state.LastUpdated)
	})

	t.Run("catalog failure surfaces message", func(t *testing.T) {
		f := newControllerFixture(t, ControllerOptions{})
		f.source.On("FetchLatestRates", mock.Anything, "USD").Return(testTable(t), nil)
		f.source.On("FetchCurrencyCodes", mock.Anything).Return(nil, errors.New("503"))

		assert.Error(t, f.ctrl.Init(context.Background()))
		state := f.ctrl.Snapshot()
		assert.Equal(t, MsgCurrenciesFailed, state.Error)
		assert.Equal(t, "USD", state.From.Name)
	})
}

func TestExchangeControllerRefreshClearsError(t *testing.T) {
	f := newControllerFixture(t, ControllerOptions{})
	f.source.On("FetchLatestRates", mock.Anything, "USD").Return(nil, errors.New("offline")).Once()
	f.source.On("FetchLatestRates", mock.Anything, "USD").Return(testTable(t), nil)
	f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)

	assert.Error(t, f.ctrl.Init(context.Background()))
	assert.Equal(t, MsgRatesFailed, f.ctrl.Snapshot().Error)

	require.NoError(t, f.ctrl.Refresh(context.Background()))
	state := f.ctrl.Snapshot()
	assert.Empty(t, state.Error)
	assert.Equal(t, testUpdated, state.LastUpdated)
}

func TestExchangeControllerFavoritesAndHistory(t *testing.T) {
	f := newControllerFixture(t, ControllerOptions{})
	f.source.On("FetchLatestRates", mock.Anything, "USD").Return(testTable(t), nil)
	f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)
	require.NoError(t, f.ctrl.Init(context.Background()))

	added, err := f.ctrl.ToggleFavorite(context.Background())
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, f.ctrl.IsFavorite())

	f.ctrl.Swap()
	assert.False(t, f.ctrl.IsFavorite())

	f.ctrl.SelectPair("USD", "EUR")
	assert.True(t, f.ctrl.Snapshot().IsFavorite)
	assert.Equal(t, []entity.FavoritePair{{From: "USD", To: "EUR"}}, f.ctrl.Favorites())

	assert.False(t, f.ctrl.Snapshot().ShowHistory)
	assert.True(t, f.ctrl.ToggleHistory())
	assert.True(t, f.ctrl.Snapshot().ShowHistory)
	assert.False(t, f.ctrl.ToggleHistory())
}

func TestExchangeControllerSearchCurrencies(t *testing.T) {
	f := newControllerFixture(t, ControllerOptions{})
	f.source.On("FetchLatestRates", mock.Anything, "USD").Return(testTable(t), nil)
	f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)
	require.NoError(t, f.ctrl.Init(context.Background()))

	found := f.ctrl.SearchCurrencies("eu", "")
	require.Len(t, found, 1)
	assert.Equal(t, "EUR", found[0].Code)

	found = f.ctrl.SearchCurrencies("", "USD")
	assert.Len(t, found, 3)
	for _, c := range found {
		assert.NotEqual(t, "USD", c.Code)
	}
}

func TestExchangeControllerNetwork(t *testing.T) {
	t.Run("offline flag in snapshot", func(t *testing.T) {
		f := newControllerFixture(t, ControllerOptions{})
		f.source.On("FetchLatestRates", mock.Anything, "USD").Return(testTable(t), nil)
		f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)
		require.NoError(t, f.ctrl.Init(context.Background()))

		f.monitor.Set(true)
		assert.True(t, f.ctrl.Snapshot().Offline)
		f.monitor.Set(false)
		assert.False(t, f.ctrl.Snapshot().Offline)
	})

	t.Run("refresh on reconnect", func(t *testing.T) {
		f := newControllerFixture(t, ControllerOptions{RefreshOnReconnect: true})
		var fetches atomic.Int32
		f.source.On("FetchLatestRates", mock.Anything, "USD").
			Run(func(mock.Arguments) { fetches.Add(1) }).
			Return(testTable(t), nil)
		f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, f.ctrl.Init(ctx))
		assert.Equal(t, int32(1), fetches.Load())

		f.monitor.Set(false)
		f.monitor.Set(true)
		f.monitor.Set(false)

		assert.Eventually(t, func() bool {
			return fetches.Load() == 2
		}, time.Second, 5*time.Millisecond)
	})
	t.Run("reconnect during init is observed", func(t *testing.T) {
		f := newControllerFixture(t, ControllerOptions{RefreshOnReconnect: true})
		f.monitor.Set(false)

		var fetches atomic.Int32
		f.source.On("FetchLatestRates", mock.Anything, "USD").
			Run(func(mock.Arguments) {
				if fetches.Add(1) == 1 {
					f.monitor.Set(true)
					f.monitor.Set(false)
				}
			}).
			Return(testTable(t), nil)
		f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, f.ctrl.Init(ctx))

		assert.Eventually(t, func() bool {
			return fetches.Load() == 2
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("watching twice subscribes once", func(t *testing.T) {
		f := newControllerFixture(t, ControllerOptions{RefreshOnReconnect: true})
		var fetches atomic.Int32
		f.source.On("FetchLatestRates", mock.Anything, "USD").
			Run(func(mock.Arguments) { fetches.Add(1) }).
			Return(testTable(t), nil)
		f.source.On("FetchCurrencyCodes", mock.Anything).Return(testCatalog(), nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.ctrl.WatchNetwork(ctx)
		require.NoError(t, f.ctrl.Init(ctx))

		f.monitor.Set(false)
		f.monitor.Set(true)
		f.monitor.Set(false)

		assert.Eventually(t, func() bool {
			return fetches.Load() == 2
		}, time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(2), fetches.Load())
	})
}
