package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/fx-converter/internal/application/service"
	"github.com/damon-houk/fx-converter/internal/domain/repository"
	"github.com/damon-houk/fx-converter/internal/infrastructure/api"
	"github.com/damon-houk/fx-converter/internal/infrastructure/cache"
	"github.com/damon-houk/fx-converter/internal/infrastructure/config"
	"github.com/damon-houk/fx-converter/internal/infrastructure/db"
	"github.com/damon-houk/fx-converter/internal/infrastructure/handler"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/damon-houk/fx-converter/internal/infrastructure/metrics"
	"github.com/damon-houk/fx-converter/internal/infrastructure/middleware"
	"github.com/damon-houk/fx-converter/internal/infrastructure/network"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv(config.PathEnv), "path to a YAML config file")
	flag.Parse()

	bootLog := logger.NewJSONLogger(os.Stdout, logger.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		bootLog.Warn("Unknown log level, using INFO", map[string]interface{}{
			"level": cfg.Log.Level,
		})
		level = logger.InfoLevel
	}
	log := logger.NewJSONLogger(os.Stdout, level).WithField("env", cfg.Env)
	logger.SetDefaultLogger(log)

	log.Info("Starting currency converter", map[string]interface{}{
		"addr":     cfg.Addr(),
		"api_url":  cfg.MaskedAPIURL(),
		"base":     cfg.Exchange.BaseCurrency,
		"storage":  cfg.Storage.Driver,
		"debounce": cfg.Conversion.Debounce.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to open storage", map[string]interface{}{
			"driver": cfg.Storage.Driver,
			"error":  err.Error(),
		})
	}
	defer func() {
		if err := closeStore.Close(); err != nil {
			log.Error("Error closing storage", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewExchangeMetrics(registry)

	httpClient := &http.Client{Timeout: cfg.Exchange.HTTPTimeout}
	source := api.NewExchangeRateAPIClient(cfg.Exchange.APIURL, cfg.Exchange.APIKey, httpClient, log)

	rates := cache.NewRateCache(source, cfg.Exchange.BaseCurrency, log, m)
	rates.SetExpiration(cfg.Exchange.StaleAfter)

	monitor := network.NewMonitor(network.NewHTTPProber(cfg.Network.ProbeURL, cfg.Exchange.HTTPTimeout),
		cfg.Network.ProbeInterval, log, m)

	engine := service.NewConversionEngine(rates, db.NewJSONHistoryRepository(store), service.EngineOptions{
		Debounce:    cfg.Conversion.Debounce,
		DefaultFrom: cfg.Conversion.DefaultFrom,
		DefaultTo:   cfg.Conversion.DefaultTo,
	}, log, m)
	favorites := service.NewFavoritesManager(db.NewJSONFavoritesRepository(store, log), log, m)
	ctrl := service.NewExchangeController(rates, engine, favorites, monitor, service.ControllerOptions{
		RefreshOnReconnect: cfg.Network.RefreshOnReconnect,
	}, log)
	defer ctrl.Close()

	// subscribed before the first probe so no transition during startup is lost
	ctrl.WatchNetwork(ctx)
	monitor.Start(ctx)
	go func() {
		// failures are already reported through the controller state
		_ = ctrl.Init(ctx)
	}()

	router := mux.NewRouter()
	handler.NewExchangeHandler(ctrl, log).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	server := &http.Server{
		Addr: cfg.Addr(),
		Handler: middleware.Chain(router,
			middleware.RequestIDMiddleware,
			middleware.RecoveryMiddleware(log),
			middleware.LoggingMiddleware(log),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": cfg.Addr(),
		})
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down", nil)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped unexpectedly", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// openStore opens the configured key-value backend
func openStore(ctx context.Context, cfg config.Storage, log logger.Logger) (repository.KeyValueStore, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, sqlDB, err := db.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, sqlDB, nil
	case config.DriverMemory:
		log.Warn("Using in-memory storage; history and favorites will not survive a restart", nil)
		return db.NewMemoryStore(), closerFunc(func() error { return nil }), nil
	default:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, nil, err
		}
		badgerDB, err := db.OpenBadger(cfg.Path, false)
		if err != nil {
			return nil, nil, err
		}
		return db.NewBadgerStore(badgerDB), badgerDB, nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
