// Package app wires the stores, market-data feed, strategy registry and
// backtest runner from a loaded configuration.
package app

import (
	"fmt"
	"log/slog"

	"tradeview/internal/backtest"
	"tradeview/internal/config"
	"tradeview/internal/feed"
	"tradeview/internal/gather"
	"tradeview/internal/paramset"
	"tradeview/internal/store"
	"tradeview/internal/strategy"
	"tradeview/internal/strategy/builtins"
)

// App holds the long-lived collaborators shared by the CLI and the server.
type App struct {
	Config    *config.Config
	Log       *slog.Logger
	Registry  *strategy.Registry
	Bars      *store.ParquetStore
	DB        *store.SQLiteStore
	Feed      *feed.Manager
	Runner    *backtest.Runner
	ParamSets *paramset.Manager
}

// New builds an App from cfg. The caller must Close it.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}

	reg := builtins.NewRegistry()
	bars := store.NewParquetStore(cfg.Storage.DataDir)

	var fetcher gather.Fetcher
	if f := NewFetcher(cfg); f != nil {
		fetcher = f
	} else {
		log.Warn("alpaca credentials not configured, serving local data only")
	}
	fm := feed.NewManager(bars, fetcher, cfg.Backtest.LookbackYears, log.With("component", "feed"))

	runner := backtest.NewRunner(reg, fm, RunConfig(cfg), log)

	return &App{
		Config:    cfg,
		Log:       log,
		Registry:  reg,
		Bars:      bars,
		DB:        db,
		Feed:      fm,
		Runner:    runner,
		ParamSets: paramset.NewManager(db, reg),
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// RunConfig maps the backtest section of cfg onto an engine Config.
func RunConfig(cfg *config.Config) backtest.Config {
	return backtest.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		BarsPerYear:    float64(cfg.Backtest.BarsPerYear),
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
	}
}

// NewFetcher returns an Alpaca fetcher, or nil when no credentials are
// configured.
func NewFetcher(cfg *config.Config) *gather.AlpacaFetcher {
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return nil
	}
	return gather.NewAlpacaFetcher(gather.AlpacaOptions{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		Feed:            cfg.Alpaca.Feed,
		MaxAttempts:     cfg.Fetch.MaxAttempts,
		BaseDelay:       cfg.Fetch.BaseDelay,
		RateLimitPerMin: cfg.Fetch.RateLimitPerMin,
		Timeout:         cfg.Fetch.Timeout,
	})
}
