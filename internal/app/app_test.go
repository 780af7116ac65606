package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tradeview/internal/backtest"
	"tradeview/internal/config"
	"tradeview/internal/domain"
	"tradeview/internal/strategy/builtins"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.SQLitePath = filepath.Join(dir, "db", "tradeview.db")
	cfg.Alpaca = config.Alpaca{}
	return cfg
}

func TestNewWiresCollaborators(t *testing.T) {
	a, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if got := a.Registry.List(); len(got) != 2 {
		t.Errorf("registry = %v, want two built-ins", got)
	}

	rep, err := a.Runner.Run(context.Background(), backtest.Request{
		Strategy: builtins.MACrossID,
		Symbol:   "AAPL",
	})
	if err != nil {
		t.Fatalf("Run without local data: %v", err)
	}
	if !rep.NoData {
		t.Error("expected a no-data report without fetcher or local bars")
	}

	if _, err := a.Feed.Bars(context.Background(), "AAPL", domain.DateRange{}); !errors.Is(err, domain.ErrNoData) {
		t.Errorf("Feed.Bars = %v, want ErrNoData", err)
	}
}

func TestNewFetcherRequiresCredentials(t *testing.T) {
	cfg := testConfig(t)
	if NewFetcher(cfg) != nil {
		t.Error("fetcher built without credentials")
	}
	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "k", "s"
	f := NewFetcher(cfg)
	if f == nil || f.Name() != "alpaca" {
		t.Errorf("NewFetcher = %v", f)
	}
}

func TestRunConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backtest.BarsPerYear = 365
	cfg.Backtest.RiskFreeRate = 0.03
	rc := RunConfig(cfg)
	if rc.BarsPerYear != 365 || rc.RiskFreeRate != 0.03 || rc.InitialCapital != 100000 {
		t.Errorf("RunConfig = %+v", rc)
	}
}
