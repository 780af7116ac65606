// Package feed serves daily bars to the backtest engine. Bars come from an
// in-memory cache, the local Parquet store, or a remote fetcher, in that
// order.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"tradeview/internal/domain"
	"tradeview/internal/gather"
	"tradeview/internal/store"
)

// DefaultSymbols are always offered by Symbols, whether or not they are
// stored locally.
var DefaultSymbols = []string{"AAPL", "TSLA", "GOOGL", "MSFT", "AMZN", "META", "NVDA", "SPY", "QQQ"}

// DefaultLookbackYears is the span of a request with no start date.
const DefaultLookbackYears = 2

// ErrNoFetcher is returned by Refresh when no remote source is configured.
var ErrNoFetcher = errors.New("no remote fetcher configured")

// Manager resolves bar requests against the cache, the local store and the
// remote fetcher. It satisfies backtest.BarSource.
type Manager struct {
	store    store.BarStore
	fetcher  gather.Fetcher
	cache    *Cache
	lookback int
	log      *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. fetcher may be nil, in which case only
// locally stored bars are served. lookbackYears <= 0 uses
// DefaultLookbackYears.
func NewManager(bars store.BarStore, fetcher gather.Fetcher, lookbackYears int, log *slog.Logger) *Manager {
	if lookbackYears <= 0 {
		lookbackYears = DefaultLookbackYears
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    bars,
		fetcher:  fetcher,
		cache:    NewCache(),
		lookback: lookbackYears,
		log:      log,
		now:      time.Now,
	}
}

// Cache exposes the manager's cache.
func (m *Manager) Cache() *Cache { return m.cache }

// Resolve fills in a zero End with today and a zero Start with End minus
// the lookback.
func (m *Manager) Resolve(r domain.DateRange) domain.DateRange {
	if r.End.IsZero() {
		y, mo, d := m.now().UTC().Date()
		r.End = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	}
	if r.Start.IsZero() {
		r.Start = r.End.AddDate(-m.lookback, 0, 0)
	}
	return r
}

// Bars returns the ascending bars for symbol inside r. Locally stored bars
// are used when they cover the whole range; otherwise the range is fetched
// and persisted first. An empty result wraps domain.ErrNoData.
func (m *Manager) Bars(ctx context.Context, symbol string, r domain.DateRange) ([]domain.Bar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, errors.New("empty symbol")
	}
	r = m.Resolve(r)
	key := CacheKey(symbol, r)

	if bars, ok := m.cache.Get(key); ok {
		return bars, nil
	}

	covered, err := m.covers(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	if !covered && m.fetcher != nil {
		m.log.Info("local data does not cover range, fetching",
			"symbol", symbol, "range", r.String(), "source", m.fetcher.Name())
		if err := m.download(ctx, symbol, r); err != nil {
			return nil, err
		}
	}

	bars, err := m.store.ReadBars(ctx, symbol, r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", symbol, r, domain.ErrNoData)
	}

	m.cache.Put(key, bars)
	return bars, nil
}

// covers reports whether local data spans r.
func (m *Manager) covers(ctx context.Context, symbol string, r domain.DateRange) (bool, error) {
	cov, err := m.store.Coverage(ctx, symbol)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking coverage for %s: %w", symbol, err)
	}
	return cov.StartDate <= r.Start.Format(domain.DateLayout) &&
		cov.EndDate >= r.End.Format(domain.DateLayout), nil
}

func (m *Manager) download(ctx context.Context, symbol string, r domain.DateRange) error {
	bars, err := m.fetcher.FetchDailyBars(ctx, symbol, r)
	if err != nil {
		return fmt.Errorf("fetching %s from %s: %w", symbol, m.fetcher.Name(), err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("%s %s: %w", symbol, r, domain.ErrNoData)
	}
	if err := m.store.WriteBars(ctx, bars); err != nil {
		return fmt.Errorf("storing %s: %w", symbol, err)
	}
	m.cache.Invalidate(symbol)
	m.log.Info("stored bars", "symbol", symbol, "count", len(bars))
	return nil
}

// Refresh downloads r for symbol regardless of local coverage and returns
// the updated coverage.
func (m *Manager) Refresh(ctx context.Context, symbol string, r domain.DateRange) (domain.LocalSymbol, error) {
	if m.fetcher == nil {
		return domain.LocalSymbol{}, ErrNoFetcher
	}
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.LocalSymbol{}, errors.New("empty symbol")
	}
	if err := m.download(ctx, symbol, m.Resolve(r)); err != nil {
		return domain.LocalSymbol{}, err
	}
	return m.store.Coverage(ctx, symbol)
}

// ListLocal summarises every locally stored symbol, sorted by symbol.
func (m *Manager) ListLocal(ctx context.Context) ([]domain.LocalSymbol, error) {
	symbols, err := m.store.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing local symbols: %w", err)
	}
	out := make([]domain.LocalSymbol, 0, len(symbols))
	for _, sym := range symbols {
		cov, err := m.store.Coverage(ctx, sym)
		if err != nil {
			m.log.Warn("skipping unreadable symbol", "symbol", sym, "error", err)
			continue
		}
		out = append(out, cov)
	}
	return out, nil
}

// Symbols returns DefaultSymbols merged with locally stored symbols, sorted.
func (m *Manager) Symbols(ctx context.Context) ([]string, error) {
	local, err := m.store.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing local symbols: %w", err)
	}
	all := append(slices.Clone(DefaultSymbols), local...)
	slices.Sort(all)
	return slices.Compact(all), nil
}

// Delete removes the stored bars for symbol and its cached ranges.
func (m *Manager) Delete(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)
	m.cache.Invalidate(symbol)
	return m.store.DeleteSymbol(ctx, symbol)
}

// ImportCSV stores bars read from a CSV export and returns the resulting
// coverage.
func (m *Manager) ImportCSV(ctx context.Context, symbol string, r io.Reader) (domain.LocalSymbol, error) {
	symbol = domain.NormalizeSymbol(symbol)
	bars, err := gather.ReadCSV(r, symbol)
	if err != nil {
		return domain.LocalSymbol{}, err
	}
	if len(bars) == 0 {
		return domain.LocalSymbol{}, fmt.Errorf("importing %s: %w", symbol, domain.ErrNoData)
	}
	if err := m.store.WriteBars(ctx, bars); err != nil {
		return domain.LocalSymbol{}, fmt.Errorf("storing %s: %w", symbol, err)
	}
	m.cache.Invalidate(symbol)
	return m.store.Coverage(ctx, symbol)
}
