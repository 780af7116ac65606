package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"tradeview/internal/domain"
	"tradeview/internal/util"
)

// Compile-time interface check.
var _ Fetcher = (*AlpacaFetcher)(nil)

// AlpacaOptions configures an AlpacaFetcher.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Feed            string // "sip" or "iex"; default "iex"
	MaxAttempts     int
	BaseDelay       time.Duration
	RateLimitPerMin int
	Timeout         time.Duration
}

// AlpacaFetcher fetches daily bars from the Alpaca market-data API.
type AlpacaFetcher struct {
	client      *marketdata.Client
	feed        string
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration
	log         *slog.Logger
}

// NewAlpacaFetcher creates an AlpacaFetcher from opts, filling defaults for
// zero fields.
func NewAlpacaFetcher(opts AlpacaOptions) *AlpacaFetcher {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	if opts.Feed == "" {
		opts.Feed = "iex"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &AlpacaFetcher{
		client:      marketdata.NewClient(clientOpts),
		feed:        opts.Feed,
		limiter:     util.NewRateLimiter(opts.RateLimitPerMin),
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		timeout:     opts.Timeout,
		log:         slog.Default().With("fetcher", "alpaca"),
	}
}

var errEmptySymbol = errors.New("empty symbol")

// Name returns the fetcher identifier.
func (f *AlpacaFetcher) Name() string { return "alpaca" }

// FetchDailyBars downloads daily bars for symbol. Each attempt waits for the
// rate limiter and is bounded by the configured timeout; failures are
// retried with exponential backoff.
func (f *AlpacaFetcher) FetchDailyBars(ctx context.Context, symbol string, r domain.DateRange) ([]domain.Bar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	var bars []domain.Bar

	err := util.Retry(ctx, f.maxAttempts, f.baseDelay, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		var err error
		bars, err = f.fetch(attemptCtx, symbol, r)
		if errors.Is(err, errEmptySymbol) {
			return util.Permanent(err)
		}
		if err != nil {
			f.log.Warn("fetch attempt failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s from alpaca: %w", symbol, err)
	}

	f.log.Info("fetched daily bars", "symbol", symbol, "bars", len(bars), "range", r.String())
	return bars, nil
}

func (f *AlpacaFetcher) fetch(ctx context.Context, symbol string, r domain.DateRange) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if symbol == "" {
		return nil, errEmptySymbol
	}

	type result struct {
		bars map[string][]marketdata.Bar
		err  error
	}
	done := make(chan result, 1)
	go func() {
		multiBars, err := f.client.GetMultiBars([]string{symbol}, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     r.Start,
			// End is inclusive for callers; the API treats it as exclusive.
			End:  r.End.AddDate(0, 0, 1),
			Feed: marketdata.Feed(f.feed),
		})
		done <- result{multiBars, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", res.err)
	}

	var bars []domain.Bar
	for sym, alpacaBars := range res.bars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(sym),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}
