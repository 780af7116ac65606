package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tradeview/internal/domain"
	"tradeview/internal/strategy"
)

// BarSource supplies the ascending bar series for a symbol and date range.
// Implementations return an error wrapping domain.ErrNoData when the range
// is empty. Retries and timeouts are the source's concern.
type BarSource interface {
	Bars(ctx context.Context, symbol string, r domain.DateRange) ([]domain.Bar, error)
}

// DataError wraps a failure of the BarSource.
type DataError struct {
	Symbol string
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("loading bars for %s: %v", e.Symbol, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// Request identifies one run.
type Request struct {
	Strategy       string           `json:"strategy"`
	Symbol         string           `json:"symbol"`
	Range          domain.DateRange `json:"-"`
	Params         strategy.Params  `json:"params,omitempty"`
	InitialCapital float64          `json:"initial_capital,omitempty"`
}

// Runner resolves strategies through a registry, loads bars from a source
// and runs each request on its own Engine.
type Runner struct {
	registry *strategy.Registry
	source   BarSource
	cfg      Config
	log      *slog.Logger
}

// NewRunner creates a Runner. cfg supplies defaults for requests that leave
// InitialCapital zero.
func NewRunner(registry *strategy.Registry, source BarSource, cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		registry: registry,
		source:   source,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// Run validates req, loads its bars and runs the simulation. Unknown
// strategies and bad parameters fail before any bars are loaded.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	s, err := r.registry.New(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}

	cfg := r.cfg
	if req.InitialCapital != 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w (got %v)", ErrInvalidCapital, cfg.InitialCapital)
	}

	bars, err := r.source.Bars(ctx, req.Symbol, req.Range)
	if err != nil {
		if !errors.Is(err, domain.ErrNoData) {
			return nil, &DataError{Symbol: req.Symbol, Err: err}
		}
		bars = nil
	}

	return NewEngine(cfg, r.log.With("symbol", req.Symbol)).Run(s, bars)
}

// RunAll executes reqs concurrently with at most limit runs in flight
// (limit <= 0 means unbounded). Reports are returned in request order. The
// first failure cancels the remaining loads.
func (r *Runner) RunAll(ctx context.Context, reqs []Request, limit int) ([]*Report, error) {
	reports := make([]*Report, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			rep, err := r.Run(ctx, req)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", req.Strategy, req.Symbol, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
