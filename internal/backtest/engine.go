// Package backtest replays a bar series through a strategy, derives risk and
// return metrics from the resulting equity curve and trade log, and
// assembles them into a serializable Report.
package backtest

import (
	"errors"
	"fmt"
	"log/slog"

	"tradeview/internal/domain"
	"tradeview/internal/strategy"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultBarsPerYear    = 252.0
	DefaultInitialCapital = 100000.0
)

// ErrInvalidCapital is returned when a run is started with non-positive
// initial capital.
var ErrInvalidCapital = errors.New("initial capital must be positive")

// Config controls a single simulation.
type Config struct {
	InitialCapital float64
	// BarsPerYear annualizes the Sharpe ratio. 252 assumes daily bars.
	BarsPerYear float64
	// RiskFreeRate is annual; it is spread evenly over BarsPerYear.
	RiskFreeRate float64
}

func (c Config) withDefaults() Config {
	if c.InitialCapital == 0 {
		c.InitialCapital = DefaultInitialCapital
	}
	if c.BarsPerYear <= 0 {
		c.BarsPerYear = DefaultBarsPerYear
	}
	return c
}

// Engine runs one strategy over one bar series. An Engine and its Strategy
// belong to a single run at a time; use separate instances for concurrent
// runs.
type Engine struct {
	cfg Config
	log *slog.Logger

	trades  []domain.Trade
	equity  []domain.EquityPoint
	signals []domain.Signal
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg: cfg.withDefaults(),
		log: log.With("component", "backtest"),
	}
}

// Run resets s, funds it with the configured initial capital and replays
// bars through it in a single forward pass. Bars must be in ascending
// timestamp order; they are not re-sorted. An empty series yields a report
// with NoData set.
func (e *Engine) Run(s strategy.Strategy, bars []domain.Bar) (*Report, error) {
	if s == nil {
		return nil, errors.New("running backtest: nil strategy")
	}
	if e.cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("running backtest: %w (got %v)", ErrInvalidCapital, e.cfg.InitialCapital)
	}

	s.Reset()
	book := s.Book()
	book.Reset(e.cfg.InitialCapital)
	e.trades = make([]domain.Trade, 0)
	e.equity = make([]domain.EquityPoint, 0, len(bars))
	e.signals = make([]domain.Signal, 0)

	if len(bars) == 0 {
		e.log.Warn("backtest has no bars", "strategy", s.Name())
		return emptyReport(e.cfg.InitialCapital), nil
	}

	e.log.Info("backtest starting",
		"strategy", s.Name(),
		"bars", len(bars),
		"start", bars[0].Timestamp.Format(domain.DateLayout),
		"end", bars[len(bars)-1].Timestamp.Format(domain.DateLayout),
		"initial_capital", e.cfg.InitialCapital,
	)

	for _, bar := range bars {
		e.step(s, book, bar)
	}

	m := computeMetrics(e.cfg, bars, e.equity, e.trades)
	report := assemble(e.cfg.InitialCapital, bars, m, e.trades, e.equity, e.signals)

	e.log.Info("backtest complete",
		"strategy", s.Name(),
		"final_value", report.FinalValue,
		"return_pct", report.ReturnPct,
		"trades", len(e.trades),
	)
	return report, nil
}

// step advances the strategy by one bar. A buy and a sell never both fire
// on the same bar.
func (e *Engine) step(s strategy.Strategy, book *strategy.Book, bar domain.Bar) {
	price := bar.Close
	s.OnBar(bar)

	if strategy.ShouldBuy(s) {
		if book.Buy(price, s.PositionSize(price)) {
			// BUY size is the position just opened.
			e.record(bar, domain.SideBuy, price, book.Position())
		}
	} else if strategy.ShouldSell(s) {
		// SELL size is the position being closed.
		size := book.Position()
		if book.Sell(price) {
			e.record(bar, domain.SideSell, price, size)
		}
	}

	positionValue := book.Position() * price
	e.equity = append(e.equity, domain.EquityPoint{
		Timestamp:     bar.Timestamp,
		TotalValue:    book.Cash() + positionValue,
		Cash:          book.Cash(),
		PositionValue: positionValue,
		Price:         price,
	})
}

func (e *Engine) record(bar domain.Bar, side domain.Side, price, size float64) {
	e.trades = append(e.trades, domain.Trade{
		Timestamp: bar.Timestamp,
		Side:      side,
		Price:     price,
		Size:      size,
	})
	e.signals = append(e.signals, domain.Signal{
		Timestamp: bar.Timestamp,
		Side:      side,
		Price:     price,
	})
}
