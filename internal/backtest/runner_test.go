package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"tradeview/internal/domain"
	"tradeview/internal/strategy"
	"tradeview/internal/strategy/builtins"
)

type fakeSource struct {
	bars  map[string][]domain.Bar
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Bars(_ context.Context, symbol string, _ domain.DateRange) ([]domain.Bar, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoData)
	}
	return bars, nil
}

func newRunner(src BarSource) *Runner {
	return NewRunner(builtins.NewRegistry(), src, Config{InitialCapital: 100000}, nil)
}

func TestRunnerRun(t *testing.T) {
	src := &fakeSource{bars: map[string][]domain.Bar{"AAPL": makeBars(risingThenFalling())}}
	rep, err := newRunner(src).Run(context.Background(), Request{
		Strategy: builtins.MACrossID,
		Symbol:   "AAPL",
		Params:   strategy.Params{"fast_period": 5, "slow_period": 20},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.TotalTrades != 1 || rep.InitialCapital != 100000 {
		t.Errorf("report = total %d capital %v", rep.TotalTrades, rep.InitialCapital)
	}
}

func TestRunnerConfigErrorsBeforeLoading(t *testing.T) {
	src := &fakeSource{}
	r := newRunner(src)

	_, err := r.Run(context.Background(), Request{Strategy: "nope", Symbol: "AAPL"})
	if !errors.Is(err, strategy.ErrUnknownStrategy) {
		t.Errorf("unknown strategy error = %v", err)
	}

	_, err = r.Run(context.Background(), Request{
		Strategy: builtins.MACrossID,
		Symbol:   "AAPL",
		Params:   strategy.Params{"fast_period": 1},
	})
	if !errors.Is(err, strategy.ErrInvalidParams) {
		t.Errorf("bad params error = %v", err)
	}

	_, err = r.Run(context.Background(), Request{Strategy: builtins.MACrossID, Symbol: "AAPL", InitialCapital: -5})
	if !errors.Is(err, ErrInvalidCapital) {
		t.Errorf("bad capital error = %v", err)
	}

	if n := src.calls.Load(); n != 0 {
		t.Errorf("source called %d times, want 0", n)
	}
}

func TestRunnerNoData(t *testing.T) {
	rep, err := newRunner(&fakeSource{}).Run(context.Background(), Request{
		Strategy:       builtins.MACrossID,
		Symbol:         "MISSING",
		InitialCapital: 5000,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.NoData || rep.FinalValue != 5000 {
		t.Errorf("report = %+v, want no_data with final value 5000", rep)
	}
}

func TestRunnerDataError(t *testing.T) {
	boom := errors.New("network down")
	_, err := newRunner(&fakeSource{err: boom}).Run(context.Background(), Request{
		Strategy: builtins.MACrossID,
		Symbol:   "AAPL",
	})
	var de *DataError
	if !errors.As(err, &de) || de.Symbol != "AAPL" || !errors.Is(err, boom) {
		t.Errorf("error = %v, want DataError wrapping %v", err, boom)
	}
}

func TestRunnerRunAll(t *testing.T) {
	src := &fakeSource{bars: map[string][]domain.Bar{
		"AAPL": makeBars(risingThenFalling()),
		"MSFT": makeBars([]float64{100, 100, 100}),
	}}
	reqs := []Request{
		{Strategy: builtins.MACrossID, Symbol: "AAPL"},
		{Strategy: builtins.TemplateID, Symbol: "MSFT"},
		{Strategy: builtins.MACrossID, Symbol: "AAPL", Params: strategy.Params{"ma_type": "EMA"}},
	}
	reports, err := newRunner(src).RunAll(context.Background(), reqs, 2)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(reports))
	}
	if reports[0].TotalTrades != 1 {
		t.Errorf("AAPL total trades = %d, want 1", reports[0].TotalTrades)
	}
	if reports[1].TradingDays != 3 {
		t.Errorf("MSFT trading days = %d, want 3", reports[1].TradingDays)
	}

	_, err = newRunner(src).RunAll(context.Background(), append(reqs, Request{Strategy: "nope"}), 0)
	if !errors.Is(err, strategy.ErrUnknownStrategy) {
		t.Errorf("RunAll error = %v, want ErrUnknownStrategy", err)
	}
}
