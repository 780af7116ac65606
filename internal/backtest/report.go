package backtest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"tradeview/internal/domain"
)

// Report is the canonical result of one run. Percentages and ratios are
// rounded to two decimals; the trade, equity and signal logs are exact.
type Report struct {
	InitialCapital       float64              `json:"initial_capital"`
	FinalValue           float64              `json:"final_value"`
	ReturnPct            float64              `json:"return_pct"`
	AnnualReturnPct      Ratio                `json:"annual_return_pct"`
	MaxDrawdownPct       float64              `json:"max_drawdown_pct"`
	SharpeRatio          Ratio                `json:"sharpe_ratio"`
	TotalTrades          int                  `json:"total_trades"`
	WonTrades            int                  `json:"won_trades"`
	LostTrades           int                  `json:"lost_trades"`
	WinRate              float64              `json:"win_rate"`
	AvgProfitPct         float64              `json:"avg_profit_pct"`
	MaxProfitPct         float64              `json:"max_profit_pct"`
	MaxLossPct           float64              `json:"max_loss_pct"`
	MaxConsecutiveLosses int                  `json:"max_consecutive_losses"`
	ProfitFactor         Ratio                `json:"profit_factor"`
	StartDate            string               `json:"start_date"`
	EndDate              string               `json:"end_date"`
	TradingDays          int                  `json:"trading_days"`
	Trades               []domain.Trade       `json:"trades"`
	EquityCurve          []domain.EquityPoint `json:"equity_curve"`
	Signals              []domain.Signal      `json:"signals"`
	NoData               bool                 `json:"no_data"`
	Error                string               `json:"error,omitempty"`
}

func assemble(initial float64, bars []domain.Bar, m Metrics, trades []domain.Trade, equity []domain.EquityPoint, signals []domain.Signal) *Report {
	return &Report{
		InitialCapital:       initial,
		FinalValue:           round2(m.FinalValue),
		ReturnPct:            round2(m.ReturnPct),
		AnnualReturnPct:      Ratio(round2(m.AnnualReturnPct)),
		MaxDrawdownPct:       round2(m.MaxDrawdownPct),
		SharpeRatio:          Ratio(round2(m.SharpeRatio)),
		TotalTrades:          m.TotalTrades,
		WonTrades:            m.WonTrades,
		LostTrades:           m.LostTrades,
		WinRate:              round2(m.WinRate),
		AvgProfitPct:         round2(m.AvgProfitPct),
		MaxProfitPct:         round2(m.MaxProfitPct),
		MaxLossPct:           round2(m.MaxLossPct),
		MaxConsecutiveLosses: m.MaxConsecutiveLosses,
		ProfitFactor:         Ratio(round2(m.ProfitFactor)),
		StartDate:            bars[0].Timestamp.Format(domain.DateLayout),
		EndDate:              bars[len(bars)-1].Timestamp.Format(domain.DateLayout),
		TradingDays:          len(bars),
		Trades:               trades,
		EquityCurve:          equity,
		Signals:              signals,
	}
}

// emptyReport is the degenerate report for a run with no bars.
func emptyReport(initial float64) *Report {
	return &Report{
		InitialCapital: initial,
		FinalValue:     initial,
		Trades:         []domain.Trade{},
		EquityCurve:    []domain.EquityPoint{},
		Signals:        []domain.Signal{},
		NoData:         true,
		Error:          "No data",
	}
}

// round2 rounds half away from zero to two decimals. NaN and infinities pass
// through.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// WriteJSON encodes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// SaveJSON writes r to path, creating parent directories.
func (r *Report) SaveJSON(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// Ratio
// ---------------------------------------------------------------------------

// Ratio is a float64 that survives JSON when infinite. Infinities encode as
// the strings "Infinity" and "-Infinity"; NaN encodes as null.
type Ratio float64

const (
	posInf = "Infinity"
	negInf = "-Infinity"
)

// IsInf reports whether r is +Inf.
func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 1) }

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return json.Marshal(posInf)
	case math.IsInf(f, -1):
		return json.Marshal(negInf)
	case math.IsNaN(f):
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio(math.NaN())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case posInf:
			*r = Ratio(math.Inf(1))
		case negInf:
			*r = Ratio(math.Inf(-1))
		default:
			return fmt.Errorf("invalid ratio %q", s)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

func (r Ratio) String() string {
	if r.IsInf() {
		return "inf"
	}
	return fmt.Sprintf("%.2f", float64(r))
}
