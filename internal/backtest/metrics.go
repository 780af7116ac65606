package backtest

import (
	"math"
	"time"

	"tradeview/internal/domain"
)

// TradePair is a BUY matched with the SELL that closed it.
type TradePair struct {
	Buy       domain.Trade
	Sell      domain.Trade
	ProfitPct float64
}

// Won reports whether the pair made money. Breakeven counts as a loss.
func (p TradePair) Won() bool { return p.ProfitPct > 0 }

// Metrics holds unrounded statistics for one run.
type Metrics struct {
	FinalValue           float64
	ReturnPct            float64
	AnnualReturnPct      float64
	MaxDrawdownPct       float64
	SharpeRatio          float64
	TotalTrades          int
	WonTrades            int
	LostTrades           int
	WinRate              float64
	AvgProfitPct         float64
	MaxProfitPct         float64
	MaxLossPct           float64
	MaxConsecutiveLosses int
	ProfitFactor         float64
}

func computeMetrics(cfg Config, bars []domain.Bar, equity []domain.EquityPoint, trades []domain.Trade) Metrics {
	var m Metrics
	if len(equity) == 0 {
		m.FinalValue = cfg.InitialCapital
		return m
	}

	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.TotalValue
	}

	m.FinalValue = values[len(values)-1]
	m.ReturnPct = (m.FinalValue - cfg.InitialCapital) / cfg.InitialCapital * 100
	m.AnnualReturnPct = AnnualizedReturn(m.ReturnPct, bars[0].Timestamp, bars[len(bars)-1].Timestamp)
	m.MaxDrawdownPct = MaxDrawdown(values)
	m.SharpeRatio = SharpeRatio(values, cfg.RiskFreeRate, cfg.BarsPerYear)

	pairs := PairTrades(trades)
	profits := make([]float64, len(pairs))
	for i, p := range pairs {
		profits[i] = p.ProfitPct
		if p.Won() {
			m.WonTrades++
		} else {
			m.LostTrades++
		}
	}
	m.TotalTrades = len(pairs)
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WonTrades) / float64(m.TotalTrades) * 100
		m.AvgProfitPct, m.MaxProfitPct, m.MaxLossPct = summarize(profits)
	}
	m.MaxConsecutiveLosses = MaxConsecutiveLosses(profits)
	m.ProfitFactor = ProfitFactor(profits)
	return m
}

// PairTrades matches the i-th BUY with the i-th SELL in arrival order. A
// trailing open position has no pair and is left out.
func PairTrades(trades []domain.Trade) []TradePair {
	var buys, sells []domain.Trade
	for _, t := range trades {
		switch t.Side {
		case domain.SideBuy:
			buys = append(buys, t)
		case domain.SideSell:
			sells = append(sells, t)
		}
	}

	n := min(len(buys), len(sells))
	pairs := make([]TradePair, n)
	for i := 0; i < n; i++ {
		pairs[i] = TradePair{
			Buy:       buys[i],
			Sell:      sells[i],
			ProfitPct: (sells[i].Price - buys[i].Price) / buys[i].Price * 100,
		}
	}
	return pairs
}

func summarize(profits []float64) (avg, maxP, minP float64) {
	maxP, minP = profits[0], profits[0]
	var sum float64
	for _, p := range profits {
		sum += p
		maxP = max(maxP, p)
		minP = min(minP, p)
	}
	return sum / float64(len(profits)), maxP, minP
}

// MaxDrawdown returns the largest percentage decline from a running peak.
// The peak starts at the first value.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	var maxDD float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// SharpeRatio annualizes the mean excess per-bar return over its sample
// standard deviation. It returns 0 with fewer than two returns or zero
// deviation. Returns following a zero value are undefined and skipped.
func SharpeRatio(values []float64, riskFreeRate, barsPerYear float64) float64 {
	if barsPerYear <= 0 {
		barsPerYear = DefaultBarsPerYear
	}
	perBar := riskFreeRate / barsPerYear

	excess := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		r := (values[i] - values[i-1]) / values[i-1]
		excess = append(excess, r-perBar)
	}
	if len(excess) < 2 {
		return 0
	}

	mean, std := meanStd(excess)
	if std == 0 {
		return 0
	}
	return math.Sqrt(barsPerYear) * mean / std
}

// meanStd returns the mean and sample (n-1) standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

// AnnualizedReturn compounds returnPct over the calendar days between first
// and last, with a one-day minimum.
func AnnualizedReturn(returnPct float64, first, last time.Time) float64 {
	days := max(calendarDays(first, last), 1)
	return (math.Pow(returnPct/100+1, 365/float64(days)) - 1) * 100
}

func calendarDays(first, last time.Time) int {
	a := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// MaxConsecutiveLosses returns the longest run of profits <= 0.
func MaxConsecutiveLosses(profits []float64) int {
	var best, cur int
	for _, p := range profits {
		if p <= 0 {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}

// ProfitFactor divides summed gains by summed losses. With no losses it is
// +Inf when there were gains and 0 otherwise.
func ProfitFactor(profits []float64) float64 {
	var gross, loss float64
	for _, p := range profits {
		switch {
		case p > 0:
			gross += p
		case p < 0:
			loss += p
		}
	}
	loss = math.Abs(loss)
	if loss == 0 {
		if gross > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gross / loss
}
