// Package builtins provides the strategy implementations that ship with
// tradeview and a Register helper that wires them into a Registry.
package builtins

import (
	"fmt"
	"math"

	"tradeview/internal/domain"
	"tradeview/internal/indicator"
	"tradeview/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACross)(nil)

const (
	MACrossID  = "ma_cross_strategy"
	TemplateID = "strategy_template"
)

// relation is the ordering of the fast average against the slow one.
type relation int

const (
	relUnknown relation = iota // an average is still warming up
	relBelow
	relEqual
	relAbove
)

// crossTolerance is the relative gap below which the averages are equal.
// Averages of the same prices over different windows can differ in the last
// bits.
const crossTolerance = 1e-9

func compare(fast, slow float64) relation {
	switch {
	case math.Abs(fast-slow) <= crossTolerance*math.Max(math.Abs(fast), math.Abs(slow)):
		return relEqual
	case fast > slow:
		return relAbove
	case fast < slow:
		return relBelow
	default:
		return relEqual
	}
}

// MACross buys on a golden cross (fast average moves above the slow one) and
// sells on a death cross. Both averages update in O(1) per bar.
//
// Until both averages are defined the previous relation is unknown, and
// unknown is treated as neither above nor below. The first defined bar with
// fast > slow is therefore a golden cross. Averages within crossTolerance of
// each other compare equal and never cross.
type MACross struct {
	strategy.Base

	id     string
	maType string
	fast   indicator.MovingAverage
	slow   indicator.MovingAverage

	prev   relation
	golden bool
	death  bool
}

// NewMACross creates a crossover strategy. maType is "SMA" or "EMA".
func NewMACross(id string, fastPeriod, slowPeriod int, maType string) (*MACross, error) {
	if fastPeriod >= slowPeriod {
		return nil, &strategy.ParamError{
			Strategy: id,
			Param:    "fast_period",
			Reason:   fmt.Sprintf("must be less than slow_period (%d >= %d)", fastPeriod, slowPeriod),
		}
	}
	fast, err := indicator.New(maType, fastPeriod)
	if err != nil {
		return nil, err
	}
	slow, err := indicator.New(maType, slowPeriod)
	if err != nil {
		return nil, err
	}
	return &MACross{
		Base:   strategy.NewBase(strategy.DefaultInitialCapital),
		id:     id,
		maType: maType,
		fast:   fast,
		slow:   slow,
	}, nil
}

// Name returns the registry identifier.
func (s *MACross) Name() string { return s.id }

// OnBar updates both averages with the bar's close and detects crossovers.
func (s *MACross) OnBar(bar domain.Bar) {
	f, fok := s.fast.Update(bar.Close)
	sl, sok := s.slow.Update(bar.Close)

	s.golden, s.death = false, false
	if !fok || !sok {
		return
	}

	cur := compare(f, sl)
	s.golden = s.prev != relAbove && cur == relAbove
	s.death = s.prev != relBelow && cur == relBelow
	s.prev = cur
}

func (s *MACross) EntrySignal() bool { return s.golden }
func (s *MACross) ExitSignal() bool  { return s.death }

// Reset clears both averages and the crossover state, then the book.
func (s *MACross) Reset() {
	s.Base.Reset()
	s.fast.Reset()
	s.slow.Reset()
	s.prev = relUnknown
	s.golden, s.death = false, false
}

// Indicators returns the current averages and trend, or nil during warmup.
func (s *MACross) Indicators() map[string]any {
	f, fok := s.fast.Value()
	sl, sok := s.slow.Value()
	if !fok || !sok {
		return nil
	}
	trend := "bearish"
	if compare(f, sl) == relAbove {
		trend = "bullish"
	}
	return map[string]any{
		"fast_ma": f,
		"slow_ma": sl,
		"ma_diff": f - sl,
		"trend":   trend,
		"ma_type": s.maType,
	}
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func maCrossParams(fast, slow int) []strategy.ParamSpec {
	return []strategy.ParamSpec{
		{Name: "fast_period", Type: strategy.ParamInt, Default: fast, Min: strategy.Bound(2), Max: strategy.Bound(50), Description: "fast moving average period"},
		{Name: "slow_period", Type: strategy.ParamInt, Default: slow, Min: strategy.Bound(5), Max: strategy.Bound(200), Description: "slow moving average period"},
		{Name: "ma_type", Type: strategy.ParamString, Default: "SMA", Options: []string{"SMA", "EMA"}, Description: "moving average type"},
	}
}

func constructor(id string) strategy.Constructor {
	return func(p strategy.Params) (strategy.Strategy, error) {
		return NewMACross(id, p.Int("fast_period"), p.Int("slow_period"), p.String("ma_type"))
	}
}

// Descriptors returns the built-in strategy descriptors.
func Descriptors() []strategy.Descriptor {
	return []strategy.Descriptor{
		{
			ID:          MACrossID,
			Name:        "MA Cross",
			Version:     "1.0.0",
			Description: "Buys when the fast moving average crosses above the slow one and sells on the reverse cross.",
			Tags:        []string{"trend", "moving-average", "crossover"},
			Params:      maCrossParams(5, 20),
			New:         constructor(MACrossID),
		},
		{
			ID:          TemplateID,
			Name:        "Template Strategy",
			Version:     "1.0.0",
			Description: "Starting point for new strategies: a 10/20 simple moving average cross.",
			Tags:        []string{"template"},
			Params:      maCrossParams(10, 20),
			New:         constructor(TemplateID),
		},
	}
}

// Register adds every built-in strategy to reg.
func Register(reg *strategy.Registry) error {
	for _, d := range Descriptors() {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *strategy.Registry {
	reg := strategy.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}
