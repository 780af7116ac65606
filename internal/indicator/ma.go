// Package indicator provides streaming technical indicators. Every indicator
// consumes one value per Update in O(1) time and reports whether it has seen
// enough history to be defined.
package indicator

import "fmt"

// MovingAverage is a streaming average over a fixed period.
type MovingAverage interface {
	// Update feeds the next value and returns the current average and
	// whether it is defined yet.
	Update(v float64) (float64, bool)
	// Value returns the last computed average.
	Value() (float64, bool)
	Period() int
	Reset()
}

// New returns an SMA or EMA by kind ("SMA" or "EMA", case sensitive).
func New(kind string, period int) (MovingAverage, error) {
	if period < 1 {
		return nil, fmt.Errorf("period must be >= 1, got %d", period)
	}
	switch kind {
	case "SMA":
		return NewSMA(period), nil
	case "EMA":
		return NewEMA(period), nil
	default:
		return nil, fmt.Errorf("unknown moving average type %q", kind)
	}
}

// ---------------------------------------------------------------------------
// SMA
// ---------------------------------------------------------------------------

// SMA is a simple moving average backed by a ring buffer and a running sum.
type SMA struct {
	period int
	window []float64
	next   int
	count  int
	sum    float64
	value  float64
}

// NewSMA creates an SMA over period values.
func NewSMA(period int) *SMA {
	return &SMA{period: period, window: make([]float64, period)}
}

func (s *SMA) Update(v float64) (float64, bool) {
	if s.count == s.period {
		s.sum -= s.window[s.next]
	} else {
		s.count++
	}
	s.window[s.next] = v
	s.sum += v
	s.next = (s.next + 1) % s.period

	if s.count < s.period {
		return 0, false
	}
	s.value = s.sum / float64(s.period)
	return s.value, true
}

func (s *SMA) Value() (float64, bool) {
	return s.value, s.count == s.period
}

func (s *SMA) Period() int { return s.period }

func (s *SMA) Reset() {
	for i := range s.window {
		s.window[i] = 0
	}
	s.next, s.count, s.sum, s.value = 0, 0, 0, 0
}

// ---------------------------------------------------------------------------
// EMA
// ---------------------------------------------------------------------------

// EMA is an exponential moving average seeded with the SMA of its first
// period values and smoothed with multiplier 2/(period+1) afterwards.
type EMA struct {
	period int
	k      float64
	seed   float64
	count  int
	value  float64
}

// NewEMA creates an EMA over period values.
func NewEMA(period int) *EMA {
	return &EMA{period: period, k: 2.0 / float64(period+1)}
}

func (e *EMA) Update(v float64) (float64, bool) {
	switch {
	case e.count < e.period-1:
		e.seed += v
		e.count++
		return 0, false
	case e.count == e.period-1:
		e.seed += v
		e.count++
		e.value = e.seed / float64(e.period)
	default:
		e.value = (v-e.value)*e.k + e.value
	}
	return e.value, true
}

func (e *EMA) Value() (float64, bool) {
	return e.value, e.count >= e.period
}

func (e *EMA) Period() int { return e.period }

func (e *EMA) Reset() {
	e.seed, e.count, e.value = 0, 0, 0
}
