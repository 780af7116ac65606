// Package domain holds the value types shared across the tradeview packages:
// price bars, simulated trades and signals, equity points, and saved
// parameter sets.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoData is returned by bar sources when a symbol has no bars in the
// requested range.
var ErrNoData = errors.New("no data")

// DateLayout is the calendar-date format used in ranges, cache keys and
// report dates.
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one daily OHLCV observation.
type Bar struct {
	Symbol     string    `json:"symbol,omitempty"`
	Timestamp  time.Time `json:"datetime"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count,omitempty"`
	VWAP       float64   `json:"vwap,omitempty"`
}

// DateRange is an inclusive calendar range. A zero Start or End means
// "unbounded" until a collaborator fills in its default.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses YYYY-MM-DD strings. Empty strings leave the
// corresponding bound zero.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if start != "" {
		if r.Start, err = time.Parse(DateLayout, start); err != nil {
			return DateRange{}, fmt.Errorf("parsing start date %q: %w", start, err)
		}
	}
	if end != "" {
		if r.End, err = time.Parse(DateLayout, end); err != nil {
			return DateRange{}, fmt.Errorf("parsing end date %q: %w", end, err)
		}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("end date %s before start date %s", end, start)
	}
	return r, nil
}

// Contains reports whether t falls on a calendar day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := t.Format(DateLayout)
	if !r.Start.IsZero() && d < r.Start.Format(DateLayout) {
		return false
	}
	if !r.End.IsZero() && d > r.End.Format(DateLayout) {
		return false
	}
	return true
}

// String returns "START_END" using DateLayout.
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + "_" + r.End.Format(DateLayout)
}

// LocalSymbol summarises the bars persisted locally for one symbol.
type LocalSymbol struct {
	Symbol    string `json:"symbol"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Records   int    `json:"records"`
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ---------------------------------------------------------------------------
// Simulation output
// ---------------------------------------------------------------------------

// Side is the direction of a simulated trade or signal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is a fill produced by a successful buy or sell.
type Trade struct {
	Timestamp time.Time `json:"datetime"`
	Side      Side      `json:"type"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
}

// Signal marks a bar on which the strategy opened or closed a position.
type Signal struct {
	Timestamp time.Time `json:"datetime"`
	Side      Side      `json:"signal"`
	Price     float64   `json:"price"`
}

// EquityPoint is the account value at the close of one bar.
// TotalValue == Cash + PositionValue.
type EquityPoint struct {
	Timestamp     time.Time `json:"datetime"`
	TotalValue    float64   `json:"total_value"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
	Price         float64   `json:"price"`
}

// ---------------------------------------------------------------------------
// Saved configuration
// ---------------------------------------------------------------------------

// ParamSet is a named, persisted set of strategy parameters.
type ParamSet struct {
	ID          string         `json:"id" yaml:"id,omitempty"`
	Name        string         `json:"name" yaml:"name"`
	Strategy    string         `json:"strategy" yaml:"strategy"`
	Symbol      string         `json:"symbol" yaml:"symbol"`
	Params      map[string]any `json:"params" yaml:"params"`
	Description string         `json:"description" yaml:"description"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at" yaml:"updated_at,omitempty"`
}
