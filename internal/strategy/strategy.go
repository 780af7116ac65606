// Package strategy defines the Strategy interface driven by the backtest
// engine, the position/cash Book every strategy carries, and a Registry that
// maps strategy identifiers to constructors.
package strategy

import (
	"tradeview/internal/domain"
)

// DefaultCashFraction is the share of available cash committed by the
// default sizing policy. The rest is held back as a reserve.
const DefaultCashFraction = 0.95

// DefaultInitialCapital is used by strategies constructed without an explicit
// capital. The engine overrides it at the start of every run.
const DefaultInitialCapital = 100000.0

// Strategy is the interface that all backtestable strategies must implement.
// Callers should query signals through ShouldBuy and ShouldSell, which enforce
// the position guards, rather than calling EntrySignal/ExitSignal directly.
type Strategy interface {
	// Name returns the registry identifier for this strategy.
	Name() string

	// OnBar ingests the next bar and updates indicator state. It must only
	// use the current bar and bars already seen.
	OnBar(bar domain.Bar)

	// EntrySignal reports whether entry conditions hold on the latest bar.
	EntrySignal() bool

	// ExitSignal reports whether exit conditions hold on the latest bar.
	ExitSignal() bool

	// PositionSize returns the size to buy at price.
	PositionSize(price float64) float64

	// Reset clears all mutable state, including indicator buffers, and
	// restores cash to the book's initial capital.
	Reset()

	// Book returns the strategy's position and cash state.
	Book() *Book
}

// ShouldBuy reports whether s wants to enter. It is always false while a
// position is open.
func ShouldBuy(s Strategy) bool {
	if s.Book().Position() > 0 {
		return false
	}
	return s.EntrySignal()
}

// ShouldSell reports whether s wants to exit. It is always false while flat.
func ShouldSell(s Strategy) bool {
	if s.Book().Position() <= 0 {
		return false
	}
	return s.ExitSignal()
}

// ---------------------------------------------------------------------------
// Base
// ---------------------------------------------------------------------------

// Base supplies the Book, the default sizing policy and the base Reset.
// Concrete strategies embed it and chain their own Reset to Base.Reset.
type Base struct {
	book Book
}

// NewBase returns a Base funded with capital.
func NewBase(capital float64) Base {
	return Base{book: NewBook(capital)}
}

// Book returns the embedded book.
func (b *Base) Book() *Book { return &b.book }

// PositionSize commits DefaultCashFraction of available cash at price.
func (b *Base) PositionSize(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return b.book.Cash() * DefaultCashFraction / price
}

// Reset restores the book to its initial capital with no position.
func (b *Base) Reset() {
	b.book.Reset(b.book.InitialCapital())
}
