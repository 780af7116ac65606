package strategy

// Book tracks the long-only position, cash balance and entry price of one
// strategy. Position > 0 if and only if an entry price is set.
//
// A Book has two states: flat (no position) and long. Buying while long or
// selling while flat fails and leaves the book untouched.
type Book struct {
	initial  float64
	cash     float64
	position float64
	entry    float64
	hasEntry bool
}

// NewBook returns a flat book holding capital in cash.
func NewBook(capital float64) Book {
	return Book{initial: capital, cash: capital}
}

func (b *Book) InitialCapital() float64 { return b.initial }
func (b *Book) Cash() float64           { return b.cash }
func (b *Book) Position() float64       { return b.position }

// EntryPrice returns the price the open position was bought at.
func (b *Book) EntryPrice() (float64, bool) {
	return b.entry, b.hasEntry
}

// Flat reports whether no position is held.
func (b *Book) Flat() bool { return b.position <= 0 }

// Value returns cash plus the position marked at price.
func (b *Book) Value(price float64) float64 {
	return b.cash + b.position*price
}

// Reset clears the position and sets both the initial capital and cash to
// capital.
func (b *Book) Reset(capital float64) {
	*b = Book{initial: capital, cash: capital}
}

// Buy opens a position of size at price. It fails if a position is already
// open or if price*size exceeds cash. It also fails for a non-positive size
// or price: a zero price would open a position with no cost basis, and
// default sizing is zero there anyway.
func (b *Book) Buy(price, size float64) bool {
	if b.position > 0 || size <= 0 || price <= 0 {
		return false
	}
	cost := price * size
	if cost > b.cash {
		return false
	}
	b.position = size
	b.entry = price
	b.hasEntry = true
	b.cash -= cost
	return true
}

// Sell closes the whole position at price.
func (b *Book) Sell(price float64) bool {
	return b.SellSize(price, b.position)
}

// SellSize sells size units at price, clamping size to the open position.
// It fails while flat or for a non-positive size. The entry price is cleared
// once the position reaches zero.
func (b *Book) SellSize(price, size float64) bool {
	if b.position <= 0 || size <= 0 {
		return false
	}
	if size > b.position {
		size = b.position
	}
	b.cash += price * size
	b.position -= size
	if b.position == 0 {
		b.entry = 0
		b.hasEntry = false
	}
	return true
}
