package strategy

import "testing"

func assertBookInvariant(t *testing.T, b *Book) {
	t.Helper()
	if b.Position() < 0 {
		t.Fatalf("position %v < 0", b.Position())
	}
	_, hasEntry := b.EntryPrice()
	if (b.Position() > 0) != hasEntry {
		t.Fatalf("position=%v but entry set=%v", b.Position(), hasEntry)
	}
}

func TestBookBuy(t *testing.T) {
	b := NewBook(1000)

	if !b.Buy(10, 50) {
		t.Fatal("Buy(10, 50) failed")
	}
	assertBookInvariant(t, &b)
	if b.Cash() != 500 || b.Position() != 50 {
		t.Errorf("cash=%v position=%v, want 500 and 50", b.Cash(), b.Position())
	}
	if p, _ := b.EntryPrice(); p != 10 {
		t.Errorf("entry price = %v, want 10", p)
	}

	// Second buy while long is a no-op failure.
	if b.Buy(10, 1) {
		t.Error("Buy succeeded while long")
	}
	if b.Cash() != 500 || b.Position() != 50 {
		t.Errorf("failed Buy mutated state: cash=%v position=%v", b.Cash(), b.Position())
	}
}

func TestBookBuyRejected(t *testing.T) {
	tests := []struct {
		name        string
		price, size float64
	}{
		{"insufficient cash", 10, 101},
		{"zero size", 10, 0},
		{"negative size", 10, -1},
		{"zero price", 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBook(1000)
			if b.Buy(tt.price, tt.size) {
				t.Fatalf("Buy(%v, %v) succeeded", tt.price, tt.size)
			}
			if b.Cash() != 1000 || b.Position() != 0 {
				t.Errorf("state changed: cash=%v position=%v", b.Cash(), b.Position())
			}
			assertBookInvariant(t, &b)
		})
	}
}

func TestBookBuyExactCash(t *testing.T) {
	b := NewBook(1000)
	if !b.Buy(10, 100) {
		t.Fatal("Buy using all cash failed")
	}
	if b.Cash() != 0 {
		t.Errorf("cash = %v, want 0", b.Cash())
	}
}

func TestBookSell(t *testing.T) {
	b := NewBook(1000)
	if b.Sell(10) {
		t.Fatal("Sell succeeded while flat")
	}

	b.Buy(10, 50)
	if !b.SellSize(12, 20) {
		t.Fatal("partial SellSize failed")
	}
	assertBookInvariant(t, &b)
	if b.Position() != 30 || b.Cash() != 740 {
		t.Errorf("after partial sell position=%v cash=%v, want 30 and 740", b.Position(), b.Cash())
	}

	// Oversized request is clamped to the open position.
	if !b.SellSize(12, 1000) {
		t.Fatal("oversized SellSize failed")
	}
	assertBookInvariant(t, &b)
	if b.Position() != 0 || b.Cash() != 1100 {
		t.Errorf("after close position=%v cash=%v, want 0 and 1100", b.Position(), b.Cash())
	}
	if !b.Flat() {
		t.Error("Flat() = false after closing")
	}
}

func TestBookReset(t *testing.T) {
	b := NewBook(1000)
	b.Buy(10, 50)
	b.Reset(2500)
	assertBookInvariant(t, &b)
	if b.Cash() != 2500 || b.InitialCapital() != 2500 || b.Position() != 0 {
		t.Errorf("after Reset cash=%v initial=%v position=%v", b.Cash(), b.InitialCapital(), b.Position())
	}
}

func TestBookValue(t *testing.T) {
	b := NewBook(1000)
	b.Buy(10, 50)
	if got := b.Value(12); got != 1100 {
		t.Errorf("Value(12) = %v, want 1100", got)
	}
}
