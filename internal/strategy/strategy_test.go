package strategy

import (
	"errors"
	"testing"

	"tradeview/internal/domain"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	Base
	name       string
	entry      bool
	exit       bool
	bars       int
	resetCalls int
}

func (s *stubStrategy) Name() string       { return s.name }
func (s *stubStrategy) OnBar(_ domain.Bar) { s.bars++ }
func (s *stubStrategy) EntrySignal() bool  { return s.entry }
func (s *stubStrategy) ExitSignal() bool   { return s.exit }
func (s *stubStrategy) Reset()             { s.Base.Reset(); s.bars = 0; s.resetCalls++ }

func stubDescriptor(id string) Descriptor {
	return Descriptor{
		ID:   id,
		Name: "Stub",
		Params: []ParamSpec{
			{Name: "period", Type: ParamInt, Default: 5, Min: Bound(2), Max: Bound(50)},
			{Name: "mode", Type: ParamString, Default: "SMA", Options: []string{"SMA", "EMA"}},
		},
		New: func(p Params) (Strategy, error) {
			return &stubStrategy{Base: NewBase(DefaultInitialCapital), name: id}, nil
		},
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubDescriptor("test-strategy")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := r.Get("test-strategy")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.ID != "test-strategy" {
		t.Errorf("Get returned descriptor with ID = %q, want %q", got.ID, "test-strategy")
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(stubDescriptor("dup"))
	if err := r.Register(stubDescriptor("dup")); err == nil {
		t.Error("Register accepted duplicate id")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered strategy")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(stubDescriptor("beta"))
	r.MustRegister(stubDescriptor("alpha"))

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

func TestRegistryNew_Unknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.New("missing", nil)
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("New(missing) error = %v, want ErrUnknownStrategy", err)
	}
}

func TestShouldBuyGuardedByPosition(t *testing.T) {
	s := &stubStrategy{Base: NewBase(1000), entry: true, exit: true}

	if !ShouldBuy(s) {
		t.Fatal("ShouldBuy = false while flat with entry signal")
	}
	if ShouldSell(s) {
		t.Fatal("ShouldSell = true while flat")
	}

	if !s.Book().Buy(10, 50) {
		t.Fatal("Buy failed")
	}
	if ShouldBuy(s) {
		t.Error("ShouldBuy = true while long")
	}
	if !ShouldSell(s) {
		t.Error("ShouldSell = false while long with exit signal")
	}
}

func TestBaseReset(t *testing.T) {
	s := &stubStrategy{Base: NewBase(1000)}
	s.Book().Buy(10, 50)
	s.OnBar(domain.Bar{})

	s.Reset()

	b := s.Book()
	if b.Cash() != 1000 || b.Position() != 0 {
		t.Errorf("after Reset cash=%v position=%v, want 1000 and 0", b.Cash(), b.Position())
	}
	if _, ok := b.EntryPrice(); ok {
		t.Error("entry price still set after Reset")
	}
	if s.bars != 0 || s.resetCalls != 1 {
		t.Errorf("strategy buffers not reset: bars=%d resetCalls=%d", s.bars, s.resetCalls)
	}
}

func TestDefaultPositionSize(t *testing.T) {
	s := &stubStrategy{Base: NewBase(10000)}
	if got, want := s.PositionSize(100), 95.0; got != want {
		t.Errorf("PositionSize(100) = %v, want %v", got, want)
	}
	if got := s.PositionSize(0); got != 0 {
		t.Errorf("PositionSize(0) = %v, want 0", got)
	}
}
