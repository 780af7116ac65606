// Package store defines storage interfaces and implementations for locally
// cached bars (Parquet), saved parameter sets and run history (SQLite).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tradeview/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars merges a batch of bars into storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for symbol within r in ascending order.
	ReadBars(ctx context.Context, symbol string, r domain.DateRange) ([]domain.Bar, error)

	// Coverage summarises the stored bars for symbol. It returns
	// ErrNotFound when nothing is stored.
	Coverage(ctx context.Context, symbol string) (domain.LocalSymbol, error)

	// ListSymbols returns all symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)

	// DeleteSymbol removes every stored bar for symbol.
	DeleteSymbol(ctx context.Context, symbol string) error
}

// ParamSetFilter narrows ListParamSets. Empty fields match anything.
type ParamSetFilter struct {
	Strategy string
	Symbol   string
}

// ParamSetStore persists named strategy parameter sets.
type ParamSetStore interface {
	// SaveParamSet inserts ps or updates the existing row with the same ID.
	// An update keeps the stored CreatedAt.
	SaveParamSet(ctx context.Context, ps *domain.ParamSet) error

	// GetParamSet retrieves a parameter set by ID.
	GetParamSet(ctx context.Context, id string) (*domain.ParamSet, error)

	// DeleteParamSet removes a parameter set by ID.
	DeleteParamSet(ctx context.Context, id string) error

	// ListParamSets returns matching sets, most recently updated first.
	ListParamSets(ctx context.Context, f ParamSetFilter) ([]domain.ParamSet, error)
}

// RunRecord is a persisted backtest report with the request that produced
// it.
type RunRecord struct {
	ID        string          `json:"id"`
	Strategy  string          `json:"strategy"`
	Symbol    string          `json:"symbol"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Params    map[string]any  `json:"params"`
	CreatedAt time.Time       `json:"created_at"`
	Report    json.RawMessage `json:"report,omitempty"`
}

// RunStore persists backtest reports.
type RunStore interface {
	// SaveRun inserts a new run record.
	SaveRun(ctx context.Context, run *RunRecord) error

	// GetRun retrieves a run, including its report, by ID.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first, without reports.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
