package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradeview/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ ParamSetStore = (*SQLiteStore)(nil)
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements ParamSetStore and RunStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS param_sets (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	symbol      TEXT NOT NULL DEFAULT '',
	params      TEXT NOT NULL DEFAULT '{}',
	description TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_param_sets_updated ON param_sets(updated_at DESC);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	strategy   TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	start_date TEXT NOT NULL DEFAULT '',
	end_date   TEXT NOT NULL DEFAULT '',
	params     TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	report     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore. ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialized and lets :memory: persist.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// ParamSetStore implementation
// ---------------------------------------------------------------------------

// SaveParamSet upserts ps keyed by ID.
func (s *SQLiteStore) SaveParamSet(ctx context.Context, ps *domain.ParamSet) error {
	params, err := json.Marshal(ps.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO param_sets (id, name, strategy, symbol, params, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			strategy = excluded.strategy,
			symbol = excluded.symbol,
			params = excluded.params,
			description = excluded.description,
			updated_at = excluded.updated_at`,
		ps.ID, ps.Name, ps.Strategy, ps.Symbol, string(params), ps.Description,
		ps.CreatedAt.UnixMilli(), ps.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving param set %s: %w", ps.ID, err)
	}
	return nil
}

// GetParamSet retrieves a single parameter set by its ID.
func (s *SQLiteStore) GetParamSet(ctx context.Context, id string) (*domain.ParamSet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, strategy, symbol, params, description, created_at, updated_at
		FROM param_sets WHERE id = ?`, id)
	ps, err := scanParamSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("param set %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading param set %s: %w", id, err)
	}
	return ps, nil
}

// DeleteParamSet removes a parameter set by its ID.
func (s *SQLiteStore) DeleteParamSet(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM param_sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting param set %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("param set %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListParamSets returns parameter sets matching f, newest update first.
func (s *SQLiteStore) ListParamSets(ctx context.Context, f ParamSetFilter) ([]domain.ParamSet, error) {
	var (
		where []string
		args  []any
	)
	if f.Strategy != "" {
		where = append(where, "strategy = ?")
		args = append(args, f.Strategy)
	}
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	query := `SELECT id, name, strategy, symbol, params, description, created_at, updated_at FROM param_sets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing param sets: %w", err)
	}
	defer rows.Close()

	var out []domain.ParamSet
	for rows.Next() {
		ps, err := scanParamSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning param set: %w", err)
		}
		out = append(out, *ps)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanParamSet(sc scanner) (*domain.ParamSet, error) {
	var (
		ps               domain.ParamSet
		params           string
		created, updated int64
	)
	if err := sc.Scan(&ps.ID, &ps.Name, &ps.Strategy, &ps.Symbol, &params, &ps.Description, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &ps.Params); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	ps.CreatedAt = time.UnixMilli(created).UTC()
	ps.UpdatedAt = time.UnixMilli(updated).UTC()
	return &ps, nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts a new run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, symbol, start_date, end_date, params, created_at, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.Symbol, run.StartDate, run.EndDate, string(params),
		run.CreatedAt.UnixMilli(), string(run.Report),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run with its report.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var (
		run     RunRecord
		params  string
		created int64
		report  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, strategy, symbol, start_date, end_date, params, created_at, report
		FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Strategy, &run.Symbol, &run.StartDate, &run.EndDate, &params, &created, &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("decoding run params: %w", err)
	}
	run.CreatedAt = time.UnixMilli(created).UTC()
	run.Report = json.RawMessage(report)
	return &run, nil
}

// ListRuns returns up to limit runs, newest first, without their reports.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, symbol, start_date, end_date, params, created_at
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			run     RunRecord
			params  string
			created int64
		)
		if err := rows.Scan(&run.ID, &run.Strategy, &run.Symbol, &run.StartDate, &run.EndDate, &params, &created); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return nil, fmt.Errorf("decoding run params: %w", err)
		}
		run.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, run)
	}
	return out, rows.Err()
}
