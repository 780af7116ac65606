package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tradeview/internal/domain"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tradeview.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteParamSetCRUD(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	ps := &domain.ParamSet{
		ID:        "abcd1234",
		Name:      "fast cross",
		Strategy:  "ma_cross_strategy",
		Symbol:    "AAPL",
		Params:    map[string]any{"fast_period": 5.0, "ma_type": "EMA"},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := s.SaveParamSet(ctx, ps); err != nil {
		t.Fatalf("SaveParamSet: %v", err)
	}

	got, err := s.GetParamSet(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("GetParamSet: %v", err)
	}
	if got.Name != "fast cross" || got.Params["ma_type"] != "EMA" || got.Params["fast_period"] != 5.0 {
		t.Errorf("GetParamSet = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}

	// Update keeps the stored created_at even if the caller changed it.
	ps.Name = "renamed"
	ps.CreatedAt = created.Add(time.Hour)
	ps.UpdatedAt = created.Add(2 * time.Hour)
	if err := s.SaveParamSet(ctx, ps); err != nil {
		t.Fatalf("SaveParamSet (update): %v", err)
	}
	got, _ = s.GetParamSet(ctx, "abcd1234")
	if got.Name != "renamed" || !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(ps.UpdatedAt) {
		t.Errorf("after update = %+v", got)
	}

	if err := s.DeleteParamSet(ctx, "abcd1234"); err != nil {
		t.Fatalf("DeleteParamSet: %v", err)
	}
	if _, err := s.GetParamSet(ctx, "abcd1234"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetParamSet after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteParamSet(ctx, "abcd1234"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteParamSet error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteListParamSets(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sets := []domain.ParamSet{
		{ID: "a", Name: "a", Strategy: "ma_cross_strategy", Symbol: "AAPL", UpdatedAt: base},
		{ID: "b", Name: "b", Strategy: "ma_cross_strategy", Symbol: "MSFT", UpdatedAt: base.Add(time.Hour)},
		{ID: "c", Name: "c", Strategy: "strategy_template", Symbol: "AAPL", UpdatedAt: base.Add(2 * time.Hour)},
	}
	for i := range sets {
		sets[i].CreatedAt = base
		if err := s.SaveParamSet(ctx, &sets[i]); err != nil {
			t.Fatalf("SaveParamSet(%s): %v", sets[i].ID, err)
		}
	}

	tests := []struct {
		name   string
		filter ParamSetFilter
		want   []string
	}{
		{"all", ParamSetFilter{}, []string{"c", "b", "a"}},
		{"by strategy", ParamSetFilter{Strategy: "ma_cross_strategy"}, []string{"b", "a"}},
		{"by symbol", ParamSetFilter{Symbol: "AAPL"}, []string{"c", "a"}},
		{"both", ParamSetFilter{Strategy: "strategy_template", Symbol: "MSFT"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListParamSets(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListParamSets: %v", err)
			}
			var ids []string
			for _, ps := range got {
				ids = append(ids, ps.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestSQLiteRuns(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2"} {
		err := s.SaveRun(ctx, &RunRecord{
			ID:        id,
			Strategy:  "ma_cross_strategy",
			Symbol:    "SPY",
			StartDate: "2023-01-01",
			EndDate:   "2024-01-01",
			Params:    map[string]any{"fast_period": 5.0},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Report:    json.RawMessage(`{"return_pct":1.5}`),
		})
		if err != nil {
			t.Fatalf("SaveRun(%s): %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r2" {
		t.Fatalf("ListRuns = %+v, want r2 first", runs)
	}
	if runs[0].Report != nil {
		t.Error("ListRuns should omit reports")
	}

	got, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if string(got.Report) != `{"return_pct":1.5}` || got.Symbol != "SPY" {
		t.Errorf("GetRun = %+v", got)
	}
	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
}
