package backtest

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestRatioJSON(t *testing.T) {
	tests := []struct {
		in   Ratio
		want string
	}{
		{Ratio(1.5), `1.5`},
		{Ratio(0), `0`},
		{Ratio(math.Inf(1)), `"Infinity"`},
		{Ratio(math.Inf(-1)), `"-Infinity"`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.in)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", float64(tt.in), err)
		}
		if string(data) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", float64(tt.in), data, tt.want)
		}
	}

	var r Ratio
	if err := json.Unmarshal([]byte(`"Infinity"`), &r); err != nil || !r.IsInf() {
		t.Errorf("Unmarshal(Infinity) = %v, %v", float64(r), err)
	}
	if err := json.Unmarshal([]byte(`2.25`), &r); err != nil || float64(r) != 2.25 {
		t.Errorf("Unmarshal(2.25) = %v, %v", float64(r), err)
	}
	if err := json.Unmarshal([]byte(`"nope"`), &r); err == nil {
		t.Error("Unmarshal of bad string should fail")
	}
}

func TestReportInfiniteProfitFactorSerializes(t *testing.T) {
	rep := run(t, &scripted{
		entries: map[int]bool{1: true},
		exits:   map[int]bool{3: true},
	}, []float64{10, 11, 12, 12})

	if !rep.ProfitFactor.IsInf() {
		t.Fatalf("ProfitFactor = %v, want +Inf", rep.ProfitFactor)
	}
	data, err := json.Marshal(rep)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.ProfitFactor.IsInf() || back.WonTrades != 1 {
		t.Errorf("decoded report = %+v", back)
	}
}

func TestReportOverflowingAnnualReturnSerializes(t *testing.T) {
	// A millionfold gain over two calendar days overflows the compounding.
	rep := run(t, &scripted{
		entries: map[int]bool{1: true},
		exits:   map[int]bool{3: true},
	}, []float64{1, 2, 1e6})

	if !rep.AnnualReturnPct.IsInf() {
		t.Fatalf("AnnualReturnPct = %v, want +Inf", rep.AnnualReturnPct)
	}
	var buf bytes.Buffer
	if err := rep.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"annual_return_pct": "Infinity"`)) {
		t.Errorf("annual_return_pct not encoded as Infinity:\n%s", buf.String())
	}
	var back Report
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.AnnualReturnPct.IsInf() || back.ReturnPct != rep.ReturnPct {
		t.Errorf("decoded annual=%v return=%v", back.AnnualReturnPct, back.ReturnPct)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{1.234, 1.23},
		{1.235, 1.24},
		{-1.235, -1.24},
		{100, 100},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !math.IsInf(round2(math.Inf(1)), 1) {
		t.Error("round2(+Inf) should stay infinite")
	}
}

func TestSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	rep := emptyReport(1000)
	if err := rep.SaveJSON(path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.NoData || back.InitialCapital != 1000 {
		t.Errorf("round trip = %+v", back)
	}
}

func TestSample(t *testing.T) {
	items := make([]int, 1001)
	for i := range items {
		items[i] = i
	}
	got := Sample(items, 500)
	if len(got) > 500 {
		t.Fatalf("len = %d, want <= 500", len(got))
	}
	if got[0] != 0 || got[len(got)-1] != 1000 {
		t.Errorf("first/last = %d/%d, want 0/1000", got[0], got[len(got)-1])
	}

	short := []int{1, 2, 3}
	if got := Sample(short, 10); len(got) != 3 {
		t.Errorf("Sample(short) len = %d, want 3", len(got))
	}
}
