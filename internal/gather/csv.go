package gather

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradeview/internal/domain"
)

var csvTimeLayouts = []string{
	domain.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
}

// ReadCSV parses daily bars from CSV with a header row. Recognised columns
// (case-insensitive) are date|datetime|timestamp, open, high, low, close and
// volume; others such as "Adj Close" are ignored. Rows are returned sorted
// by date.
func ReadCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol := -1
	for _, name := range []string{"date", "datetime", "timestamp"} {
		if i, ok := cols[name]; ok {
			dateCol = i
			break
		}
	}
	if dateCol < 0 {
		return nil, errors.New("csv has no date column")
	}
	for _, name := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("csv has no %s column", name)
		}
	}

	symbol = domain.NormalizeSymbol(symbol)
	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}

		ts, err := parseCSVTime(rec[dateCol])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		b := domain.Bar{Symbol: symbol, Timestamp: ts}
		fields := []struct {
			name string
			dst  *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
		}
		for _, f := range fields {
			if *f.dst, err = strconv.ParseFloat(rec[cols[f.name]], 64); err != nil {
				return nil, fmt.Errorf("csv line %d: parsing %s: %w", line, f.name, err)
			}
		}
		if i, ok := cols["volume"]; ok && rec[i] != "" {
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: parsing volume: %w", line, err)
			}
			b.Volume = int64(v)
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// Keep the calendar date the file states, at UTC midnight.
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
