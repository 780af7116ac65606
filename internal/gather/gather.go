// Package gather retrieves daily bars from outside the local store: the
// Alpaca market-data API and CSV files.
package gather

import (
	"context"

	"tradeview/internal/domain"
)

// Fetcher downloads daily bars for one symbol over a date range.
type Fetcher interface {
	// Name returns the fetcher identifier.
	Name() string
	// FetchDailyBars returns bars in ascending order. Implementations handle
	// their own retry and rate limiting.
	FetchDailyBars(ctx context.Context, symbol string, r domain.DateRange) ([]domain.Bar, error)
}
