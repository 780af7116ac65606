package backtest

// Sample thins items to at most limit elements by keeping every step-th
// element, where step = ceil(len/limit). The last element is always kept so
// the final equity value survives sampling.
func Sample[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	step := (len(items) + limit - 1) / limit
	out := make([]T, 0, limit+1)
	for i := 0; i < len(items); i += step {
		out = append(out, items[i])
	}
	if (len(items)-1)%step != 0 {
		if len(out) == limit {
			out[len(out)-1] = items[len(items)-1]
		} else {
			out = append(out, items[len(items)-1])
		}
	}
	return out
}
