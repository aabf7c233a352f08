// Package marketdata provides daily OHLCV access for the simulation: a
// Source capability for raw bars, file and in-memory sources, and a
// MarketData wrapper adding trading-day determination, bad-tick repair and
// roll-timing logic.
package marketdata

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"
)

// ErrNoData means no bar exists for a symbol/day. Recoverable: callers
// treat it as "not a trading day".
var ErrNoData = errors.New("no market data")

// ErrNotStarted means the instrument's first trade date lies after the
// query day. Recoverable, same treatment as ErrNoData.
var ErrNotStarted = errors.New("instrument not started")

// Bar is one daily OHLCV row. Missing fields are NaN.
type Bar struct {
	Symbol string
	Day    time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Source supplies raw daily bars for a symbol over a date range. Rows must
// be keyed uniquely by day, ascending. Implementations may block on I/O;
// retry discipline belongs to the implementation, not the core.
type Source interface {
	DailyOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// MapSource is an in-memory Source keyed by symbol, handy for fixtures and
// deterministic runs.
type MapSource map[string][]Bar

func (s MapSource) DailyOHLCV(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	bars := s[symbol]
	var out []Bar
	for _, b := range bars {
		if b.Day.Before(start) || b.Day.After(end) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// nanMedian returns the median of the non-NaN values, NaN when none remain.
func nanMedian(vals ...float64) float64 {
	var kept []float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return math.NaN()
	}
	sort.Float64s(kept)
	n := len(kept)
	if n%2 == 1 {
		return kept[n/2]
	}
	return (kept[n/2-1] + kept[n/2]) / 2
}
