// Package forex converts cash amounts and bars into USD using a fixed set
// of currency-to-proxy-pair rules over daily FX closes.
package forex

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantfold/navsim/dates"
	"github.com/quantfold/navsim/instrument"
	"github.com/quantfold/navsim/marketdata"
)

// pair maps a currency to the FX symbol quoting it, either directly
// (rate = close) or inverted (rate = 1/close).
type pair struct {
	symbol string
	invert bool
}

var pairs = map[string]pair{
	"AUD": {symbol: "USDAUD=R", invert: true},
	"CAD": {symbol: "CADUSD=R"},
	"CHF": {symbol: "CHFUSD=R"},
	"EUR": {symbol: "USDEUR=R", invert: true},
	"GBP": {symbol: "USDGBP=R", invert: true},
	"HKD": {symbol: "HKDUSD=R"},
	"JPY": {symbol: "JPYUSD=R"},
	"SGD": {symbol: "SGDUSD=R"},
}

type seriesKey struct {
	symbol string
	year   int
}

type rateKey struct {
	currency string
	day      time.Time
}

// Forex resolves currency/day pairs to USD conversion rates. Rates are pure
// functions of (currency, day) and are memoized on exactly that key; pair
// series are fetched one calendar year at a time.
type Forex struct {
	source marketdata.Source
	series map[seriesKey][]marketdata.Bar
	rates  map[rateKey]float64
}

// New builds a Forex over the given bar source.
func New(source marketdata.Source) *Forex {
	return &Forex{
		source: source,
		series: make(map[seriesKey][]marketdata.Bar),
		rates:  make(map[rateKey]float64),
	}
}

// ToUSD returns the conversion rate from currency into USD on day. USD maps
// to 1. An unsupported currency yields NaN: a poison value that must
// propagate as failure wherever it is consumed, never silently treated as
// 0 or 1. The error return is reserved for source failures.
func (f *Forex) ToUSD(ctx context.Context, currency string, day time.Time) (float64, error) {
	if currency == "USD" {
		return 1, nil
	}
	p, ok := pairs[currency]
	if !ok {
		return math.NaN(), nil
	}
	key := rateKey{currency: currency, day: dates.Day(day)}
	if rate, ok := f.rates[key]; ok {
		return rate, nil
	}
	rate, err := f.pairRate(ctx, p, day)
	if err != nil {
		return math.NaN(), err
	}
	f.rates[key] = rate
	return rate, nil
}

// pairRate reads the close of the proxy pair nearest to day within its
// calendar year.
func (f *Forex) pairRate(ctx context.Context, p pair, day time.Time) (float64, error) {
	key := seriesKey{symbol: p.symbol, year: day.Year()}
	bars, ok := f.series[key]
	if !ok {
		start := dates.New(day.Year(), time.January, 1)
		end := dates.New(day.Year(), time.December, 31)
		var err error
		bars, err = f.source.DailyOHLCV(ctx, p.symbol, start, end)
		if err != nil {
			return math.NaN(), fmt.Errorf("fetch %s: %w", p.symbol, err)
		}
		f.series[key] = bars
	}
	if len(bars) == 0 {
		return math.NaN(), nil
	}
	nearest := bars[0]
	best := absDays(bars[0].Day, day)
	for _, b := range bars[1:] {
		if d := absDays(b.Day, day); d < best {
			nearest, best = b, d
		}
	}
	if p.invert {
		return 1 / nearest.Close, nil
	}
	return nearest.Close, nil
}

func absDays(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// ConvertBar rescales a bar into USD for the given stem: prices multiply by
// the rate, volume divides by it, keeping notional volume invariant under
// FX scaling.
func (f *Forex) ConvertBar(ctx context.Context, bar marketdata.Bar, stem string) (marketdata.Bar, error) {
	def, ok := instrument.Get(stem)
	if !ok {
		return bar, fmt.Errorf("unknown stem %s", stem)
	}
	if def.Currency == "USD" {
		return bar, nil
	}
	rate, err := f.ToUSD(ctx, def.Currency, bar.Day)
	if err != nil {
		return bar, err
	}
	bar.Open *= rate
	bar.High *= rate
	bar.Low *= rate
	bar.Close *= rate
	bar.Volume /= rate
	return bar, nil
}
