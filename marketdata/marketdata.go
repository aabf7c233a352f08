package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/quantfold/navsim/chain"
	"github.com/quantfold/navsim/dates"
	"github.com/quantfold/navsim/instrument"
)

// maxDaysBeforeExpiry is how close to the front contract's last trade date
// a day has to be before rolling is considered at all.
const maxDaysBeforeExpiry = 40

// MarketData wraps a Source with the policies the simulation needs:
// first/last-trade windowing, single-field bad-tick repair, trading-day
// determination and roll timing. Bar series are cached per symbol for the
// life of the value; the inputs are immutable historical facts, so entries
// never expire.
type MarketData struct {
	source   Source
	resolver *chain.Resolver
	series   map[string]map[time.Time]Bar
}

// New builds a MarketData over the given source and contract resolver.
func New(source Source, resolver *chain.Resolver) *MarketData {
	return &MarketData{
		source:   source,
		resolver: resolver,
		series:   make(map[string]map[time.Time]Bar),
	}
}

// Bar returns the bar for symbol on day. ErrNotStarted before the symbol's
// first trade date, ErrNoData past its last trade date or when no row
// exists. A missing Close is repaired as the median of the available
// Open/High/Low when Volume and at least one of them are present.
func (m *MarketData) Bar(ctx context.Context, day time.Time, symbol string) (Bar, error) {
	ftd, err := m.resolver.FirstTradeDate(symbol)
	if err != nil {
		if errors.Is(err, chain.ErrUnknownContract) {
			return Bar{}, fmt.Errorf("%w: %s on %s", ErrNoData, symbol, dates.Format(day))
		}
		return Bar{}, err
	}
	if day.Before(ftd) {
		return Bar{}, fmt.Errorf("%w: %s starts %s", ErrNotStarted, symbol, dates.Format(ftd))
	}
	ltd, err := m.resolver.LastTradeDate(symbol)
	if err != nil {
		return Bar{}, err
	}
	if day.After(ltd) {
		return Bar{}, fmt.Errorf("%w: %s on %s", ErrNoData, symbol, dates.Format(day))
	}

	rows, ok := m.series[symbol]
	if !ok {
		bars, err := m.source.DailyOHLCV(ctx, symbol, ftd, ltd)
		if err != nil {
			return Bar{}, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		rows = make(map[time.Time]Bar, len(bars))
		for _, b := range bars {
			rows[dates.Day(b.Day)] = b
		}
		m.series[symbol] = rows
	}

	b, ok := rows[dates.Day(day)]
	if !ok {
		return Bar{}, fmt.Errorf("%w: %s on %s", ErrNoData, symbol, dates.Format(day))
	}
	return RepairClose(b), nil
}

// RepairClose fills a missing Close from the median of the available
// Open/High/Low, provided Volume is present. Handles rows where a single
// field was corrupted upstream; anything else stands as retrieved.
func RepairClose(b Bar) Bar {
	if !math.IsNaN(b.Close) || math.IsNaN(b.Volume) {
		return b
	}
	med := nanMedian(b.Open, b.High, b.Low)
	if math.IsNaN(med) {
		return b
	}
	b.Close = med
	return b
}

// IsTradingDay reports whether symbol has a usable close on day. Missing
// data and not-yet-started instruments map to false; any other failure
// propagates.
func (m *MarketData) IsTradingDay(ctx context.Context, day time.Time, symbol string) (bool, error) {
	b, err := m.Bar(ctx, day, symbol)
	if err != nil {
		if errors.Is(err, ErrNoData) || errors.Is(err, ErrNotStarted) {
			return false, nil
		}
		return false, err
	}
	return !math.IsNaN(b.Close), nil
}

// ShouldRollToday decides whether a roll forced on day is the last chance
// to move the front position into the next contract. Too early when the
// front expiry is more than maxDaysBeforeExpiry away. Otherwise the window
// from day+1 up to frontLTD + roll offset is scanned (weekends skipped)
// for a later day on which both the front and the next contract trade; the
// roll happens today only when no such day remains.
func (m *MarketData) ShouldRollToday(ctx context.Context, day time.Time, stem string) (bool, error) {
	frontLTD, frontSym, err := m.resolver.Front(ctx, stem, day)
	if err != nil {
		return false, err
	}
	if dates.AddDays(day, maxDaysBeforeExpiry).Before(frontLTD) {
		return false, nil
	}
	_, nextSym, err := m.resolver.Next(ctx, stem, day)
	if err != nil {
		return false, err
	}
	offset := instrument.DefaultRollOffsetDays
	if def, ok := instrument.Get(stem); ok {
		offset = def.RollOffset()
	}
	boundary := dates.AddDays(frontLTD, offset)
	for d := dates.AddDays(day, 1); !d.After(boundary); d = dates.AddDays(d, 1) {
		if dates.IsWeekend(d) {
			continue
		}
		front, err := m.IsTradingDay(ctx, d, frontSym)
		if err != nil {
			return false, err
		}
		next, err := m.IsTradingDay(ctx, d, nextSym)
		if err != nil {
			return false, err
		}
		if front && next {
			// A better day to roll exists; defer.
			return false, nil
		}
	}
	return true, nil
}
