// Package margin computes overnight initial and maintenance margin
// requirements per contract, adjusted for price level relative to a fixed
// historical reference date.
package margin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/quantfold/navsim/chain"
	"github.com/quantfold/navsim/dates"
	"github.com/quantfold/navsim/forex"
	"github.com/quantfold/navsim/instrument"
	"github.com/quantfold/navsim/marketdata"
)

type factorKey struct {
	stem string
	year int
}

// Margin derives USD margin requirements from the static per-stem base
// rates. Price-level adjustment factors are recomputed at most once per
// (stem, calendar year).
type Margin struct {
	md       *marketdata.MarketData
	fx       *forex.Forex
	resolver *chain.Resolver
	factors  map[factorKey]float64
}

// New builds a Margin over the given collaborators.
func New(md *marketdata.MarketData, fx *forex.Forex, resolver *chain.Resolver) *Margin {
	return &Margin{
		md:       md,
		fx:       fx,
		resolver: resolver,
		factors:  make(map[factorKey]float64),
	}
}

// referenceDate is the fixed base date margin base rates were calibrated
// on. Stems listed only after their launch get a later date.
func referenceDate(stem string) time.Time {
	switch stem {
	case "HTE", "MBT":
		return dates.New(2021, time.August, 18)
	}
	return dates.New(2020, time.January, 6)
}

// PriceLevelAdjustment is the ratio of today's front-contract close to the
// close on the stem's reference date. NaN when the relevant contract is not
// trading on either date.
func (m *Margin) PriceLevelAdjustment(ctx context.Context, stem string, day time.Time) (float64, error) {
	key := factorKey{stem: stem, year: day.Year()}
	if factor, ok := m.factors[key]; ok {
		return factor, nil
	}
	_, symbol, err := m.resolver.Front(ctx, stem, day)
	if err != nil {
		return math.NaN(), err
	}
	trading, err := m.md.IsTradingDay(ctx, day, symbol)
	if err != nil {
		return math.NaN(), err
	}
	if !trading {
		return math.NaN(), nil
	}
	bar, err := m.md.Bar(ctx, day, symbol)
	if err != nil {
		return math.NaN(), err
	}

	refDay := referenceDate(stem)
	_, refSymbol, err := m.resolver.Front(ctx, stem, refDay)
	if err != nil {
		return math.NaN(), err
	}
	refBar, err := m.md.Bar(ctx, refDay, refSymbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) || errors.Is(err, marketdata.ErrNotStarted) {
			return math.NaN(), nil
		}
		return math.NaN(), err
	}

	factor := bar.Close / refBar.Close
	m.factors[key] = factor
	return factor, nil
}

// OvernightInitial returns the USD initial margin for one contract of stem
// on day.
func (m *Margin) OvernightInitial(ctx context.Context, stem string, day time.Time) (float64, error) {
	return m.overnight(ctx, stem, day, true)
}

// OvernightMaintenance returns the USD maintenance margin for one contract
// of stem on day.
func (m *Margin) OvernightMaintenance(ctx context.Context, stem string, day time.Time) (float64, error) {
	return m.overnight(ctx, stem, day, false)
}

func (m *Margin) overnight(ctx context.Context, stem string, day time.Time, initial bool) (float64, error) {
	def, ok := instrument.Get(stem)
	if !ok {
		return math.NaN(), fmt.Errorf("unknown stem %s", stem)
	}
	base := def.OvernightMaintenance
	if initial {
		base = def.OvernightInitial
	}
	factor, err := m.PriceLevelAdjustment(ctx, stem, day)
	if err != nil {
		return math.NaN(), err
	}
	rate, err := m.fx.ToUSD(ctx, def.Currency, day)
	if err != nil {
		return math.NaN(), err
	}
	return base * factor * rate, nil
}
