// Package backtest drives the day-by-day simulation loop and aggregates
// the run's performance statistics.
package backtest

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/quantfold/navsim/broker"
	"github.com/quantfold/navsim/chain"
	"github.com/quantfold/navsim/dates"
	"github.com/quantfold/navsim/forex"
	"github.com/quantfold/navsim/journal"
	"github.com/quantfold/navsim/marketdata"
	"github.com/quantfold/navsim/strategy"
)

// NAVPoint is one entry of the NAV series: one per simulated trading day.
type NAVPoint struct {
	Day time.Time
	NAV float64
}

// Result is the summary bundle exposed to the reporting layer.
type Result struct {
	Mean       float64 // annualized mean of log NAV returns
	Std        float64 // annualized standard deviation of log NAV returns
	Sharpe     float64 // mean/std x sqrt(250)
	Kelly      float64 // mean/variance, not annualized
	FinalNAV   float64 // last non-NaN NAV observed
	NAV        []NAVPoint
	Executions []broker.Execution
}

// Config sets the run window and tracked universe.
type Config struct {
	Stems []string
	Start time.Time
	End   time.Time
}

// Backtester runs one simulation over [Start, End]. It owns the NAV series;
// the broker owns all other run state. A fatal error aborts the run with no
// partial or resumable state.
type Backtester struct {
	cfg      Config
	broker   *broker.Broker
	md       *marketdata.MarketData
	fx       *forex.Forex
	resolver *chain.Resolver
	strat    strategy.Strategy
	journal  journal.Journal

	day      time.Time
	nav      []NAVPoint
	lastGood float64
}

// New builds a backtester. lastGood NAV starts at the broker's opening
// cash so the first sizing decision has a sane base.
func New(cfg Config, b *broker.Broker, md *marketdata.MarketData, fx *forex.Forex, resolver *chain.Resolver, strat strategy.Strategy, openingCash float64) *Backtester {
	return &Backtester{
		cfg:      cfg,
		broker:   b,
		md:       md,
		fx:       fx,
		resolver: resolver,
		strat:    strat,
		lastGood: openingCash,
	}
}

// SetJournal installs an optional sink for the daily NAV series.
func (bt *Backtester) SetJournal(j journal.Journal) { bt.journal = j }

// strategy.Env implementation.

func (bt *Backtester) Day() time.Time                     { return bt.day }
func (bt *Backtester) NAV() float64                       { return bt.lastGood }
func (bt *Backtester) Broker() *broker.Broker             { return bt.broker }
func (bt *Backtester) MarketData() *marketdata.MarketData { return bt.md }
func (bt *Backtester) Resolver() *chain.Resolver          { return bt.resolver }
func (bt *Backtester) Forex() *forex.Forex                { return bt.fx }

// Run executes the loop: weekends are skipped entirely (not recorded),
// every tracked stem must keep at least two tradable contracts in its
// chain, the broker advances (running the maintenance margin check), the
// strategy acts, and the day's NAV is recorded.
func (bt *Backtester) Run(ctx context.Context) (Result, error) {
	for day := bt.cfg.Start; !day.After(bt.cfg.End); day = dates.AddDays(day, 1) {
		if dates.IsWeekend(day) {
			continue
		}
		bt.day = day
		if err := bt.checkChains(day); err != nil {
			return Result{}, err
		}
		if err := bt.broker.Next(ctx, day); err != nil {
			return Result{}, err
		}
		if err := bt.strat.OnDay(ctx, bt); err != nil {
			return Result{}, err
		}
		if err := bt.strat.OnIndicators(ctx, bt); err != nil {
			return Result{}, err
		}
		nav, err := bt.broker.NAV(ctx)
		if err != nil {
			return Result{}, err
		}
		if !math.IsNaN(nav) {
			bt.lastGood = nav
		}
		bt.nav = append(bt.nav, NAVPoint{Day: day, NAV: nav})
		if bt.journal != nil {
			if err := bt.journal.RecordNAV(journal.NAVSnapshot{Day: day, NAV: nav}); err != nil {
				return Result{}, err
			}
		}
		slog.Debug("day complete", "day", dates.Format(day), "nav", nav)
	}

	series := make([]float64, len(bt.nav))
	for i, p := range bt.nav {
		series[i] = p.NAV
	}
	stats := summarize(series)
	return Result{
		Mean:       stats.mean,
		Std:        stats.std,
		Sharpe:     stats.sharpe,
		Kelly:      stats.kelly,
		FinalNAV:   bt.lastGood,
		NAV:        bt.nav,
		Executions: bt.broker.Executions(),
	}, nil
}

// checkChains fails the run when any tracked stem has fewer than two
// tradable contracts left: stale reference data the operator must refresh
// before the run can proceed.
func (bt *Backtester) checkChains(day time.Time) error {
	for _, stem := range bt.cfg.Stems {
		c, err := bt.resolver.Chain(stem, day)
		if err != nil {
			return err
		}
		if len(c) < 2 {
			last := day
			if len(c) == 1 {
				last = c[0].LastTradeDate
			}
			return &chain.StaleChainError{Stem: stem, AsOf: day, LastTradeDate: last}
		}
	}
	return nil
}
