package broker

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/navsim/chain"
	"github.com/quantfold/navsim/dates"
	"github.com/quantfold/navsim/forex"
	"github.com/quantfold/navsim/margin"
	"github.com/quantfold/navsim/marketdata"
)

func esBar(symbol string, day time.Time, close float64) marketdata.Bar {
	return marketdata.Bar{Symbol: symbol, Day: day, Open: close, High: close, Low: close, Close: close, Volume: 1000}
}

// newTestBroker wires a broker over an in-memory ES market. ESH0^2 closes at
// 3240 on 2020-01-06 (the margin reference date, so the price level factor
// is exactly 1 there) and at 3250 on 2020-01-07.
func newTestBroker(t *testing.T, cash float64) *Broker {
	t.Helper()
	resolver := chain.NewResolver(map[string]chain.Chain{
		"ES": {
			{Symbol: "ESH0^2", FirstTradeDate: dates.New(2019, 3, 15), LastTradeDate: dates.New(2020, 3, 20), Tradable: true},
			{Symbol: "ESM0^2", FirstTradeDate: dates.New(2019, 6, 21), LastTradeDate: dates.New(2020, 6, 19), Tradable: true},
		},
	})
	src := marketdata.MapSource{
		"ESH0^2": {
			esBar("ESH0^2", dates.New(2020, 1, 6), 3240),
			esBar("ESH0^2", dates.New(2020, 1, 7), 3250),
			{Symbol: "ESH0^2", Day: dates.New(2020, 1, 8), Open: 3200, High: 3260, Low: 3180, Close: math.NaN(), Volume: 900},
			esBar("ESH0^2", dates.New(2020, 1, 10), 600),
			esBar("ESH0^2", dates.New(2020, 2, 14), 3380),
		},
		"ESM0^2": {
			esBar("ESM0^2", dates.New(2020, 2, 14), 3375),
		},
	}
	md := marketdata.New(src, resolver)
	fx := forex.New(marketdata.MapSource{})
	mg := margin.New(md, fx, resolver)
	return New(Config{Cash: cash}, md, fx, mg, resolver)
}

func TestBuyCashAndPosition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))

	require.NoError(t, b.Buy(ctx, "ESH0^2", 2))
	assert.Equal(t, 2.0, b.Position("ESH0^2"))
	assert.True(t, b.HasExecution())

	// Notional 2 x 3240 x 50, then commission and impact on top.
	notional := 2 * 3240.0 * 50
	commission := 2 * 1.05
	impact := 2 * 5e-4 * 3240.0 * 50
	assert.InDelta(t, 1_000_000-notional-commission-impact, b.Cash()["USD"], 1e-9)

	execs := b.Executions()
	require.Len(t, execs, 1)
	assert.Equal(t, "Buy", execs[0].Type)
	assert.Equal(t, "ES", execs[0].Stem)
	assert.Equal(t, 3240.0, execs[0].Price)
	assert.InDelta(t, -commission, execs[0].Commission, 1e-12)
	assert.InDelta(t, -impact, execs[0].MarketImpact, 1e-9)
	assert.NotEmpty(t, execs[0].ID)

	nav, err := b.NAV(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000-commission-impact, nav, 1e-9,
		"mark-to-market at the entry price only loses the costs")
}

func TestSellMirrorsBuy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))

	require.NoError(t, b.Sell(ctx, "ESH0^2", 2))
	assert.Equal(t, -2.0, b.Position("ESH0^2"))
	execs := b.Executions()
	require.Len(t, execs, 1)
	assert.Equal(t, "Sell", execs[0].Type)
	assert.Equal(t, -2.0, execs[0].Contracts)
	assert.Negative(t, execs[0].Commission, "costs charge on magnitude, not direction")
	assert.Negative(t, execs[0].MarketImpact)
}

func TestBuyRoundsAndZeroIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))

	require.NoError(t, b.Buy(ctx, "ESH0^2", 1.4))
	assert.Equal(t, 1.0, b.Position("ESH0^2"), "backtest mode trades whole contracts")

	require.NoError(t, b.Buy(ctx, "ESH0^2", 0.2))
	assert.Equal(t, 1.0, b.Position("ESH0^2"))
	assert.Len(t, b.Executions(), 1, "a count rounding to zero records nothing")
}

func TestCloseRealizesPnL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))
	require.NoError(t, b.Buy(ctx, "ESH0^2", 2))

	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 7)))
	closed, err := b.Close(ctx, "ESH0^2")
	require.NoError(t, err)
	assert.Equal(t, 2.0, closed)
	assert.Zero(t, b.Position("ESH0^2"))

	// Ten points of profit on two contracts, minus both legs' costs.
	pnl := 2 * (3250.0 - 3240.0) * 50
	costs := 2*2*1.05 + 2*5e-4*3240.0*50 + 2*5e-4*3250.0*50
	assert.InDelta(t, 1_000_000+pnl-costs, b.Cash()["USD"], 1e-9)

	execs := b.Executions()
	require.Len(t, execs, 2)
	assert.Equal(t, "Close", execs[1].Type)
	assert.Equal(t, 3250.0, execs[1].Price)
}

func TestExpireRepairsClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))
	require.NoError(t, b.Buy(ctx, "ESH0^2", 2))

	// The 2020-01-08 row has no close; the settlement price is the median
	// of open/high/low, 3200.
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 8)))
	closed, err := b.Expire(ctx, "ESH0^2")
	require.NoError(t, err)
	assert.Equal(t, 2.0, closed)
	assert.Zero(t, b.Position("ESH0^2"))

	execs := b.Executions()
	require.Len(t, execs, 2)
	assert.Equal(t, 3200.0, execs[1].Price)
}

func TestRollFrontContract(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 2, 14)))
	require.NoError(t, b.Buy(ctx, "ESH0^2", 2))

	next, err := b.RollFrontContract(ctx, "ES")
	require.NoError(t, err)
	assert.Equal(t, "ESM0^2", next)
	assert.Zero(t, b.Position("ESH0^2"))
	assert.Equal(t, 2.0, b.Position("ESM0^2"))
	assert.Len(t, b.Executions(), 3)

	// A second roll on the same day finds the front flat and trades nothing.
	next, err = b.RollFrontContract(ctx, "ES")
	require.NoError(t, err)
	assert.Equal(t, "ESM0^2", next)
	assert.Len(t, b.Executions(), 3)
}

func TestRollDeferredWhenNextNotTrading(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))
	require.NoError(t, b.Buy(ctx, "ESH0^2", 2))

	// ESM0^2 has no bar on the 6th.
	next, err := b.RollFrontContract(ctx, "ES")
	require.NoError(t, err)
	assert.Empty(t, next)
	assert.Equal(t, 2.0, b.Position("ESH0^2"))
}

func TestInitialMarginEnforced(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 30_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))

	// Five contracts need 5 x 13200 initial margin against ~30k of equity.
	err := b.Buy(ctx, "ESH0^2", 5)
	var mErr *MarginExceededError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "initial", mErr.Kind)
	assert.Equal(t, "ESH0^2", mErr.Symbol)
	assert.Greater(t, mErr.Required, mErr.NAV)

	// The same trade passes with enforcement off.
	b2 := newTestBroker(t, 30_000)
	b2.SetNoCheck(true)
	require.NoError(t, b2.Next(ctx, dates.New(2020, 1, 6)))
	require.NoError(t, b2.Buy(ctx, "ESH0^2", 5))
	assert.Equal(t, 5.0, b2.Position("ESH0^2"))
}

func TestMaintenanceMarginOnNext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 100_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))
	require.NoError(t, b.Buy(ctx, "ESH0^2", 2))

	// The 2020-01-10 crash to 600 wipes out the equity backing the
	// 2 x 12000 maintenance requirement.
	err := b.Next(ctx, dates.New(2020, 1, 10))
	var mErr *MarginExceededError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "maintenance", mErr.Kind)
}

func TestNAVStaleCloseFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))
	require.NoError(t, b.Buy(ctx, "ESH0^2", 2))

	// No bar on the 9th. The position marks at the last seen close.
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 9)))
	nav, err := b.NAV(ctx)
	require.NoError(t, err)
	costs := 2*1.05 + 2*5e-4*3240.0*50
	assert.InDelta(t, 1_000_000-costs, nav, 1e-9)
}

func TestApplyAdjustment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))
	require.NoError(t, b.Buy(ctx, "ESH0^2", 2))

	b.ApplyAdjustment(0.5)
	assert.Equal(t, 1.0, b.Position("ESH0^2"))
	costs := 2*1.05 + 2*5e-4*3240.0*50
	assert.InDelta(t, (1_000_000-2*3240.0*50-costs)/2, b.Cash()["USD"], 1e-9)
	assert.Len(t, b.Executions(), 1, "adjustments never generate executions")
}

func TestInvalidCashPoisons(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 6)))

	b.ApplyAdjustment(math.NaN())

	var cErr *InvalidCashError
	_, err := b.NAV(ctx)
	require.ErrorAs(t, err, &cErr)

	err = b.Buy(ctx, "ESH0^2", 1)
	assert.ErrorAs(t, err, &cErr)
}

func TestBuyWithoutData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBroker(t, 1_000_000)
	require.NoError(t, b.Next(ctx, dates.New(2020, 1, 9)))

	err := b.Buy(ctx, "ESH0^2", 1)
	assert.ErrorIs(t, err, marketdata.ErrNoData)
	assert.Zero(t, b.Position("ESH0^2"))
	assert.False(t, b.HasExecution())
}
