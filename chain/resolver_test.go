package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/navsim/dates"
)

func esChain() Chain {
	return Chain{
		{Symbol: "ESH0^2", FirstTradeDate: dates.New(2019, time.March, 22), LastTradeDate: dates.New(2020, time.March, 20), Tradable: true},
		{Symbol: "ESM0^2", FirstTradeDate: dates.New(2019, time.June, 21), LastTradeDate: dates.New(2020, time.June, 19), Tradable: true},
		{Symbol: "ESU0^2", FirstTradeDate: dates.New(2019, time.September, 20), LastTradeDate: dates.New(2020, time.September, 18), Tradable: true},
		{Symbol: "ESZ0^2", FirstTradeDate: dates.New(2019, time.December, 20), LastTradeDate: dates.New(2020, time.December, 18), Tradable: false},
	}
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r := NewResolver(map[string]Chain{"ES": esChain()})
	// Pin "now" so recency-based alias logic is deterministic.
	r.now = func() time.Time { return dates.New(2024, time.June, 1) }
	return r
}

func TestChainFiltersAndSorts(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	c, err := r.Chain("ES", dates.New(2020, time.April, 1))
	assert.NoError(t, err)
	// ESH0^2 expired, ESZ0^2 not tradable.
	assert.Len(t, c, 2)
	assert.Equal(t, "ESM0^2", c[0].Symbol)
	assert.Equal(t, "ESU0^2", c[1].Symbol)
}

func TestChainStale(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	_, err := r.Chain("ES", dates.New(2021, time.January, 4))
	var stale *StaleChainError
	assert.ErrorAs(t, err, &stale)
	assert.Equal(t, "ES", stale.Stem)

	r.SetMinLookahead(250)
	_, err = r.Chain("ES", dates.New(2020, time.June, 1))
	assert.ErrorAs(t, err, &stale)
}

func TestFrontAndNext(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	ctx := context.Background()

	// Reference day is 31 days ahead: mid-January still resolves the March
	// contract as front.
	day := dates.New(2020, time.January, 15)
	ltd, sym, err := r.Front(ctx, "ES", day)
	assert.NoError(t, err)
	assert.Equal(t, "ESH0^2", sym)
	assert.Equal(t, dates.New(2020, time.March, 20), ltd)

	_, next, err := r.Next(ctx, "ES", day)
	assert.NoError(t, err)
	assert.Equal(t, "ESM0^2", next)

	// Within 31 days of the March expiry the front rolls forward to June.
	ltd, sym, err = r.Front(ctx, "ES", dates.New(2020, time.March, 2))
	assert.NoError(t, err)
	assert.Equal(t, "ESM0^2", sym)
	assert.Equal(t, dates.New(2020, time.June, 19), ltd)
}

func TestFrontMemoizedPerDay(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	ctx := context.Background()

	d1 := dates.New(2020, time.January, 15)
	d2 := dates.New(2020, time.March, 2)
	_, s1, err := r.Front(ctx, "ES", d1)
	assert.NoError(t, err)
	_, s1again, err := r.Front(ctx, "ES", d1)
	assert.NoError(t, err)
	_, s2, err := r.Front(ctx, "ES", d2)
	assert.NoError(t, err)

	assert.Equal(t, s1, s1again)
	// A cache hit for one day must never leak into a different day.
	assert.NotEqual(t, s1, s2)
}

func TestAliasDisambiguation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	probed := []string{}
	r := NewResolver(map[string]Chain{"ES": esChain()})
	r.now = func() time.Time { return dates.New(2020, time.July, 1) }
	r.SetProbe(ProbeFunc(func(_ context.Context, symbol string) (bool, error) {
		probed = append(probed, symbol)
		return symbol == "ESM0", nil
	}))

	// ESM0^2 expires within the trailing year and the probe confirms the
	// active alias quotes.
	_, sym, err := r.Front(ctx, "ES", dates.New(2020, time.April, 1))
	assert.NoError(t, err)
	assert.Equal(t, "ESM0", sym)
	assert.Contains(t, probed, "ESM0")

	// The probe denies ESU0, so the dated alias stays.
	_, sym, err = r.Front(ctx, "ES", dates.New(2020, time.July, 1))
	assert.NoError(t, err)
	assert.Equal(t, "ESU0^2", sym)
}

func TestAliasKeepsDatedForOldContracts(t *testing.T) {
	t.Parallel()

	r := NewResolver(map[string]Chain{"ES": esChain()})
	r.now = func() time.Time { return dates.New(2024, time.June, 1) }
	r.SetProbe(ProbeFunc(func(context.Context, string) (bool, error) {
		t.Fatal("probe must not run for contracts older than a year")
		return false, nil
	}))

	_, sym, err := r.Front(context.Background(), "ES", dates.New(2020, time.January, 15))
	assert.NoError(t, err)
	assert.Equal(t, "ESH0^2", sym)
}

func TestDatedYear(t *testing.T) {
	t.Parallel()

	year, ok := datedYear("ESH0^2")
	assert.True(t, ok)
	assert.Equal(t, 2020, year)

	year, ok = datedYear("ESZ9^1")
	assert.True(t, ok)
	assert.Equal(t, 2019, year)

	year, ok = datedYear("ESH8^9")
	assert.True(t, ok)
	assert.Equal(t, 1998, year)

	_, ok = datedYear("ESH0")
	assert.False(t, ok)
}

func TestTradeDatesAndExpiresSoon(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)

	ftd, err := r.FirstTradeDate("ESH0^2")
	assert.NoError(t, err)
	assert.Equal(t, dates.New(2019, time.March, 22), ftd)

	ltd, err := r.LastTradeDate("ESH0^2")
	assert.NoError(t, err)
	assert.Equal(t, dates.New(2020, time.March, 20), ltd)

	soon, err := r.ExpiresSoon("ESH0^2", dates.New(2020, time.March, 1))
	assert.NoError(t, err)
	assert.False(t, soon)

	soon, err = r.ExpiresSoon("ESH0^2", dates.New(2020, time.March, 15))
	assert.NoError(t, err)
	assert.True(t, soon)

	_, err = r.LastTradeDate("ZZZ9^1")
	assert.ErrorIs(t, err, ErrUnknownContract)
}

func TestLookupActiveAlias(t *testing.T) {
	t.Parallel()

	r := NewResolver(map[string]Chain{"ES": esChain()})
	r.now = func() time.Time { return dates.New(2020, time.June, 1) }

	// "ESM0" strips to the same base as "ESM0^2"; the row expiring nearest
	// to the pinned now is chosen.
	ltd, err := r.LastTradeDate("ESM0")
	assert.NoError(t, err)
	assert.Equal(t, dates.New(2020, time.June, 19), ltd)
}
