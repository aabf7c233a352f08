package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/navsim/dates"
	"github.com/quantfold/navsim/instrument"
)

// ExistenceProbe reports whether a symbol still quotes on the live feed.
// It is only consulted to pick between the active and dated alias of a
// recently expired contract.
type ExistenceProbe interface {
	Exists(ctx context.Context, symbol string) (bool, error)
}

// ProbeFunc adapts a function to the ExistenceProbe interface.
type ProbeFunc func(ctx context.Context, symbol string) (bool, error)

func (f ProbeFunc) Exists(ctx context.Context, symbol string) (bool, error) {
	return f(ctx, symbol)
}

type contractKey struct {
	stem string
	day  time.Time
	rank int
}

type resolved struct {
	ltd    time.Time
	symbol string
}

// Resolver maps (stem, day) to concrete contract symbols. All lookups are
// pure functions of their arguments over immutable chains, so results are
// memoized on the exact argument tuple. A Resolver is a per-run context
// object; sharing one across runs only shares derived caches.
type Resolver struct {
	chains       map[string]Chain
	probe        ExistenceProbe
	minLookahead int

	now func() time.Time

	contracts map[contractKey]resolved
	firstTD   map[string]time.Time
	lastTD    map[string]time.Time
}

// NewResolver builds a resolver over the given per-stem chains.
func NewResolver(chains map[string]Chain) *Resolver {
	sorted := make(map[string]Chain, len(chains))
	for stem, c := range chains {
		sorted[stem] = c.sorted()
	}
	return &Resolver{
		chains:    sorted,
		now:       time.Now,
		contracts: make(map[contractKey]resolved),
		firstTD:   make(map[string]time.Time),
		lastTD:    make(map[string]time.Time),
	}
}

// SetProbe installs the live-data existence probe used for alias
// disambiguation. Without a probe the dated alias is always used.
func (r *Resolver) SetProbe(p ExistenceProbe) { r.probe = p }

// SetMinLookahead sets the minimum number of days the most forward contract
// must extend past the query day before the chain counts as stale.
func (r *Resolver) SetMinLookahead(days int) { r.minLookahead = days }

// Chain returns the tradable contracts for stem with a last trade date on or
// after asOf, ascending. Returns a StaleChainError when the chain does not
// reach minLookahead days past asOf.
func (r *Resolver) Chain(stem string, asOf time.Time) (Chain, error) {
	full, ok := r.chains[stem]
	if !ok || len(full) == 0 {
		return nil, fmt.Errorf("no chain for stem %s", stem)
	}
	last := full[len(full)-1].LastTradeDate
	if last.Before(dates.AddDays(asOf, r.minLookahead)) {
		return nil, &StaleChainError{Stem: stem, AsOf: asOf, LastTradeDate: last}
	}
	return full.active(asOf), nil
}

// contractAt resolves the chain entry at the given rank as of day, applying
// alias disambiguation for recently expired contracts.
func (r *Resolver) contractAt(ctx context.Context, stem string, day time.Time, rank int) (time.Time, string, error) {
	key := contractKey{stem: stem, day: day, rank: rank}
	if res, ok := r.contracts[key]; ok {
		return res.ltd, res.symbol, nil
	}
	chain, err := r.Chain(stem, day)
	if err != nil {
		return time.Time{}, "", err
	}
	if rank >= len(chain) {
		last := day
		if len(chain) > 0 {
			last = chain[len(chain)-1].LastTradeDate
		}
		return time.Time{}, "", &StaleChainError{Stem: stem, AsOf: day, LastTradeDate: last}
	}
	ct := chain[rank]
	symbol := r.disambiguate(ctx, ct.Symbol)
	r.contracts[key] = resolved{ltd: ct.LastTradeDate, symbol: symbol}
	return ct.LastTradeDate, symbol, nil
}

// disambiguate picks between the dated alias (year-suffixed) and the active
// alias (suffix-free). Only contracts expiring within the trailing twelve
// months may switch to the active alias, and only when the probe confirms
// it still quotes.
func (r *Resolver) disambiguate(ctx context.Context, symbol string) string {
	i := strings.Index(symbol, "^")
	if i <= 0 {
		return symbol
	}
	year, ok := datedYear(symbol)
	if !ok {
		return symbol
	}
	if year < r.now().AddDate(-1, 0, 0).Year() {
		return symbol
	}
	if r.probe == nil {
		return symbol
	}
	active := symbol[:i]
	exists, err := r.probe.Exists(ctx, active)
	if err != nil || !exists {
		return symbol
	}
	return active
}

// datedYear decodes the expiry year of a dated symbol. The convention is
// <stem><month><unit digit>^<decade digit>, e.g. ESH0^2 expires in 2020.
func datedYear(symbol string) (int, bool) {
	i := strings.Index(symbol, "^")
	if i <= 0 || i+1 >= len(symbol) {
		return 0, false
	}
	unit := symbol[i-1]
	decade := symbol[i+1]
	if unit < '0' || unit > '9' || decade < '0' || decade > '9' {
		return 0, false
	}
	century := 2000
	if decade == '8' || decade == '9' {
		century = 1900
	}
	return century + int(decade-'0')*10 + int(unit-'0'), true
}

// referenceDay shifts day by the stem's roll offset. The offset is negative,
// so the reference day lies after the query day: contracts expiring inside
// the offset window no longer count as front.
func referenceDay(stem string, day time.Time) time.Time {
	offset := instrument.DefaultRollOffsetDays
	if def, ok := instrument.Get(stem); ok {
		offset = def.RollOffset()
	}
	return dates.AddDays(day, -offset)
}

// Front resolves the front contract for stem as of day, returning its last
// trade date and symbol.
func (r *Resolver) Front(ctx context.Context, stem string, day time.Time) (time.Time, string, error) {
	return r.contractAt(ctx, stem, referenceDay(stem, day), 0)
}

// Next resolves the next contract after the front for stem as of day.
func (r *Resolver) Next(ctx context.Context, stem string, day time.Time) (time.Time, string, error) {
	return r.contractAt(ctx, stem, referenceDay(stem, day), 1)
}

// FirstTradeDate returns the first trade date recorded for symbol. For an
// active alias the chain row whose expiry lies nearest to the current date
// is used.
func (r *Resolver) FirstTradeDate(symbol string) (time.Time, error) {
	if ftd, ok := r.firstTD[symbol]; ok {
		return ftd, nil
	}
	ct, err := r.lookup(symbol)
	if err != nil {
		return time.Time{}, err
	}
	r.firstTD[symbol] = ct.FirstTradeDate
	return ct.FirstTradeDate, nil
}

// LastTradeDate returns the last trade date recorded for symbol.
func (r *Resolver) LastTradeDate(symbol string) (time.Time, error) {
	if ltd, ok := r.lastTD[symbol]; ok {
		return ltd, nil
	}
	ct, err := r.lookup(symbol)
	if err != nil {
		return time.Time{}, err
	}
	r.lastTD[symbol] = ct.LastTradeDate
	return ct.LastTradeDate, nil
}

// ExpiresSoon reports whether symbol is within ten calendar days of its
// last trade date as of day. Positions this close to expiry carry delivery
// and illiquidity risk.
func (r *Resolver) ExpiresSoon(symbol string, day time.Time) (bool, error) {
	ltd, err := r.LastTradeDate(symbol)
	if err != nil {
		return false, err
	}
	return day.After(dates.AddDays(ltd, -10)), nil
}

func (r *Resolver) lookup(symbol string) (Contract, error) {
	stem := instrument.SymbolToStem(symbol)
	full, ok := r.chains[stem]
	if !ok {
		return Contract{}, fmt.Errorf("%w: %s", ErrUnknownContract, symbol)
	}
	if strings.Contains(symbol, "^") {
		for _, ct := range full {
			if ct.Symbol == symbol {
				return ct, nil
			}
		}
		return Contract{}, fmt.Errorf("%w: %s", ErrUnknownContract, symbol)
	}
	// Active alias: several dated rows strip to the same symbol. Pick the
	// one expiring nearest to the current date.
	today := dates.Day(r.now())
	var best Contract
	bestDist := -1
	for _, ct := range full {
		base := ct.Symbol
		if i := strings.Index(base, "^"); i >= 0 {
			base = base[:i]
		}
		if base != symbol {
			continue
		}
		dist := int(ct.LastTradeDate.Sub(today).Hours() / 24)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = ct, dist
		}
	}
	if bestDist < 0 {
		return Contract{}, fmt.Errorf("%w: %s", ErrUnknownContract, symbol)
	}
	return best, nil
}
