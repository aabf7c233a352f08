// Package chain resolves logical futures stems to concrete contract symbols
// using per-stem expiry chains. Chains are external reference data: the
// resolver only reads them and fails loudly when they do not extend far
// enough forward.
package chain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/quantfold/navsim/dates"
)

// ErrUnknownContract is returned when a symbol cannot be found in any chain.
var ErrUnknownContract = errors.New("unknown contract")

// StaleChainError signals that the chain for a stem does not extend far
// enough past the query day. This is fatal for a run: the reference data
// itself must be refreshed before retrying.
type StaleChainError struct {
	Stem          string
	AsOf          time.Time
	LastTradeDate time.Time
}

func (e *StaleChainError) Error() string {
	return fmt.Sprintf("chain for %s is stale: last trade date %s as of %s, refresh expiry data",
		e.Stem, dates.Format(e.LastTradeDate), dates.Format(e.AsOf))
}

// Contract is one entry of a stem's expiry chain.
type Contract struct {
	Symbol         string
	FirstTradeDate time.Time
	LastTradeDate  time.Time
	Tradable       bool
}

// Chain is the full expiry chain for one stem, sorted ascending by last
// trade date. Treated as append-only reference data.
type Chain []Contract

func (c Chain) sorted() Chain {
	out := make(Chain, len(c))
	copy(out, c)
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastTradeDate.Before(out[j].LastTradeDate)
	})
	return out
}

// active returns the tradable contracts whose last trade date is on or
// after asOf, ascending.
func (c Chain) active(asOf time.Time) Chain {
	var out Chain
	for _, ct := range c {
		if ct.Tradable && !ct.LastTradeDate.Before(asOf) {
			out = append(out, ct)
		}
	}
	return out
}
