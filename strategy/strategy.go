// Package strategy defines the daily decision hook driven by the
// backtester and the two directional reference strategies.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/navsim/broker"
	"github.com/quantfold/navsim/chain"
	"github.com/quantfold/navsim/forex"
	"github.com/quantfold/navsim/marketdata"
)

// Env is what a strategy may read and act on during one simulated day.
// Trades go through the Broker; everything else is read-only.
type Env interface {
	Day() time.Time
	// NAV returns the last non-NaN NAV observed by the driver, used for
	// position sizing.
	NAV() float64
	Broker() *broker.Broker
	MarketData() *marketdata.MarketData
	Resolver() *chain.Resolver
	Forex() *forex.Forex
}

// Strategy is called once per simulated trading day: OnDay may trade,
// OnIndicators is a bookkeeping hook that must not.
type Strategy interface {
	OnDay(ctx context.Context, env Env) error
	OnIndicators(ctx context.Context, env Env) error
}

// Params carries the sizing inputs shared by the reference strategies.
type Params struct {
	Stems             []string
	Leverage          float64
	NumberOfPositions int
}

// ByName builds a named strategy with the given parameters.
func ByName(name string, params Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "buy-and-hold", "buyandhold", "long":
		return &BuyAndHold{Params: params}, nil
	case "sell-and-hold", "sellandhold", "short":
		return &SellAndHold{Params: params}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: buy-and-hold, sell-and-hold)", name)
	}
}
