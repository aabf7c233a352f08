// Package broker owns the mutable state of one simulation run: the
// per-currency cash ledger, the futures positions and the execution log.
// Trades execute at the daily close with commission and market impact
// costs, under initial/maintenance margin enforcement.
package broker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantfold/navsim/chain"
	"github.com/quantfold/navsim/forex"
	"github.com/quantfold/navsim/instrument"
	"github.com/quantfold/navsim/internal/id"
	"github.com/quantfold/navsim/journal"
	"github.com/quantfold/navsim/margin"
	"github.com/quantfold/navsim/marketdata"
)

// CommissionUSD is the fixed per-contract commission, charged in USD.
// Source: Interactive Brokers US futures tier.
const CommissionUSD = 1.05

// Execution is one immutable entry of the trade ledger.
type Execution struct {
	ID             string
	Day            time.Time
	Symbol         string
	Stem           string
	Type           string // Buy, Sell or Close
	Contracts      float64
	Currency       string
	Price          float64
	FullPointValue float64
	Commission     float64
	MarketImpact   float64
	CashAfter      map[string]float64
}

// Config controls a broker's execution mode.
type Config struct {
	Cash float64 // opening USD cash

	// Live keeps fractional contract counts as-is. In backtest mode
	// counts round to the nearest whole contract before execution.
	Live bool

	// NoCheck disables initial and maintenance margin enforcement.
	NoCheck bool
}

// Broker is the single owner of cash, positions and the execution log for
// the duration of one run. All other components only read backtest state.
type Broker struct {
	cash       map[string]float64
	futures    map[string]float64
	prevClose  map[string]float64
	executions []Execution

	day          time.Time
	hasExecution bool
	live         bool
	noCheck      bool

	md       *marketdata.MarketData
	fx       *forex.Forex
	margin   *margin.Margin
	resolver *chain.Resolver
	journal  journal.Journal
}

// New builds a broker with every configured currency present in the ledger
// and the opening cash in USD.
func New(cfg Config, md *marketdata.MarketData, fx *forex.Forex, mg *margin.Margin, resolver *chain.Resolver) *Broker {
	cash := make(map[string]float64, len(instrument.Currencies))
	for _, ccy := range instrument.Currencies {
		cash[ccy] = 0
	}
	cash["USD"] = cfg.Cash
	return &Broker{
		cash:      cash,
		futures:   make(map[string]float64),
		prevClose: make(map[string]float64),
		live:      cfg.Live,
		noCheck:   cfg.NoCheck,
		md:        md,
		fx:        fx,
		margin:    mg,
		resolver:  resolver,
	}
}

// SetJournal installs an optional sink that receives every execution as it
// is appended.
func (b *Broker) SetJournal(j journal.Journal) { b.journal = j }

// SetNoCheck toggles margin enforcement.
func (b *Broker) SetNoCheck(noCheck bool) { b.noCheck = noCheck }

// Day returns the broker's current simulation day.
func (b *Broker) Day() time.Time { return b.day }

// HasExecution reports whether any trade executed since the last Next.
func (b *Broker) HasExecution() bool { return b.hasExecution }

// Cash returns a copy of the cash ledger.
func (b *Broker) Cash() map[string]float64 {
	out := make(map[string]float64, len(b.cash))
	for ccy, v := range b.cash {
		out[ccy] = v
	}
	return out
}

// Position returns the signed contract count held in symbol.
func (b *Broker) Position(symbol string) float64 { return b.futures[symbol] }

// Positions returns a copy of the futures position map.
func (b *Broker) Positions() map[string]float64 {
	out := make(map[string]float64, len(b.futures))
	for sym, count := range b.futures {
		out[sym] = count
	}
	return out
}

// Executions returns the execution ledger in append order.
func (b *Broker) Executions() []Execution {
	out := make([]Execution, len(b.executions))
	copy(out, b.executions)
	return out
}

// Next advances the broker to day and runs the daily maintenance margin
// check before any strategy logic may trade.
func (b *Broker) Next(ctx context.Context, day time.Time) error {
	b.day = day
	b.hasExecution = false
	return b.CheckMaintenanceMargin(ctx)
}

// ApplyAdjustment uniformly scales every cash balance and every futures
// position, used for re-basing and compounding. No execution records are
// generated.
func (b *Broker) ApplyAdjustment(ratio float64) {
	for ccy := range b.cash {
		b.cash[ccy] *= ratio
	}
	for sym := range b.futures {
		b.futures[sym] *= ratio
	}
}

// Buy opens or extends a position of count contracts in symbol at today's
// close. Negative counts sell. Counts round to the nearest whole contract
// unless running live; a count that rounds to zero is a no-op.
func (b *Broker) Buy(ctx context.Context, symbol string, count float64) error {
	if !b.live {
		count = math.Round(count)
	}
	if count == 0 {
		return nil
	}
	stem := instrument.SymbolToStem(symbol)
	def, ok := instrument.Get(stem)
	if !ok {
		return fmt.Errorf("unknown instrument for symbol %s", symbol)
	}
	if math.IsNaN(b.cash[def.Currency]) {
		return &InvalidCashError{Currency: def.Currency, Day: b.day}
	}
	bar, err := b.md.Bar(ctx, b.day, symbol)
	if err != nil {
		return err
	}
	if math.IsNaN(bar.Close) {
		return fmt.Errorf("%w: close for %s on %s", marketdata.ErrNoData, symbol, b.day.Format("2006-01-02"))
	}
	price := bar.Close

	b.futures[symbol] += count
	b.cash[def.Currency] -= count * price * def.FullPointValue

	commission := b.applyCommission(count)
	impact, err := b.applyMarketImpact(ctx, def, count, price)
	if err != nil {
		return err
	}
	if err := b.checkInitialMargin(ctx, symbol); err != nil {
		return err
	}

	execType := "Buy"
	if count < 0 {
		execType = "Sell"
	}
	return b.record(Execution{
		ID:             id.New(),
		Day:            b.day,
		Symbol:         symbol,
		Stem:           stem,
		Type:           execType,
		Contracts:      count,
		Currency:       def.Currency,
		Price:          price,
		FullPointValue: def.FullPointValue,
		Commission:     commission,
		MarketImpact:   impact,
		CashAfter:      b.Cash(),
	})
}

// Sell is Buy with the opposite sign.
func (b *Broker) Sell(ctx context.Context, symbol string, count float64) error {
	return b.Buy(ctx, symbol, -count)
}

// Close flattens the position in symbol at today's close, returning the
// size that was closed.
func (b *Broker) Close(ctx context.Context, symbol string) (float64, error) {
	return b.closeAt(ctx, symbol, math.NaN())
}

// Expire settles the position in symbol at the expiry-day bar, repairing a
// missing close from the median of the available open/high/low the same
// way market data access does.
func (b *Broker) Expire(ctx context.Context, symbol string) (float64, error) {
	bar, err := b.md.Bar(ctx, b.day, symbol)
	if err != nil {
		return 0, err
	}
	bar = marketdata.RepairClose(bar)
	return b.closeAt(ctx, symbol, bar.Close)
}

// closeAt flattens symbol at price, or at today's close when price is NaN.
func (b *Broker) closeAt(ctx context.Context, symbol string, price float64) (float64, error) {
	stem := instrument.SymbolToStem(symbol)
	def, ok := instrument.Get(stem)
	if !ok {
		return 0, fmt.Errorf("unknown instrument for symbol %s", symbol)
	}
	if math.IsNaN(b.cash[def.Currency]) {
		return 0, &InvalidCashError{Currency: def.Currency, Day: b.day}
	}
	if math.IsNaN(price) {
		bar, err := b.md.Bar(ctx, b.day, symbol)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(bar.Close) {
			return 0, fmt.Errorf("%w: close for %s on %s", marketdata.ErrNoData, symbol, b.day.Format("2006-01-02"))
		}
		price = bar.Close
	}

	count := b.futures[symbol]
	b.futures[symbol] = 0
	b.cash[def.Currency] += count * price * def.FullPointValue

	commission := b.applyCommission(count)
	impact, err := b.applyMarketImpact(ctx, def, count, price)
	if err != nil {
		return 0, err
	}

	if err := b.record(Execution{
		ID:             id.New(),
		Day:            b.day,
		Symbol:         symbol,
		Stem:           stem,
		Type:           "Close",
		Contracts:      count,
		Currency:       def.Currency,
		Price:          price,
		FullPointValue: def.FullPointValue,
		Commission:     commission,
		MarketImpact:   impact,
		CashAfter:      b.Cash(),
	}); err != nil {
		return 0, err
	}
	return count, nil
}

// RollFrontContract closes the entire front position of stem and reopens an
// equal-magnitude position in the next contract. Deferred (no-op, empty
// symbol) unless both contracts trade today. Calling it again on the same
// day with an empty front position performs no second trade.
func (b *Broker) RollFrontContract(ctx context.Context, stem string) (string, error) {
	_, frontSym, err := b.resolver.Front(ctx, stem, b.day)
	if err != nil {
		return "", err
	}
	_, nextSym, err := b.resolver.Next(ctx, stem, b.day)
	if err != nil {
		return "", err
	}
	frontTrading, err := b.md.IsTradingDay(ctx, b.day, frontSym)
	if err != nil {
		return "", err
	}
	nextTrading, err := b.md.IsTradingDay(ctx, b.day, nextSym)
	if err != nil {
		return "", err
	}
	if !frontTrading || !nextTrading {
		return "", nil
	}

	var closed float64
	if b.futures[frontSym] != 0 {
		closed, err = b.Close(ctx, frontSym)
		if err != nil {
			return "", err
		}
	}
	if closed != 0 {
		if err := b.Buy(ctx, nextSym, closed); err != nil {
			return "", err
		}
	}
	return nextSym, nil
}

// applyCommission debits the fixed per-contract commission from USD cash.
// Always non-positive, linear in |count|.
func (b *Broker) applyCommission(count float64) float64 {
	commission := -math.Abs(count) * CommissionUSD
	b.cash["USD"] += commission
	return commission
}

// applyMarketImpact debits the assumed slippage cost from the instrument's
// currency cash: |count| x relative spread x price x USD full point value.
// Always non-positive, linear in |count| x price.
func (b *Broker) applyMarketImpact(ctx context.Context, def instrument.Definition, count, price float64) (float64, error) {
	rate, err := b.fx.ToUSD(ctx, def.Currency, b.day)
	if err != nil {
		return 0, err
	}
	fullPointValueUSD := def.FullPointValue * rate
	impact := -math.Abs(count) * def.RelativeSpread() * price * fullPointValueUSD
	b.cash[def.Currency] += impact
	return impact, nil
}

// checkInitialMargin aggregates margin across all open positions, rating
// the traded symbol at the initial rate on its post-trade size and every
// other position at the maintenance rate. Margins that resolve to NaN are
// skipped; they poison NAV instead.
func (b *Broker) checkInitialMargin(ctx context.Context, symbol string) error {
	if b.noCheck {
		return nil
	}
	var required float64
	for sym, count := range b.futures {
		stem := instrument.SymbolToStem(sym)
		var rate float64
		var err error
		if sym == symbol {
			rate, err = b.margin.OvernightInitial(ctx, stem, b.day)
		} else {
			rate, err = b.margin.OvernightMaintenance(ctx, stem, b.day)
		}
		if err != nil {
			return err
		}
		if math.IsNaN(rate) {
			continue
		}
		required += math.Abs(count) * rate
	}
	nav, err := b.NAV(ctx)
	if err != nil {
		return err
	}
	if required > nav {
		return &MarginExceededError{Kind: "initial", Day: b.day, Symbol: symbol, Required: required, NAV: nav}
	}
	return nil
}

// CheckMaintenanceMargin verifies that the aggregate maintenance margin of
// all open positions does not exceed NAV. Runs once per simulated day
// before strategy logic.
func (b *Broker) CheckMaintenanceMargin(ctx context.Context) error {
	if b.noCheck {
		return nil
	}
	var required float64
	for sym, count := range b.futures {
		if count == 0 {
			continue
		}
		stem := instrument.SymbolToStem(sym)
		rate, err := b.margin.OvernightMaintenance(ctx, stem, b.day)
		if err != nil {
			return err
		}
		if math.IsNaN(rate) {
			continue
		}
		required += math.Abs(count) * rate
	}
	nav, err := b.NAV(ctx)
	if err != nil {
		return err
	}
	if required > nav {
		return &MarginExceededError{Kind: "maintenance", Day: b.day, Required: required, NAV: nav}
	}
	return nil
}

// NAV is the mark-to-market portfolio value in USD: cash converted at
// today's rates plus open positions marked at today's close when the
// contract trades, else at the most recently seen close. Marks seen today
// are cached for later stale-price fallback. NaN marks poison the sum; a
// NaN cash balance is an InvalidCashError.
func (b *Broker) NAV(ctx context.Context) (float64, error) {
	for _, ccy := range instrument.Currencies {
		if math.IsNaN(b.cash[ccy]) {
			return math.NaN(), &InvalidCashError{Currency: ccy, Day: b.day}
		}
	}
	var nav float64
	for ccy, amount := range b.cash {
		rate, err := b.fx.ToUSD(ctx, ccy, b.day)
		if err != nil {
			return math.NaN(), err
		}
		nav += amount * rate
	}
	for sym, count := range b.futures {
		if count == 0 {
			continue
		}
		trading, err := b.md.IsTradingDay(ctx, b.day, sym)
		if err != nil {
			return math.NaN(), err
		}
		var mark float64
		if trading {
			bar, err := b.md.Bar(ctx, b.day, sym)
			if err != nil {
				return math.NaN(), err
			}
			mark = bar.Close
			b.prevClose[sym] = mark
		} else {
			var ok bool
			mark, ok = b.prevClose[sym]
			if !ok {
				mark = math.NaN()
			}
		}
		stem := instrument.SymbolToStem(sym)
		def, ok := instrument.Get(stem)
		if !ok {
			return math.NaN(), fmt.Errorf("unknown instrument for symbol %s", sym)
		}
		rate, err := b.fx.ToUSD(ctx, def.Currency, b.day)
		if err != nil {
			return math.NaN(), err
		}
		nav += count * mark * def.FullPointValue * rate
	}
	return nav, nil
}

func (b *Broker) record(exec Execution) error {
	b.executions = append(b.executions, exec)
	b.hasExecution = true
	if b.journal == nil {
		return nil
	}
	return b.journal.RecordExecution(journal.ExecutionRecord{
		ID:             exec.ID,
		Day:            exec.Day,
		Symbol:         exec.Symbol,
		Stem:           exec.Stem,
		Type:           exec.Type,
		Contracts:      exec.Contracts,
		Currency:       exec.Currency,
		Price:          exec.Price,
		FullPointValue: exec.FullPointValue,
		Commission:     exec.Commission,
		MarketImpact:   exec.MarketImpact,
		CashAfter:      exec.CashAfter,
	})
}
