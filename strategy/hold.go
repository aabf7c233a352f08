package strategy

import (
	"context"
	"math"

	"github.com/quantfold/navsim/instrument"
)

// BuyAndHold keeps one sustained long position per tracked stem, rolling
// the front contract forward as expiries approach.
type BuyAndHold struct {
	Params Params
}

func (s *BuyAndHold) OnDay(ctx context.Context, env Env) error {
	return holdOnDay(ctx, env, s.Params, false)
}

func (s *BuyAndHold) OnIndicators(context.Context, Env) error { return nil }

// SellAndHold is the short mirror of BuyAndHold. It additionally
// force-settles any position within ten calendar days of its contract's
// last trade date, regardless of roll timing, to avoid delivery and
// illiquidity risk near expiry.
type SellAndHold struct {
	Params Params
}

func (s *SellAndHold) OnDay(ctx context.Context, env Env) error {
	if err := holdOnDay(ctx, env, s.Params, true); err != nil {
		return err
	}
	return expireSweep(ctx, env)
}

func (s *SellAndHold) OnIndicators(context.Context, Env) error { return nil }

// holdOnDay runs the shared per-stem logic: open a sized position when
// flat, roll when holding and today is the last good day to roll,
// otherwise hold.
func holdOnDay(ctx context.Context, env Env, params Params, short bool) error {
	b := env.Broker()
	md := env.MarketData()
	for _, stem := range params.Stems {
		_, frontSym, err := env.Resolver().Front(ctx, stem, env.Day())
		if err != nil {
			return err
		}
		trading, err := md.IsTradingDay(ctx, env.Day(), frontSym)
		if err != nil {
			return err
		}
		if !trading {
			continue
		}
		if b.Position(frontSym) != 0 {
			should, err := md.ShouldRollToday(ctx, env.Day(), stem)
			if err != nil {
				return err
			}
			if should {
				if _, err := b.RollFrontContract(ctx, stem); err != nil {
					return err
				}
			}
			continue
		}
		count, err := sizePosition(ctx, env, params, stem, frontSym)
		if err != nil {
			return err
		}
		if short {
			err = b.Sell(ctx, frontSym, count)
		} else {
			err = b.Buy(ctx, frontSym, count)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// sizePosition computes floor(NAV x leverage / (fullPointValueUSD x close
// x numberOfPositions)) contracts for the front contract of stem.
func sizePosition(ctx context.Context, env Env, params Params, stem, symbol string) (float64, error) {
	def, ok := instrument.Get(stem)
	if !ok {
		return 0, nil
	}
	bar, err := env.MarketData().Bar(ctx, env.Day(), symbol)
	if err != nil {
		return 0, err
	}
	rate, err := env.Forex().ToUSD(ctx, def.Currency, env.Day())
	if err != nil {
		return 0, err
	}
	fullPointValueUSD := def.FullPointValue * rate
	count := math.Floor(env.NAV() * params.Leverage /
		(fullPointValueUSD * bar.Close * float64(params.NumberOfPositions)))
	if math.IsNaN(count) || math.IsInf(count, 0) || count < 0 {
		return 0, nil
	}
	return count, nil
}

// expireSweep settles every open position that is within ten days of its
// last trade date and still trading today.
func expireSweep(ctx context.Context, env Env) error {
	b := env.Broker()
	for sym, count := range b.Positions() {
		if count == 0 {
			continue
		}
		soon, err := env.Resolver().ExpiresSoon(sym, env.Day())
		if err != nil {
			return err
		}
		if !soon {
			continue
		}
		trading, err := env.MarketData().IsTradingDay(ctx, env.Day(), sym)
		if err != nil {
			return err
		}
		if !trading {
			continue
		}
		if _, err := b.Expire(ctx, sym); err != nil {
			return err
		}
	}
	return nil
}
