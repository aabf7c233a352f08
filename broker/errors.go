package broker

import (
	"fmt"
	"time"

	"github.com/quantfold/navsim/dates"
)

// InvalidCashError means a cash balance turned NaN: a prior FX or margin
// failure went unhandled. Fatal; the run aborts.
type InvalidCashError struct {
	Currency string
	Day      time.Time
}

func (e *InvalidCashError) Error() string {
	return fmt.Sprintf("cash balance for %s is NaN on %s", e.Currency, dates.Format(e.Day))
}

// MarginExceededError means the aggregate initial or maintenance margin
// requirement exceeds NAV. Fatal; indicates a mis-sized strategy or
// insufficient capital.
type MarginExceededError struct {
	Kind     string // "initial" or "maintenance"
	Day      time.Time
	Symbol   string // symbol being traded, empty for maintenance checks
	Required float64
	NAV      float64
}

func (e *MarginExceededError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s margin exceeded on %s trading %s: required %.2f, nav %.2f",
			e.Kind, dates.Format(e.Day), e.Symbol, e.Required, e.NAV)
	}
	return fmt.Sprintf("%s margin exceeded on %s: required %.2f, nav %.2f",
		e.Kind, dates.Format(e.Day), e.Required, e.NAV)
}
