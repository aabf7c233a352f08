// Package journal persists the audited outputs of a simulation run: the
// execution ledger and the daily NAV series. Sinks exist for SQLite, CSV
// and Parquet.
package journal

import (
	"time"

	"github.com/quantfold/navsim/instrument"
)

// ExecutionRecord is one executed trade with its post-trade cash snapshot.
// Records are appended, never mutated or removed.
type ExecutionRecord struct {
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

// NAVSnapshot is one day's mark-to-market portfolio value.
type NAVSnapshot struct {
	Day time.Time
	NAV float64
}

// Journal is the sink for run outputs.
type Journal interface {
	RecordExecution(ExecutionRecord) error
	RecordNAV(NAVSnapshot) error
	Close() error
}

// cashBalances flattens a cash snapshot into the fixed currency order used
// by the tabular sinks.
func cashBalances(cash map[string]float64) []float64 {
	out := make([]float64, len(instrument.Currencies))
	for i, ccy := range instrument.Currencies {
		out[i] = cash[ccy]
	}
	return out
}

// Multi fans records out to several journals.
type Multi []Journal

func (m Multi) RecordExecution(rec ExecutionRecord) error {
	for _, j := range m {
		if err := j.RecordExecution(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) RecordNAV(rec NAVSnapshot) error {
	for _, j := range m {
		if err := j.RecordNAV(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, j := range m {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
