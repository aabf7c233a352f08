package journal

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/quantfold/navsim/dates"
	"github.com/quantfold/navsim/instrument"
)

// CSV writes executions and NAV snapshots to two CSV files, flushing after
// every record so partial output survives a fatal abort.
type CSV struct {
	executions *csv.Writer
	nav        *csv.Writer
	ef, nf     *os.File
}

// NewCSV creates the two output files with headers.
func NewCSV(executionsPath, navPath string) (*CSV, error) {
	ef, err := os.Create(executionsPath)
	if err != nil {
		return nil, err
	}
	nf, err := os.Create(navPath)
	if err != nil {
		ef.Close()
		return nil, err
	}

	ew := csv.NewWriter(ef)
	nw := csv.NewWriter(nf)

	header := []string{
		"id", "day", "symbol", "stem", "type", "contracts", "currency",
		"price", "full_point_value", "commission", "market_impact",
	}
	for _, ccy := range instrument.Currencies {
		header = append(header, "cash_"+ccy)
	}
	if err := ew.Write(header); err != nil {
		ef.Close()
		nf.Close()
		return nil, err
	}
	if err := nw.Write([]string{"day", "nav"}); err != nil {
		ef.Close()
		nf.Close()
		return nil, err
	}
	ew.Flush()
	nw.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}
	if err := nw.Error(); err != nil {
		return nil, err
	}

	return &CSV{executions: ew, nav: nw, ef: ef, nf: nf}, nil
}

func (j *CSV) RecordExecution(rec ExecutionRecord) error {
	row := []string{
		rec.ID,
		dates.Format(rec.Day),
		rec.Symbol,
		rec.Stem,
		rec.Type,
		f(rec.Contracts),
		rec.Currency,
		f(rec.Price),
		f(rec.FullPointValue),
		f(rec.Commission),
		f(rec.MarketImpact),
	}
	for _, cash := range cashBalances(rec.CashAfter) {
		row = append(row, f(cash))
	}
	if err := j.executions.Write(row); err != nil {
		return err
	}
	j.executions.Flush()
	return j.executions.Error()
}

func (j *CSV) RecordNAV(rec NAVSnapshot) error {
	if err := j.nav.Write([]string{dates.Format(rec.Day), f(rec.NAV)}); err != nil {
		return err
	}
	j.nav.Flush()
	return j.nav.Error()
}

func (j *CSV) Close() error {
	j.executions.Flush()
	j.nav.Flush()
	if err := j.ef.Close(); err != nil {
		j.nf.Close()
		return err
	}
	return j.nf.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
