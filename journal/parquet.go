package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// executionRow is the Parquet schema for the execution ledger.
type executionRow struct {
	ID             string  `parquet:"id"`
	Day            string  `parquet:"day"`
	Symbol         string  `parquet:"symbol"`
	Stem           string  `parquet:"stem"`
	Type           string  `parquet:"type"`
	Contracts      float64 `parquet:"contracts"`
	Currency       string  `parquet:"currency"`
	Price          float64 `parquet:"price"`
	FullPointValue float64 `parquet:"full_point_value"`
	Commission     float64 `parquet:"commission"`
	MarketImpact   float64 `parquet:"market_impact"`
	CashAUD        float64 `parquet:"cash_aud"`
	CashCAD        float64 `parquet:"cash_cad"`
	CashCHF        float64 `parquet:"cash_chf"`
	CashEUR        float64 `parquet:"cash_eur"`
	CashGBP        float64 `parquet:"cash_gbp"`
	CashHKD        float64 `parquet:"cash_hkd"`
	CashJPY        float64 `parquet:"cash_jpy"`
	CashSGD        float64 `parquet:"cash_sgd"`
	CashUSD        float64 `parquet:"cash_usd"`
}

// navRow is the Parquet schema for the NAV series.
type navRow struct {
	Day string  `parquet:"day"`
	NAV float64 `parquet:"nav"`
}

// Parquet buffers run outputs in memory and writes executions.parquet and
// nav.parquet under its directory on Close. Parquet row groups are written
// whole, so records cannot stream out one at a time the way the CSV sink
// does.
type Parquet struct {
	dir        string
	executions []executionRow
	navs       []navRow
}

// NewParquet creates the output directory if needed.
func NewParquet(dir string) (*Parquet, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create parquet dir: %w", err)
	}
	return &Parquet{dir: dir}, nil
}

func (j *Parquet) RecordExecution(rec ExecutionRecord) error {
	cash := cashBalances(rec.CashAfter)
	j.executions = append(j.executions, executionRow{
		ID:             rec.ID,
		Day:            rec.Day.Format("2006-01-02"),
		Symbol:         rec.Symbol,
		Stem:           rec.Stem,
		Type:           rec.Type,
		Contracts:      rec.Contracts,
		Currency:       rec.Currency,
		Price:          rec.Price,
		FullPointValue: rec.FullPointValue,
		Commission:     rec.Commission,
		MarketImpact:   rec.MarketImpact,
		CashAUD:        cash[0],
		CashCAD:        cash[1],
		CashCHF:        cash[2],
		CashEUR:        cash[3],
		CashGBP:        cash[4],
		CashHKD:        cash[5],
		CashJPY:        cash[6],
		CashSGD:        cash[7],
		CashUSD:        cash[8],
	})
	return nil
}

func (j *Parquet) RecordNAV(rec NAVSnapshot) error {
	j.navs = append(j.navs, navRow{Day: rec.Day.Format("2006-01-02"), NAV: rec.NAV})
	return nil
}

func (j *Parquet) Close() error {
	if err := writeParquet(filepath.Join(j.dir, "executions.parquet"), j.executions); err != nil {
		return err
	}
	return writeParquet(filepath.Join(j.dir, "nav.parquet"), j.navs)
}

func writeParquet[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := parquet.NewGenericWriter[T](f)
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close %s: %w", path, err)
	}
	return f.Close()
}
