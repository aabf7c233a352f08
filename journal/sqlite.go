package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantfold/navsim/dates"
)

// SQLite persists run outputs in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and ensures the
// schema exists.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordExecution(rec ExecutionRecord) error {
	args := []any{
		rec.ID, dates.Format(rec.Day), rec.Symbol, rec.Stem, rec.Type,
		rec.Contracts, rec.Currency, rec.Price, rec.FullPointValue,
		rec.Commission, rec.MarketImpact,
	}
	for _, cash := range cashBalances(rec.CashAfter) {
		args = append(args, cash)
	}
	_, err := j.db.Exec(`
		INSERT INTO executions
		(id, day, symbol, stem, type, contracts, currency, price, full_point_value, commission, market_impact,
		 cash_aud, cash_cad, cash_chf, cash_eur, cash_gbp, cash_hkd, cash_jpy, cash_sgd, cash_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return err
}

func (j *SQLite) RecordNAV(rec NAVSnapshot) error {
	_, err := j.db.Exec(`INSERT INTO nav (day, nav) VALUES (?, ?)`,
		dates.Format(rec.Day), rec.NAV,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
