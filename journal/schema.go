package journal

// Schema creates the execution and NAV tables. Cash snapshot columns follow
// the fixed currency set of the ledger.
const Schema = `
CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	day DATE NOT NULL,
	symbol TEXT NOT NULL,
	stem TEXT NOT NULL,
	type TEXT NOT NULL,
	contracts REAL NOT NULL,
	currency TEXT NOT NULL,
	price REAL NOT NULL,
	full_point_value REAL NOT NULL,
	commission REAL NOT NULL,
	market_impact REAL NOT NULL,
	cash_aud REAL, cash_cad REAL, cash_chf REAL,
	cash_eur REAL, cash_gbp REAL, cash_hkd REAL,
	cash_jpy REAL, cash_sgd REAL, cash_usd REAL
);

CREATE TABLE IF NOT EXISTS nav (
	day DATE NOT NULL,
	nav REAL
);

CREATE INDEX IF NOT EXISTS idx_executions_day ON executions(day);
CREATE INDEX IF NOT EXISTS idx_nav_day ON nav(day);
`
