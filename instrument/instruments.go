// Package instrument carries the static reference data for the futures
// universe: per-stem contract specs, margin base rates and the currency set
// used by cash accounting. The table is loaded once per process and treated
// as immutable afterwards.
package instrument

import (
	"strings"
	"unicode"
)

// Currencies is the fixed set of cash currencies every ledger carries.
// A balance for each of these is always present, even when zero.
var Currencies = []string{"AUD", "CAD", "CHF", "EUR", "GBP", "HKD", "JPY", "SGD", "USD"}

const (
	// DefaultRollOffsetDays is the roll offset applied when a definition
	// does not override it. Negative means the reference day used for
	// contract resolution lies after the query day.
	DefaultRollOffsetDays = -31

	// DefaultSpread is the relative bid/ask spread assumed by the market
	// impact model when a definition does not override it.
	DefaultSpread = 5e-4
)

// Definition is the static record for one futures stem.
type Definition struct {
	Stem                 string   `yaml:"stem"`
	ReutersStem          string   `yaml:"reuters_stem"`
	Currency             string   `yaml:"currency"`
	FullPointValue       float64  `yaml:"full_point_value"`
	OvernightInitial     float64  `yaml:"overnight_initial"`
	OvernightMaintenance float64  `yaml:"overnight_maintenance"`
	RollOffsetDays       int      `yaml:"roll_offset_days"`
	NormalMonths         []string `yaml:"normal_months"`
	ExpiryCalendar       string   `yaml:"expiry_calendar"`
	Spread               float64  `yaml:"spread"`
}

// RollOffset returns the roll offset in days, falling back to the default
// when the definition leaves it unset.
func (d Definition) RollOffset() int {
	if d.RollOffsetDays == 0 {
		return DefaultRollOffsetDays
	}
	return d.RollOffsetDays
}

// RelativeSpread returns the relative spread used for market impact,
// falling back to the default when unset.
func (d Definition) RelativeSpread() float64 {
	if d.Spread == 0 {
		return DefaultSpread
	}
	return d.Spread
}

// Definitions is the built-in futures universe, keyed by stem.
var Definitions = map[string]Definition{
	"ES": {
		Stem:                 "ES",
		ReutersStem:          "ES",
		Currency:             "USD",
		FullPointValue:       50,
		OvernightInitial:     13200,
		OvernightMaintenance: 12000,
		NormalMonths:         []string{"H", "M", "U", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/equities/sp/e-mini-sandp500.html",
	},
	"NQ": {
		Stem:                 "NQ",
		ReutersStem:          "NQ",
		Currency:             "USD",
		FullPointValue:       20,
		OvernightInitial:     17600,
		OvernightMaintenance: 16000,
		NormalMonths:         []string{"H", "M", "U", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/equities/nasdaq/e-mini-nasdaq-100.html",
	},
	"YM": {
		Stem:                 "YM",
		ReutersStem:          "YM",
		Currency:             "USD",
		FullPointValue:       5,
		OvernightInitial:     9900,
		OvernightMaintenance: 9000,
		NormalMonths:         []string{"H", "M", "U", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/equities/dow-jones/e-mini-dow.html",
	},
	"GC": {
		Stem:                 "GC",
		ReutersStem:          "GC",
		Currency:             "USD",
		FullPointValue:       100,
		OvernightInitial:     11000,
		OvernightMaintenance: 10000,
		NormalMonths:         []string{"G", "J", "M", "Q", "V", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/metals/precious/gold.html",
	},
	"SI": {
		Stem:                 "SI",
		ReutersStem:          "SI",
		Currency:             "USD",
		FullPointValue:       5000,
		OvernightInitial:     16500,
		OvernightMaintenance: 15000,
		NormalMonths:         []string{"H", "K", "N", "U", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/metals/precious/silver.html",
	},
	"HG": {
		Stem:                 "HG",
		ReutersStem:          "HG",
		Currency:             "USD",
		FullPointValue:       25000,
		OvernightInitial:     8250,
		OvernightMaintenance: 7500,
		NormalMonths:         []string{"H", "K", "N", "U", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/metals/base/copper.html",
	},
	"CL": {
		Stem:                 "CL",
		ReutersStem:          "CL",
		Currency:             "USD",
		FullPointValue:       1000,
		OvernightInitial:     6600,
		OvernightMaintenance: 6000,
		NormalMonths:         []string{"F", "G", "H", "J", "K", "M", "N", "Q", "U", "V", "X", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/energy/crude-oil/light-sweet-crude.html",
	},
	"ZN": {
		Stem:                 "ZN",
		ReutersStem:          "TY",
		Currency:             "USD",
		FullPointValue:       1000,
		OvernightInitial:     2200,
		OvernightMaintenance: 2000,
		NormalMonths:         []string{"H", "M", "U", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/interest-rates/us-treasury/10-year-us-treasury-note.html",
	},
	"FESX": {
		Stem:                 "FESX",
		ReutersStem:          "STXE",
		Currency:             "EUR",
		FullPointValue:       10,
		OvernightInitial:     3300,
		OvernightMaintenance: 3000,
		NormalMonths:         []string{"H", "M", "U", "Z"},
		ExpiryCalendar:       "https://www.eurex.com/ex-en/markets/idx/stx/blc/EURO-STOXX-50-Index-Futures-160088",
	},
	"FDAX": {
		Stem:                 "FDAX",
		ReutersStem:          "FDX",
		Currency:             "EUR",
		FullPointValue:       25,
		OvernightInitial:     33000,
		OvernightMaintenance: 30000,
		NormalMonths:         []string{"H", "M", "U", "Z"},
		ExpiryCalendar:       "https://www.eurex.com/ex-en/markets/idx/dax/DAX-Futures-139902",
	},
	"NK": {
		Stem:                 "NK",
		ReutersStem:          "SSI",
		Currency:             "JPY",
		FullPointValue:       500,
		OvernightInitial:     990000,
		OvernightMaintenance: 900000,
		NormalMonths:         []string{"H", "M", "U", "Z"},
		ExpiryCalendar:       "https://www.sgx.com/derivatives/products/nikkei225",
	},
	"HTE": {
		Stem:                 "HTE",
		ReutersStem:          "HTE",
		Currency:             "USD",
		FullPointValue:       50,
		OvernightInitial:     66000,
		OvernightMaintenance: 60000,
		NormalMonths:         []string{"F", "G", "H", "J", "K", "M", "N", "Q", "U", "V", "X", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/cryptocurrencies/ether/ether.html",
	},
	"MBT": {
		Stem:                 "MBT",
		ReutersStem:          "MBT",
		Currency:             "USD",
		FullPointValue:       0.1,
		OvernightInitial:     2750,
		OvernightMaintenance: 2500,
		NormalMonths:         []string{"F", "G", "H", "J", "K", "M", "N", "Q", "U", "V", "X", "Z"},
		ExpiryCalendar:       "https://www.cmegroup.com/markets/cryptocurrencies/bitcoin/micro-bitcoin.html",
	},
}

// Get looks up the definition for a stem.
func Get(stem string) (Definition, bool) {
	d, ok := Definitions[stem]
	return d, ok
}

// Stems returns all known stems.
func Stems() []string {
	out := make([]string, 0, len(Definitions))
	for s := range Definitions {
		out = append(out, s)
	}
	return out
}

// SymbolToStem maps a concrete contract symbol back to its stem. Dated
// symbols carry a "^" year suffix, delayed-data symbols a "/" prefix, and
// the remainder is <reuters stem><month letter><year digits>.
// Returns "" when the symbol does not belong to the known universe.
func SymbolToStem(symbol string) string {
	s := symbol
	if i := strings.Index(s, "^"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	withMonth := b.String()
	if len(withMonth) == 0 {
		return ""
	}
	reuters := withMonth[:len(withMonth)-1]
	// Reuters quotes spot silver contracts under SIRT.
	if reuters == "SIRT" {
		return "SI"
	}
	for stem, def := range Definitions {
		if reuters == def.ReutersStem {
			return stem
		}
	}
	return ""
}
