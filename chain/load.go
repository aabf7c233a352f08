package chain

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/unzip"

	"github.com/quantfold/navsim/dates"
)

// LoadDir reads per-stem chain CSV files (<STEM>.csv) from dir. Each file
// carries the columns Symbol,FirstTradeDate,LastTradeDate,Tradable with
// dates as YYYY-MM-DD and Tradable as 0/1.
func LoadDir(dir string) (map[string]Chain, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chain dir: %w", err)
	}
	chains := make(map[string]Chain)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".csv")
		c, err := loadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", stem, err)
		}
		chains[stem] = c
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chain files in %s", dir)
	}
	return chains, nil
}

// LoadZip extracts a zip bundle of per-stem chain CSVs into a temporary
// directory and loads it. Chain bundles are how refreshed expiry data is
// distributed.
func LoadZip(path string) (map[string]Chain, error) {
	dir, err := os.MkdirTemp("", "navsim-chains-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := unzip.Extract(path, dir); err != nil {
		return nil, fmt.Errorf("extract chain bundle: %w", err)
	}
	return LoadDir(dir)
}

func loadFile(path string) (Chain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var c Chain
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "symbol") {
				continue
			}
		}
		ct, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		c = append(c, ct)
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("empty chain file %s", path)
	}
	return c.sorted(), nil
}

func parseRow(row []string) (Contract, error) {
	if len(row) < 4 {
		return Contract{}, fmt.Errorf("bad chain row (need Symbol,FirstTradeDate,LastTradeDate,Tradable): %v", row)
	}
	ftd, err := dates.Parse(strings.TrimSpace(row[1]))
	if err != nil {
		return Contract{}, fmt.Errorf("bad first trade date %q: %w", row[1], err)
	}
	ltd, err := dates.Parse(strings.TrimSpace(row[2]))
	if err != nil {
		return Contract{}, fmt.Errorf("bad last trade date %q: %w", row[2], err)
	}
	tradable := strings.TrimSpace(row[3])
	return Contract{
		Symbol:         strings.TrimSpace(row[0]),
		FirstTradeDate: ftd,
		LastTradeDate:  ltd,
		Tradable:       tradable == "1" || strings.EqualFold(tradable, "true"),
	}, nil
}
