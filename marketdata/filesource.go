package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/quantfold/navsim/dates"
)

// FileSource reads per-symbol daily OHLCV CSV files from a directory.
// Plain <SYMBOL>.csv is tried first, then xz-compressed <SYMBOL>.csv.xz.
// Columns: Date,Open,High,Low,Close,Volume; empty cells parse as NaN.
type FileSource struct {
	dir string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) DailyOHLCV(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	r, closeFn, err := s.open(symbol)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var bars []Bar
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", symbol, err)
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "date") {
				continue
			}
		}
		b, err := parseBarRow(symbol, row)
		if err != nil {
			return nil, err
		}
		if b.Day.Before(start) || b.Day.After(end) {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// open returns a reader for the symbol's file, transparently decompressing
// .csv.xz archives.
func (s *FileSource) open(symbol string) (io.Reader, func() error, error) {
	name := sanitize(symbol)

	plain := filepath.Join(s.dir, name+".csv")
	if f, err := os.Open(plain); err == nil {
		return f, f.Close, nil
	}

	compressed := filepath.Join(s.dir, name+".csv.xz")
	f, err := os.Open(compressed)
	if err != nil {
		return nil, nil, fmt.Errorf("no bar file for %s in %s", symbol, s.dir)
	}
	xr, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open %s: %w", compressed, err)
	}
	return xr, f.Close, nil
}

// sanitize maps a quote symbol to a safe file name. Delayed-data symbols
// carry a "/" prefix that cannot appear in a path element.
func sanitize(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "_")
}

func parseBarRow(symbol string, row []string) (Bar, error) {
	if len(row) < 6 {
		return Bar{}, fmt.Errorf("bad bar row for %s (need Date,Open,High,Low,Close,Volume): %v", symbol, row)
	}
	day, err := dates.Parse(strings.TrimSpace(row[0]))
	if err != nil {
		return Bar{}, fmt.Errorf("bad date %q for %s: %w", row[0], symbol, err)
	}
	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		fields[i] = parseField(row[i+1])
	}
	return Bar{
		Symbol: symbol,
		Day:    day,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}

func parseField(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
