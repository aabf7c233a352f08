package instrument

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MergeOverlay loads per-stem definitions from a YAML file and merges them
// over the built-in table. Intended to run once at startup, before any
// backtest touches the table.
//
// File layout:
//
//	ES:
//	  currency: USD
//	  full_point_value: 50
//	  overnight_initial: 13200
//	  ...
func MergeOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read instrument overlay: %w", err)
	}

	overlay := map[string]Definition{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse instrument overlay: %w", err)
	}

	for stem, def := range overlay {
		def.Stem = stem
		if def.ReutersStem == "" {
			def.ReutersStem = stem
		}
		if def.Currency == "" {
			return fmt.Errorf("instrument overlay %s: currency is required", stem)
		}
		if def.FullPointValue <= 0 {
			return fmt.Errorf("instrument overlay %s: full_point_value must be positive", stem)
		}
		Definitions[stem] = def
	}
	return nil
}
