package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/navsim/backtest"
	"github.com/quantfold/navsim/broker"
	"github.com/quantfold/navsim/chain"
	"github.com/quantfold/navsim/config"
	"github.com/quantfold/navsim/forex"
	"github.com/quantfold/navsim/instrument"
	"github.com/quantfold/navsim/journal"
	"github.com/quantfold/navsim/margin"
	"github.com/quantfold/navsim/marketdata"
	"github.com/quantfold/navsim/strategy"
)

var cfgPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest described by a config file",
	Long: `Run loads a YAML or JSON configuration, replays the configured day
range against file-based market data and prints the summary statistics.

Example:
  navsim run -c es-long.yaml`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to run configuration (required)")
	runCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Data.InstrumentOverlay != "" {
		if err := instrument.MergeOverlay(cfg.Data.InstrumentOverlay); err != nil {
			return err
		}
	}

	var chains map[string]chain.Chain
	if cfg.Data.ChainZip != "" {
		chains, err = chain.LoadZip(cfg.Data.ChainZip)
	} else {
		chains, err = chain.LoadDir(cfg.Data.ChainDir)
	}
	if err != nil {
		return err
	}

	resolver := chain.NewResolver(chains)
	resolver.SetMinLookahead(cfg.Backtest.MinLookaheadDays)

	source := marketdata.NewFileSource(cfg.Data.BarsDir)
	md := marketdata.New(source, resolver)
	fx := forex.New(source)
	mg := margin.New(md, fx, resolver)

	b := broker.New(broker.Config{
		Cash:    cfg.Backtest.Cash,
		Live:    cfg.Backtest.Live,
		NoCheck: cfg.Backtest.NoCheck,
	}, md, fx, mg, resolver)

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
		b.SetJournal(j)
	}

	strat, err := strategy.ByName(cfg.Backtest.Strategy, strategy.Params{
		Stems:             cfg.Backtest.Stems,
		Leverage:          cfg.Backtest.Leverage,
		NumberOfPositions: cfg.Backtest.NumberOfPositions,
	})
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	start, end, err := cfg.Window()
	if err != nil {
		return err
	}
	bt := backtest.New(backtest.Config{
		Stems: cfg.Backtest.Stems,
		Start: start,
		End:   end,
	}, b, md, fx, resolver, strat, cfg.Backtest.Cash)
	if j != nil {
		bt.SetJournal(j)
	}

	result, err := bt.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Backtest complete (%d trading days, %d executions)\n",
		len(result.NAV), len(result.Executions))
	fmt.Printf("  Final NAV: %.2f\n", result.FinalNAV)
	fmt.Printf("  Mean:      %.4f\n", result.Mean)
	fmt.Printf("  Std:       %.4f\n", result.Std)
	fmt.Printf("  Sharpe:    %.4f\n", result.Sharpe)
	fmt.Printf("  Kelly:     %.4f\n", result.Kelly)
	return nil
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "csv":
		return journal.NewCSV(cfg.ExecutionsFile, cfg.NAVFile)
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	case "parquet":
		return journal.NewParquet(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}
