// Package cmd defines and implements the CLI commands for the fipe-scraper
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/config"
	"github.com/openfipe/fipe-scraper/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

// newRootCmd creates and configures the root command. Configuration and the
// logger are built in PersistentPreRunE so every subcommand sees them.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fipe-scraper",
		Short: "Extracts vehicle pricing data from the FIPE reference tables",
		Long: `fipe-scraper walks the FIPE API dependency chain (reference periods,
brands, models, year variants, prices), checkpoints each work unit's output
as a partial JSON batch, and consolidates the partials into one final
artifact. Interrupted runs can be resumed with the consolidate command.`,

		SilenceUsage: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				logger.Sync() //nolint:errcheck
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus FIPE_* env)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newConsolidateCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
