package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/checkpoint"
)

// newConsolidateCmd creates the 'consolidate' subcommand, which rebuilds the
// final artifact from existing partial batches without extracting anything.
// This is the recovery path after an interrupted run.
func newConsolidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge existing partial batches into the final artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := checkpoint.New(checkpoint.Config{
				PartialDir: cfg.Output.PartialDir,
				FinalPath:  cfg.Output.FinalFile,
			}, logger)
			if err != nil {
				return eris.Wrap(err, "consolidate: init checkpoint store")
			}

			result, err := store.Consolidate()
			if err != nil {
				return eris.Wrap(err, "consolidate")
			}

			logger.Info("consolidation complete",
				zap.String("path", cfg.Output.FinalFile),
				zap.Any("counts", result.Counts()),
			)

			if cleanup, _ := cmd.Flags().GetBool("cleanup"); cleanup {
				if err := store.CleanupPartials(); err != nil {
					return eris.Wrap(err, "consolidate: cleanup partials")
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("cleanup", false, "remove partial batches after consolidation")
	return cmd
}
