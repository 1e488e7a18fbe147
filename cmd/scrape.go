package cmd

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/checkpoint"
	"github.com/openfipe/fipe-scraper/internal/client"
	"github.com/openfipe/fipe-scraper/internal/clock/system"
	"github.com/openfipe/fipe-scraper/internal/config"
	"github.com/openfipe/fipe-scraper/internal/fipe"
	"github.com/openfipe/fipe-scraper/internal/orchestrator"
)

// newScrapeCmd creates the 'scrape' subcommand, which runs the full
// extraction and then consolidates the partial batches.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run the FIPE extraction",
		Long: `Runs the extraction across every (vehicle type, period, brand) work
unit in scope. Each unit's output is checkpointed as it completes, so an
interrupted run loses at most the in-flight units; re-running the same
filters overwrites those units' partials.`,
		RunE: runScrapeCommand,
	}

	cmd.Flags().String("start-period", "", "oldest period to extract, MM/YYYY (default: no lower bound)")
	cmd.Flags().String("end-period", "", "newest period to extract, MM/YYYY (default: no upper bound)")
	cmd.Flags().String("types", "", "comma-separated vehicle types: car,bike,truck (default: all)")
	cmd.Flags().Bool("sequential", false, "process one work unit at a time")
	cmd.Flags().Bool("cleanup", false, "remove partial batches after consolidation")
	return cmd
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := parseScrapeOpts(cmd)
	if err != nil {
		return err
	}

	store, err := checkpoint.New(checkpoint.Config{
		PartialDir: cfg.Output.PartialDir,
		FinalPath:  cfg.Output.FinalFile,
	}, logger)
	if err != nil {
		return eris.Wrap(err, "scrape: init checkpoint store")
	}

	orch := orchestrator.New(apiFactory(cfg), store, system.New(), opts, logger)

	run, err := orch.Run(ctx)
	if err != nil {
		return eris.Wrap(err, "scrape")
	}

	logger.Info("run complete",
		zap.Int("units_total", run.UnitsTotal),
		zap.Int("units_succeeded", run.UnitsSucceeded),
		zap.Int("units_failed", run.UnitsFailed),
		zap.Strings("failed_units", run.FailedUnits),
	)

	if _, err := orch.Finalize(); err != nil {
		return eris.Wrap(err, "scrape: consolidate")
	}

	if cleanup, _ := cmd.Flags().GetBool("cleanup"); cleanup {
		if err := store.CleanupPartials(); err != nil {
			return eris.Wrap(err, "scrape: cleanup partials")
		}
	}
	return nil
}

// apiFactory returns the per-worker client constructor. Each call builds a
// fresh client so rate pacing stays per execution context.
func apiFactory(cfg config.Config) func() fipe.API {
	return func() fipe.API {
		return client.New(client.Config{
			BaseURL:              cfg.API.BaseURL,
			UserAgent:            cfg.API.UserAgent,
			Referer:              cfg.API.Referer,
			Timeout:              cfg.API.Timeout(),
			MaxRetries:           cfg.API.MaxRetries,
			InitialBackoff:       cfg.API.InitialBackoff(),
			MaxBackoff:           cfg.API.MaxBackoff(),
			BackoffMultiplier:    cfg.API.BackoffMultiplier,
			DelayBetweenRequests: cfg.API.RequestDelay(),
		}, logger)
	}
}

// parseScrapeOpts extracts orchestrator.Options from the command flags,
// falling back to configured defaults.
func parseScrapeOpts(cmd *cobra.Command) (orchestrator.Options, error) {
	startPeriod, _ := cmd.Flags().GetString("start-period")
	endPeriod, _ := cmd.Flags().GetString("end-period")
	typesStr, _ := cmd.Flags().GetString("types")
	sequential, _ := cmd.Flags().GetBool("sequential")

	opts := orchestrator.Options{
		StartPeriod: startPeriod,
		EndPeriod:   endPeriod,
		Sequential:  sequential || cfg.Scraper.Sequential,
		MaxWorkers:  cfg.Scraper.MaxWorkers,
	}

	if typesStr != "" {
		for _, raw := range strings.Split(typesStr, ",") {
			vt, err := fipe.ParseVehicleType(raw)
			if err != nil {
				return orchestrator.Options{}, err
			}
			opts.VehicleTypes = append(opts.VehicleTypes, vt)
		}
	}
	return opts, nil
}
