// Package orchestrator drives the extraction dependency chain across work
// units and routes each unit's output to the checkpoint store.
//
// A work unit is one (vehicle type, reference period, brand) combination.
// Units are independent: each runs the full models -> year-models -> values
// chain with its own API client, so rate pacing is per worker and no mutable
// state is shared. Results always flow back to the coordinator, which is the
// only writer of checkpoints and the in-memory aggregate.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openfipe/fipe-scraper/internal/fipe"
	"github.com/openfipe/fipe-scraper/internal/scraper"
)

// Store is the checkpoint capability the orchestrator depends on.
type Store interface {
	SavePartial(unitID string, result *fipe.ExtractionResult) (string, error)
	Consolidate() (*fipe.ExtractionResult, error)
}

// Options narrow and shape a run. Zero values mean: all periods, all vehicle
// types, parallel execution.
type Options struct {
	StartPeriod  string
	EndPeriod    string
	VehicleTypes []fipe.VehicleType
	Sequential   bool
	MaxWorkers   int
}

// WorkUnit is one (vehicle type, period, brand) extraction task.
type WorkUnit struct {
	ID     string
	Period fipe.ReferencePeriod
	Brand  fipe.Brand
}

// UnitID derives the stable identifier a unit's partial artifact is keyed by.
func UnitID(vehicle fipe.VehicleType, period, brandCode string) string {
	return fmt.Sprintf("%s_%s_%s", vehicle, strings.ReplaceAll(period, "/", "-"), brandCode)
}

// RunResult reports the aggregate plus per-unit accounting for one run.
type RunResult struct {
	Result         *fipe.ExtractionResult
	UnitsTotal     int
	UnitsSucceeded int
	UnitsFailed    int
	FailedUnits    []string
}

// Orchestrator coordinates scrapers, workers and the checkpoint store.
type Orchestrator struct {
	newAPI func() fipe.API
	store  Store
	clock  fipe.Clock
	opts   Options
	logger *zap.Logger
	runID  string
}

// New constructs an Orchestrator. newAPI is called once per execution
// context so every worker owns its own pacing clock.
func New(newAPI func() fipe.API, store Store, clock fipe.Clock, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	if len(opts.VehicleTypes) == 0 {
		opts.VehicleTypes = fipe.AllVehicleTypes()
	}
	runID := uuid.NewString()[:8]
	return &Orchestrator{
		newAPI: newAPI,
		store:  store,
		clock:  clock,
		opts:   opts,
		logger: logger.With(zap.String("run_id", runID)),
		runID:  runID,
	}
}

// Run executes the full extraction: enumerate work units, fan them out, and
// checkpoint each unit's output as it completes. A unit failing never aborts
// the run; the result reports failed unit identifiers for re-invocation.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	units, periods, err := o.enumerateUnits(ctx)
	if err != nil {
		return nil, err
	}

	out := &RunResult{
		Result:     fipe.NewExtractionResult(),
		UnitsTotal: len(units),
	}
	out.Result.ReferencePeriods = periods
	if len(units) == 0 {
		o.logger.Warn("no work units to process",
			zap.String("start_period", o.opts.StartPeriod),
			zap.String("end_period", o.opts.EndPeriod),
		)
		return out, nil
	}

	o.logger.Info("starting extraction",
		zap.Int("units", len(units)),
		zap.Int("periods", len(periods)),
		zap.Bool("sequential", o.opts.Sequential),
		zap.Int("max_workers", o.opts.MaxWorkers),
	)

	// Run owns a derived context so the fatal path below can stop the
	// producers itself instead of relying on the caller's context.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var outcomes <-chan unitOutcome
	if o.opts.Sequential {
		outcomes = o.runSequential(ctx, units)
	} else {
		outcomes = o.runParallel(ctx, units)
	}

	for outcome := range outcomes {
		if outcome.err != nil {
			failure := &fipe.UnitFailure{UnitID: outcome.unit.ID, Err: outcome.err}
			o.logger.Error("work unit failed", zap.String("unit_id", outcome.unit.ID), zap.Error(failure.Err))
			out.UnitsFailed++
			out.FailedUnits = append(out.FailedUnits, outcome.unit.ID)
			continue
		}
		if _, err := o.store.SavePartial(outcome.unit.ID, outcome.result); err != nil {
			// Storage faults are fatal: without checkpoints the run cannot
			// be resumed or consolidated. Stop the producers and drain the
			// channel until they close it, otherwise a worker parked on an
			// outcome send would never exit.
			cancel()
			for range outcomes {
			}
			return nil, eris.Wrapf(err, "checkpoint unit %s", outcome.unit.ID)
		}
		out.Result.Merge(outcome.result)
		out.UnitsSucceeded++
	}

	o.logger.Info("extraction finished",
		zap.Int("units_succeeded", out.UnitsSucceeded),
		zap.Int("units_failed", out.UnitsFailed),
		zap.Any("counts", out.Result.Counts()),
	)
	return out, nil
}

// Finalize consolidates all existing partial batches without re-running
// extraction.
func (o *Orchestrator) Finalize() (*fipe.ExtractionResult, error) {
	result, err := o.store.Consolidate()
	if err != nil {
		return nil, eris.Wrap(err, "finalize")
	}
	return result, nil
}

// enumerateUnits resolves the in-range periods and, per vehicle type, the
// brands valid at the newest in-range period, producing the cartesian unit
// set in deterministic (type, brand, period) order.
func (o *Orchestrator) enumerateUnits(ctx context.Context) ([]WorkUnit, []fipe.ReferencePeriod, error) {
	api := o.newAPI()
	refs := scraper.NewReferenceScraper(api, o.logger)
	all, err := refs.Extract(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "list reference periods")
	}

	periods, err := fipe.FilterPeriods(all, o.opts.StartPeriod, o.opts.EndPeriod)
	if err != nil {
		return nil, nil, eris.Wrap(err, "filter periods")
	}
	if len(periods) == 0 {
		return nil, []fipe.ReferencePeriod{}, nil
	}

	latest, _ := fipe.LatestPeriod(periods)
	brandScraper := scraper.NewBrandScraper(api, o.logger)

	var units []WorkUnit
	for _, vehicle := range o.opts.VehicleTypes {
		brands, err := brandScraper.Extract(ctx, latest, vehicle)
		if err != nil {
			// A vehicle type whose brand listing fails after retries loses
			// its units; the remaining types still run.
			o.logger.Error("brand enumeration failed",
				zap.String("vehicle_type", string(vehicle)),
				zap.Error(err),
			)
			continue
		}
		o.logger.Info("brands enumerated",
			zap.String("vehicle_type", string(vehicle)),
			zap.Int("count", len(brands)),
		)
		for _, brand := range brands {
			for _, period := range periods {
				units = append(units, WorkUnit{
					ID:     UnitID(vehicle, period.Period, fmt.Sprintf("%d", brand.Code)),
					Period: period,
					Brand:  brand,
				})
			}
		}
	}
	return units, periods, nil
}

type unitOutcome struct {
	unit   WorkUnit
	result *fipe.ExtractionResult
	err    error
}

// runSequential processes one unit at a time on a single client.
func (o *Orchestrator) runSequential(ctx context.Context, units []WorkUnit) <-chan unitOutcome {
	outcomes := make(chan unitOutcome, 1)
	go func() {
		defer close(outcomes)
		exec := newUnitExecutor(o.newAPI(), o.clock, o.logger)
		for _, unit := range units {
			if ctx.Err() != nil {
				return
			}
			result, err := exec.run(ctx, unit)
			outcomes <- unitOutcome{unit: unit, result: result, err: err}
		}
	}()
	return outcomes
}

// runParallel fans units out to a bounded worker pool. Each worker owns one
// unit at a time and its own API client; outcomes are handed back over a
// channel, never written into shared state.
func (o *Orchestrator) runParallel(ctx context.Context, units []WorkUnit) <-chan unitOutcome {
	queue := make(chan WorkUnit, len(units))
	for _, unit := range units {
		queue <- unit
	}
	close(queue)

	outcomes := make(chan unitOutcome, o.opts.MaxWorkers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < o.opts.MaxWorkers; i++ {
		g.Go(func() error {
			exec := newUnitExecutor(o.newAPI(), o.clock, o.logger)
			for unit := range queue {
				if ctx.Err() != nil {
					// Stop dispatching; in-flight units already completed
					// their outcome send.
					return nil
				}
				result, err := exec.run(ctx, unit)
				outcomes <- unitOutcome{unit: unit, result: result, err: err}
			}
			return nil
		})
	}
	go func() {
		g.Wait() //nolint:errcheck
		close(outcomes)
	}()
	return outcomes
}
