package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/fipe"
	"github.com/openfipe/fipe-scraper/internal/scraper"
)

// unitExecutor runs the models -> year-models -> values chain for one work
// unit. One executor serves one execution context (a worker goroutine or the
// sequential loop) and carries that context's API client.
type unitExecutor struct {
	models *scraper.ModelScraper
	values *scraper.ValueScraper
	logger *zap.Logger
}

func newUnitExecutor(api fipe.API, clock fipe.Clock, logger *zap.Logger) *unitExecutor {
	return &unitExecutor{
		models: scraper.NewModelScraper(api, logger),
		values: scraper.NewValueScraper(api, clock, logger),
		logger: logger,
	}
}

// run produces the unit's batch. The model listing failing fails the whole
// unit; a single model or variant failing is recorded and skipped.
func (e *unitExecutor) run(ctx context.Context, unit WorkUnit) (*fipe.ExtractionResult, error) {
	models, err := e.models.Extract(ctx, unit.Period, unit.Brand)
	if err != nil {
		return nil, err
	}

	result := fipe.NewExtractionResult()
	result.ReferencePeriods = append(result.ReferencePeriods, unit.Period)
	result.Brands = append(result.Brands, unit.Brand)

	skippedModels := 0
	for _, model := range models {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		mv, err := e.values.ExtractForModel(ctx, unit.Period, model)
		if err != nil {
			e.logger.Warn("skipping model after failed variant listing",
				zap.String("unit_id", unit.ID),
				zap.String("model", model.Name),
				zap.Error(err),
			)
			skippedModels++
			continue
		}
		if mv.Model.FipeCode != "" {
			result.Models = append(result.Models, mv.Model)
		}
		result.YearModels = append(result.YearModels, mv.YearModels...)
		result.FipeValues = append(result.FipeValues, mv.Values...)
		if mv.Skipped > 0 {
			e.logger.Warn("variants skipped",
				zap.String("unit_id", unit.ID),
				zap.String("model", model.Name),
				zap.Int("skipped", mv.Skipped),
			)
		}
	}

	e.logger.Debug("unit extracted",
		zap.String("unit_id", unit.ID),
		zap.Int("models", len(result.Models)),
		zap.Int("year_models", len(result.YearModels)),
		zap.Int("skipped_models", skippedModels),
	)
	return result, nil
}
