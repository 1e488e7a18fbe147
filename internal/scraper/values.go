package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

// ValueScraper resolves year-model variants and their prices. This is the
// highest-volume stage: one price call per variant per model.
type ValueScraper struct {
	api    fipe.API
	clock  fipe.Clock
	logger *zap.Logger
}

// NewValueScraper constructs a ValueScraper.
func NewValueScraper(api fipe.API, clock fipe.Clock, logger *zap.Logger) *ValueScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValueScraper{api: api, clock: clock, logger: logger.With(zap.Stringer("stage", StageValues))}
}

// ModelValues is the finalized output for one model: the model record with
// its FipeCode filled in, the year-models carrying their authentication
// tokens, the price observations, and the number of variants skipped.
type ModelValues struct {
	Model      fipe.Model
	YearModels []fipe.YearModel
	Values     []fipe.FipeValue
	Skipped    int
}

// ExtractForModel lists the year variants of model and fetches each price.
// One variant's exhausted retries or malformed document is recorded as a
// skip; the remaining variants proceed. The listing call failing is an error
// for the whole model.
func (s *ValueScraper) ExtractForModel(ctx context.Context, period fipe.ReferencePeriod, model fipe.Model) (ModelValues, error) {
	rows, err := s.api.YearModels(ctx, period.Code, model.VehicleType, model.Brand.Code, model.Code)
	if err != nil {
		return ModelValues{}, fmt.Errorf("list year models %s %s: %w", model.Name, period.Period, err)
	}

	out := ModelValues{Model: model}
	for _, row := range rows {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if row.Value == "" {
			s.logger.Warn("skipping year row without Value",
				zap.String("model", model.Name),
				zap.String("label", row.Label),
			)
			out.Skipped++
			continue
		}

		value, err := s.api.Value(ctx, period.Code, model.VehicleType, model.Brand.Code, model.Code, row.Value)
		if err != nil {
			s.logger.Warn("skipping year variant after failed price fetch",
				zap.String("model", model.Name),
				zap.String("year_code", row.Value),
				zap.Error(err),
			)
			out.Skipped++
			continue
		}
		if value.Autenticacao == "" || value.Valor == "" {
			s.logger.Warn("skipping price document missing required fields",
				zap.String("model", model.Name),
				zap.String("year_code", row.Value),
			)
			out.Skipped++
			continue
		}

		// The fipe code is stable across variants; the first observation
		// finalizes the model record embedded in every entity below.
		if out.Model.FipeCode == "" && value.CodigoFipe != "" {
			out.Model.FipeCode = value.CodigoFipe
		}

		yearModel := fipe.YearModel{
			Description:    row.Label,
			YearCode:       row.Value,
			Authentication: value.Autenticacao,
			Model:          out.Model,
		}
		out.YearModels = append(out.YearModels, yearModel)
		out.Values = append(out.Values, fipe.FipeValue{
			YearModel:       yearModel,
			AveragePrice:    value.Valor,
			QueryTimestamp:  s.clock.Now().Format(time.RFC3339),
			ReferencePeriod: period.Period,
			FipeCode:        value.CodigoFipe,
			Fuel:            value.Combustivel,
		})
	}
	return out, nil
}
