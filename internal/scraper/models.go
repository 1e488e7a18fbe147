package scraper

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

// ModelScraper lists the models of one brand, assembling each Model with its
// owning Brand. FipeCode stays empty here; the values stage observes it in
// the first price response and finalizes the record.
type ModelScraper struct {
	api    fipe.API
	logger *zap.Logger
}

// NewModelScraper constructs a ModelScraper.
func NewModelScraper(api fipe.API, logger *zap.Logger) *ModelScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelScraper{api: api, logger: logger.With(zap.Stringer("stage", StageModels))}
}

// Extract lists the models of brand at the given period. Malformed rows are
// skipped individually.
func (s *ModelScraper) Extract(ctx context.Context, period fipe.ReferencePeriod, brand fipe.Brand) ([]fipe.Model, error) {
	page, err := s.api.Models(ctx, period.Code, brand.VehicleType, brand.Code)
	if err != nil {
		return nil, fmt.Errorf("list models %s/%s %s: %w", brand.VehicleType, brand.Name, period.Period, err)
	}

	models := make([]fipe.Model, 0, len(page.Modelos))
	for _, row := range page.Modelos {
		if row.Label == "" {
			s.logger.Warn("skipping model row without Label", zap.String("value", row.Value))
			continue
		}
		code, err := strconv.Atoi(row.Value)
		if err != nil {
			s.logger.Warn("skipping model row with invalid Value",
				zap.String("label", row.Label),
				zap.String("value", row.Value),
				zap.Error(err),
			)
			continue
		}
		models = append(models, fipe.Model{
			Name:        row.Label,
			Code:        code,
			Brand:       brand,
			VehicleType: brand.VehicleType,
		})
	}
	return models, nil
}
