package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

// ReferenceScraper lists the monthly reference periods. It is the only stage
// with no scope narrowing.
type ReferenceScraper struct {
	api    fipe.API
	logger *zap.Logger
}

// NewReferenceScraper constructs a ReferenceScraper.
func NewReferenceScraper(api fipe.API, logger *zap.Logger) *ReferenceScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceScraper{api: api, logger: logger.With(zap.Stringer("stage", StageReferences))}
}

// Extract returns every available reference period, normalized to MM/YYYY
// and deduplicated by period string. Rows without a usable month label are
// skipped as single-record permanent failures.
func (s *ReferenceScraper) Extract(ctx context.Context) ([]fipe.ReferencePeriod, error) {
	rows, err := s.api.ReferenceTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reference tables: %w", err)
	}

	periods := make([]fipe.ReferencePeriod, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		period := fipe.NormalizePeriod(row.Mes)
		if _, _, err := fipe.ParsePeriod(period); err != nil {
			s.logger.Warn("skipping malformed reference row",
				zap.String("mes", row.Mes),
				zap.Int("codigo", row.Codigo),
				zap.Error(err),
			)
			continue
		}
		if _, ok := seen[period]; ok {
			continue
		}
		seen[period] = struct{}{}
		periods = append(periods, fipe.ReferencePeriod{Period: period, Code: row.Codigo})
	}

	s.logger.Info("extracted reference periods", zap.Int("count", len(periods)))
	return periods, nil
}
