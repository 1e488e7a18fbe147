package scraper

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

// BrandScraper lists vehicle brands. Brand availability is tied to a
// reference period, so every extraction is scoped to one period code.
type BrandScraper struct {
	api    fipe.API
	logger *zap.Logger
}

// NewBrandScraper constructs a BrandScraper.
func NewBrandScraper(api fipe.API, logger *zap.Logger) *BrandScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrandScraper{api: api, logger: logger.With(zap.Stringer("stage", StageBrands))}
}

// Extract lists the brands of one vehicle type at one reference period.
// A row with an unparseable code is skipped, not fatal to the batch.
func (s *BrandScraper) Extract(ctx context.Context, period fipe.ReferencePeriod, vehicle fipe.VehicleType) ([]fipe.Brand, error) {
	rows, err := s.api.Brands(ctx, period.Code, vehicle)
	if err != nil {
		return nil, fmt.Errorf("list brands %s %s: %w", vehicle, period.Period, err)
	}

	brands := make([]fipe.Brand, 0, len(rows))
	seen := make(map[fipe.BrandKey]struct{}, len(rows))
	for _, row := range rows {
		brand, err := brandFromRow(row, vehicle, period.Period)
		if err != nil {
			s.logger.Warn("skipping malformed brand row",
				zap.String("label", row.Label),
				zap.String("value", row.Value),
				zap.Error(err),
			)
			continue
		}
		if _, ok := seen[brand.Key()]; ok {
			continue
		}
		seen[brand.Key()] = struct{}{}
		brands = append(brands, brand)
	}
	return brands, nil
}

// ExtractAll walks the given periods oldest-first across the vehicle types
// and returns every distinct brand with the first period it appeared in.
func (s *BrandScraper) ExtractAll(ctx context.Context, periods []fipe.ReferencePeriod, vehicles []fipe.VehicleType) ([]fipe.Brand, error) {
	sorted := make([]fipe.ReferencePeriod, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool {
		return fipe.ComparePeriods(sorted[i].Period, sorted[j].Period) < 0
	})

	var brands []fipe.Brand
	seen := make(map[fipe.BrandKey]struct{})
	for _, period := range sorted {
		for _, vehicle := range vehicles {
			batch, err := s.Extract(ctx, period, vehicle)
			if err != nil {
				s.logger.Error("brand listing failed",
					zap.String("period", period.Period),
					zap.String("vehicle_type", string(vehicle)),
					zap.Error(err),
				)
				continue
			}
			for _, brand := range batch {
				if _, ok := seen[brand.Key()]; ok {
					continue
				}
				seen[brand.Key()] = struct{}{}
				brands = append(brands, brand)
			}
		}
	}

	s.logger.Info("extracted brands", zap.Int("count", len(brands)))
	return brands, nil
}

func brandFromRow(row fipe.ListRow, vehicle fipe.VehicleType, initialPeriod string) (fipe.Brand, error) {
	if row.Label == "" {
		return fipe.Brand{}, fipe.Permanent("brand row", fmt.Errorf("missing Label"))
	}
	code, err := strconv.Atoi(row.Value)
	if err != nil {
		return fipe.Brand{}, fipe.Permanent("brand row", fmt.Errorf("invalid Value %q: %w", row.Value, err))
	}
	return fipe.Brand{
		Name:          row.Label,
		Code:          code,
		VehicleType:   vehicle,
		InitialPeriod: initialPeriod,
	}, nil
}
