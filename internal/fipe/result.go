package fipe

// ExtractionResult aggregates every entity kind produced by a scraping pass.
// It is also the document shape of partial and final JSON artifacts.
type ExtractionResult struct {
	ReferencePeriods []ReferencePeriod `json:"reference_periods"`
	Brands           []Brand           `json:"brands"`
	Models           []Model           `json:"models"`
	YearModels       []YearModel       `json:"year_models"`
	FipeValues       []FipeValue       `json:"fipe_values"`
}

// NewExtractionResult returns an empty aggregate with non-nil collections so
// the JSON form always carries all five arrays.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		ReferencePeriods: []ReferencePeriod{},
		Brands:           []Brand{},
		Models:           []Model{},
		YearModels:       []YearModel{},
		FipeValues:       []FipeValue{},
	}
}

// Merge folds other into r, deduplicating by natural key. Entities already
// present win; entities with an empty key are dropped rather than merged.
func (r *ExtractionResult) Merge(other *ExtractionResult) {
	if other == nil {
		return
	}

	seenPeriods := make(map[string]struct{}, len(r.ReferencePeriods))
	for _, p := range r.ReferencePeriods {
		seenPeriods[p.Key()] = struct{}{}
	}
	for _, p := range other.ReferencePeriods {
		if p.Period == "" {
			continue
		}
		if _, ok := seenPeriods[p.Key()]; ok {
			continue
		}
		seenPeriods[p.Key()] = struct{}{}
		r.ReferencePeriods = append(r.ReferencePeriods, p)
	}

	seenBrands := make(map[BrandKey]struct{}, len(r.Brands))
	for _, b := range r.Brands {
		seenBrands[b.Key()] = struct{}{}
	}
	for _, b := range other.Brands {
		if b.Name == "" {
			continue
		}
		if _, ok := seenBrands[b.Key()]; ok {
			continue
		}
		seenBrands[b.Key()] = struct{}{}
		r.Brands = append(r.Brands, b)
	}

	seenModels := make(map[ModelKey]struct{}, len(r.Models))
	for _, m := range r.Models {
		seenModels[m.Key()] = struct{}{}
	}
	for _, m := range other.Models {
		if m.FipeCode == "" {
			continue
		}
		if _, ok := seenModels[m.Key()]; ok {
			continue
		}
		seenModels[m.Key()] = struct{}{}
		r.Models = append(r.Models, m)
	}

	seenYears := make(map[string]struct{}, len(r.YearModels))
	for _, y := range r.YearModels {
		seenYears[y.Key()] = struct{}{}
	}
	for _, y := range other.YearModels {
		if y.Authentication == "" {
			continue
		}
		if _, ok := seenYears[y.Key()]; ok {
			continue
		}
		seenYears[y.Key()] = struct{}{}
		r.YearModels = append(r.YearModels, y)
	}

	seenValues := make(map[ValueKey]struct{}, len(r.FipeValues))
	for _, v := range r.FipeValues {
		seenValues[v.Key()] = struct{}{}
	}
	for _, v := range other.FipeValues {
		if v.YearModel.Authentication == "" {
			continue
		}
		if _, ok := seenValues[v.Key()]; ok {
			continue
		}
		seenValues[v.Key()] = struct{}{}
		r.FipeValues = append(r.FipeValues, v)
	}
}

// Counts summarizes the aggregate for logs and run reports.
func (r *ExtractionResult) Counts() map[string]int {
	return map[string]int{
		"reference_periods": len(r.ReferencePeriods),
		"brands":            len(r.Brands),
		"models":            len(r.Models),
		"year_models":       len(r.YearModels),
		"fipe_values":       len(r.FipeValues),
	}
}
