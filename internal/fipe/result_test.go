package fipe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleBrand() Brand {
	return Brand{Name: "FIAT", Code: 21, VehicleType: VehicleTypeCar, InitialPeriod: "01/2024"}
}

func TestMerge_DeduplicatesByNaturalKey(t *testing.T) {
	t.Parallel()

	a := NewExtractionResult()
	a.ReferencePeriods = append(a.ReferencePeriods, ReferencePeriod{Period: "01/2024", Code: 320})
	a.Brands = append(a.Brands, sampleBrand())

	b := NewExtractionResult()
	b.ReferencePeriods = append(b.ReferencePeriods, ReferencePeriod{Period: "01/2024", Code: 320})
	// Same natural key (name, vehicle type), different initial period.
	b.Brands = append(b.Brands, Brand{Name: "FIAT", Code: 21, VehicleType: VehicleTypeCar, InitialPeriod: "02/2024"})
	b.Brands = append(b.Brands, Brand{Name: "FIAT", Code: 104, VehicleType: VehicleTypeBike})

	a.Merge(b)

	require.Len(t, a.ReferencePeriods, 1)
	require.Len(t, a.Brands, 2)
	// First-seen wins on key collision.
	require.Equal(t, "01/2024", a.Brands[0].InitialPeriod)
}

func TestMerge_ModelsYearModelsValues(t *testing.T) {
	t.Parallel()

	brand := sampleBrand()
	model := Model{Name: "UNO", Code: 123, FipeCode: "001004-9", Brand: brand, VehicleType: VehicleTypeCar}
	year := YearModel{Description: "2024 Gasolina", YearCode: "2024-1", Authentication: "abc", Model: model}
	value := FipeValue{YearModel: year, AveragePrice: "R$ 50.000,00", ReferencePeriod: "01/2024"}

	a := NewExtractionResult()
	b := NewExtractionResult()
	b.Models = append(b.Models, model, model)
	b.YearModels = append(b.YearModels, year, year)
	b.FipeValues = append(b.FipeValues, value, value)

	a.Merge(b)
	a.Merge(b)

	require.Len(t, a.Models, 1)
	require.Len(t, a.YearModels, 1)
	require.Len(t, a.FipeValues, 1)
}

func TestMerge_DropsEmptyKeys(t *testing.T) {
	t.Parallel()

	a := NewExtractionResult()
	b := NewExtractionResult()
	b.Models = append(b.Models, Model{Name: "NO-FIPE-CODE", Code: 1, VehicleType: VehicleTypeCar})
	b.YearModels = append(b.YearModels, YearModel{Description: "no auth"})
	b.FipeValues = append(b.FipeValues, FipeValue{ReferencePeriod: "01/2024"})

	a.Merge(b)

	require.Empty(t, a.Models)
	require.Empty(t, a.YearModels)
	require.Empty(t, a.FipeValues)
}

func TestCounts(t *testing.T) {
	t.Parallel()

	r := NewExtractionResult()
	r.Brands = append(r.Brands, sampleBrand())
	counts := r.Counts()
	require.Equal(t, 1, counts["brands"])
	require.Equal(t, 0, counts["models"])
}
