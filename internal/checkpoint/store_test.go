package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(Config{
		PartialDir: filepath.Join(dir, "partial"),
		FinalPath:  filepath.Join(dir, "fipe_complete.json"),
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func unitBatch(brandName string, brandCode int, period string) *fipe.ExtractionResult {
	r := fipe.NewExtractionResult()
	brand := fipe.Brand{Name: brandName, Code: brandCode, VehicleType: fipe.VehicleTypeCar, InitialPeriod: period}
	model := fipe.Model{Name: "UNO", Code: 123, FipeCode: "001004-9", Brand: brand, VehicleType: fipe.VehicleTypeCar}
	year := fipe.YearModel{Description: "2024 Gasolina", YearCode: "2024-1", Authentication: "tok-" + brandName + "-" + period, Model: model}
	r.ReferencePeriods = append(r.ReferencePeriods, fipe.ReferencePeriod{Period: period, Code: 320})
	r.Brands = append(r.Brands, brand)
	r.Models = append(r.Models, model)
	r.YearModels = append(r.YearModels, year)
	r.FipeValues = append(r.FipeValues, fipe.FipeValue{
		YearModel:       year,
		AveragePrice:    "R$ 52.000,00",
		ReferencePeriod: period,
		FipeCode:        "001004-9",
		Fuel:            "Gasolina",
	})
	return r
}

func TestNew_RejectsMissingLocations(t *testing.T) {
	t.Parallel()

	_, err := New(Config{FinalPath: "out.json"}, zap.NewNop())
	require.Error(t, err)
	_, err = New(Config{PartialDir: t.TempDir()}, zap.NewNop())
	require.Error(t, err)
}

func TestSavePartial_WritesValidDocumentAndOverwrites(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	path, err := store.SavePartial("car_01-2024_21", unitBatch("FIAT", 21, "01/2024"))
	require.NoError(t, err)
	require.FileExists(t, path)

	// A re-run of the same unit replaces the previous batch.
	second := unitBatch("FIAT", 21, "01/2024")
	second.Models = nil
	_, err = store.SavePartial("car_01-2024_21", second)
	require.NoError(t, err)

	paths, err := store.ListPartials()
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got fipe.ExtractionResult
	require.NoError(t, json.Unmarshal(data, &got))
	require.Empty(t, got.Models)
	require.Len(t, got.Brands, 1)

	// No temp files survive an atomic write.
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".tmp-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestSavePartial_RequiresUnitID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.SavePartial("  ", unitBatch("FIAT", 21, "01/2024"))
	require.Error(t, err)
}

func TestConsolidate_MergesAndDeduplicatesAcrossUnits(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	// Same brand scraped at two periods plus a second brand.
	_, err := store.SavePartial("car_01-2024_21", unitBatch("FIAT", 21, "01/2024"))
	require.NoError(t, err)
	_, err = store.SavePartial("car_02-2024_21", unitBatch("FIAT", 21, "02/2024"))
	require.NoError(t, err)
	_, err = store.SavePartial("car_01-2024_23", unitBatch("GM", 23, "01/2024"))
	require.NoError(t, err)

	final, err := store.Consolidate()
	require.NoError(t, err)

	require.Len(t, final.ReferencePeriods, 2)
	// Newest period first in the artifact.
	require.Equal(t, "02/2024", final.ReferencePeriods[0].Period)
	require.Len(t, final.Brands, 2)
	require.Equal(t, "FIAT", final.Brands[0].Name)
	// Both units carry the same fipe code, so one model survives.
	require.Len(t, final.Models, 1)
	require.Len(t, final.FipeValues, 3)
}

func TestConsolidate_IdempotentByteForByte(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.SavePartial("car_01-2024_21", unitBatch("FIAT", 21, "01/2024"))
	require.NoError(t, err)
	_, err = store.SavePartial("car_01-2024_23", unitBatch("GM", 23, "01/2024"))
	require.NoError(t, err)

	_, err = store.Consolidate()
	require.NoError(t, err)
	first, err := os.ReadFile(store.finalPath)
	require.NoError(t, err)

	_, err = store.Consolidate()
	require.NoError(t, err)
	second, err := os.ReadFile(store.finalPath)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestConsolidate_SubsetOfUnitsStillProducesArtifact(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	// Only two of the planned units completed before the run stopped.
	_, err := store.SavePartial("car_01-2024_21", unitBatch("FIAT", 21, "01/2024"))
	require.NoError(t, err)
	_, err = store.SavePartial("car_01-2024_23", unitBatch("GM", 23, "01/2024"))
	require.NoError(t, err)

	final, err := store.Consolidate()
	require.NoError(t, err)
	require.Len(t, final.Brands, 2)
	require.FileExists(t, store.finalPath)
}

func TestConsolidate_NoPartialsWritesEmptyArtifact(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	final, err := store.Consolidate()
	require.NoError(t, err)
	require.Empty(t, final.Brands)
	require.FileExists(t, store.finalPath)

	data, err := os.ReadFile(store.finalPath)
	require.NoError(t, err)
	var got fipe.ExtractionResult
	require.NoError(t, json.Unmarshal(data, &got))
	require.NotNil(t, got.ReferencePeriods)
}

func TestConsolidate_SkipsCorruptPartial(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.SavePartial("car_01-2024_21", unitBatch("FIAT", 21, "01/2024"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.partialDir, "corrupt.json"), []byte("{not json"), 0o600))

	final, err := store.Consolidate()
	require.NoError(t, err)
	require.Len(t, final.Brands, 1)
}

func TestCleanupPartials(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.SavePartial("car_01-2024_21", unitBatch("FIAT", 21, "01/2024"))
	require.NoError(t, err)

	require.NoError(t, store.CleanupPartials())
	paths, err := store.ListPartials()
	require.NoError(t, err)
	require.Empty(t, paths)
}

func TestSanitizeUnitID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "car_01-2024_21", sanitizeUnitID("car_01-2024_21"))
	require.Equal(t, "a-b-c-d", sanitizeUnitID("a/b\\c d"))
}
