// Package checkpoint persists per-unit partial batches and consolidates them
// into the final artifact.
//
// Every partial is one self-contained JSON document keyed by its work unit
// identifier. Writes go to a temp file first and are renamed into place, so a
// reader never observes a half-written batch. Consolidation reads every
// partial, deduplicates by natural key and writes the final document; running
// it twice with no new partials yields the same artifact.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openfipe/fipe-scraper/internal/fipe"
)

// Config sets the storage locations for partial and final artifacts.
type Config struct {
	PartialDir string `mapstructure:"partial_dir"`
	FinalPath  string `mapstructure:"final_path"`
}

// Store writes partial batches and the consolidated final artifact.
type Store struct {
	partialDir string
	finalPath  string
	logger     *zap.Logger
}

// New validates the storage locations and returns a Store. An unusable
// checkpoint directory is a fatal configuration fault.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.PartialDir) == "" {
		return nil, eris.New("partial directory is required")
	}
	if strings.TrimSpace(cfg.FinalPath) == "" {
		return nil, eris.New("final artifact path is required")
	}

	if err := ensureDir(cfg.PartialDir); err != nil {
		return nil, eris.Wrap(err, "checkpoint: partial dir")
	}
	if err := ensureDir(filepath.Dir(cfg.FinalPath)); err != nil {
		return nil, eris.Wrap(err, "checkpoint: final dir")
	}

	// Probe writability up front so the run fails before any network work.
	probe := filepath.Join(cfg.PartialDir, ".writable")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, eris.Wrap(err, "checkpoint: partial dir not writable")
	}
	if err := os.Remove(probe); err != nil {
		return nil, eris.Wrap(err, "checkpoint: remove probe file")
	}

	return &Store{
		partialDir: cfg.PartialDir,
		finalPath:  cfg.FinalPath,
		logger:     logger,
	}, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0o750)
	default:
		return err
	}
}

// SavePartial writes one unit's batch, overwriting any previous batch for
// the same unit. Returns the file path.
func (s *Store) SavePartial(unitID string, result *fipe.ExtractionResult) (string, error) {
	if strings.TrimSpace(unitID) == "" {
		return "", eris.New("unit id is required")
	}
	path := filepath.Join(s.partialDir, sanitizeUnitID(unitID)+".json")
	if err := writeJSONAtomic(path, result); err != nil {
		return "", eris.Wrapf(err, "save partial %s", unitID)
	}
	s.logger.Debug("partial saved", zap.String("unit_id", unitID), zap.String("path", path))
	return path, nil
}

// ListPartials enumerates the saved partial batches, sorted by path.
func (s *Store) ListPartials() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.partialDir, "*.json"))
	if err != nil {
		return nil, eris.Wrap(err, "list partials")
	}
	sort.Strings(paths)
	return paths, nil
}

// Consolidate merges every partial batch into one deduplicated result and
// writes the final artifact. With no partials present it still writes an
// empty artifact so finalize-only runs always produce the file.
func (s *Store) Consolidate() (*fipe.ExtractionResult, error) {
	paths, err := s.ListPartials()
	if err != nil {
		return nil, err
	}

	final := fipe.NewExtractionResult()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read partial %s", path)
		}
		var batch fipe.ExtractionResult
		if err := json.Unmarshal(data, &batch); err != nil {
			s.logger.Error("skipping unreadable partial", zap.String("path", path), zap.Error(err))
			continue
		}
		final.Merge(&batch)
	}

	sortResult(final)

	if err := writeJSONAtomic(s.finalPath, final); err != nil {
		return nil, eris.Wrap(err, "write final artifact")
	}
	s.logger.Info("final artifact written",
		zap.String("path", s.finalPath),
		zap.Int("partials", len(paths)),
		zap.Any("counts", final.Counts()),
	)
	return final, nil
}

// CleanupPartials removes every partial batch, typically after a successful
// consolidation.
func (s *Store) CleanupPartials() error {
	paths, err := s.ListPartials()
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return eris.Wrapf(err, "remove partial %s", path)
		}
	}
	s.logger.Info("partials removed", zap.Int("count", len(paths)))
	return nil
}

// sortResult orders the collections deterministically so consolidation is
// idempotent byte for byte: periods newest first, brands and models by
// (vehicle type, name).
func sortResult(r *fipe.ExtractionResult) {
	sort.Slice(r.ReferencePeriods, func(i, j int) bool {
		return fipe.ComparePeriods(r.ReferencePeriods[i].Period, r.ReferencePeriods[j].Period) > 0
	})
	sort.Slice(r.Brands, func(i, j int) bool {
		a, b := r.Brands[i], r.Brands[j]
		if a.VehicleType != b.VehicleType {
			return a.VehicleType < b.VehicleType
		}
		return a.Name < b.Name
	})
	sort.Slice(r.Models, func(i, j int) bool {
		a, b := r.Models[i], r.Models[j]
		if a.VehicleType != b.VehicleType {
			return a.VehicleType < b.VehicleType
		}
		if a.Brand.Name != b.Brand.Name {
			return a.Brand.Name < b.Brand.Name
		}
		return a.Name < b.Name
	})
	sort.Slice(r.YearModels, func(i, j int) bool {
		return r.YearModels[i].Authentication < r.YearModels[j].Authentication
	})
	sort.Slice(r.FipeValues, func(i, j int) bool {
		a, b := r.FipeValues[i].Key(), r.FipeValues[j].Key()
		if a.Authentication != b.Authentication {
			return a.Authentication < b.Authentication
		}
		return a.ReferencePeriod < b.ReferencePeriod
	})
}

// sanitizeUnitID keeps unit-derived filenames flat and filesystem safe.
func sanitizeUnitID(unitID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		}
		return r
	}, unitID)
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmpName)    //nolint:errcheck
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
