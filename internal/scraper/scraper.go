// Package scraper turns API responses into validated records, one scraper
// per level of the extraction dependency chain.
package scraper

// Stage identifies one of the four extraction levels.
type Stage int

// Extraction stages in dependency order.
const (
	StageReferences Stage = iota
	StageBrands
	StageModels
	StageValues
)

// String names the stage for logs.
func (s Stage) String() string {
	switch s {
	case StageReferences:
		return "references"
	case StageBrands:
		return "brands"
	case StageModels:
		return "models"
	case StageValues:
		return "values"
	}
	return "unknown"
}
