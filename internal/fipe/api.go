package fipe

import (
	"context"
	"time"
)

// Wire types mirror the upstream response shapes. Field names match the
// upstream JSON; additive schema changes are ignored by the decoder.

// ReferenceRow is one entry of the reference table listing.
type ReferenceRow struct {
	Codigo int    `json:"Codigo"`
	Mes    string `json:"Mes"`
}

// ListRow is the generic label/value pair used by the brand, model and
// year-model listings.
type ListRow struct {
	Label string `json:"Label"`
	Value string `json:"Value"`
}

// ModelsPage is the envelope returned by the model listing endpoint.
type ModelsPage struct {
	Modelos []ListRow `json:"Modelos"`
	Anos    []ListRow `json:"Anos"`
}

// ValueRow is the price document for one year-model variant.
type ValueRow struct {
	Valor            string `json:"Valor"`
	Marca            string `json:"Marca"`
	Modelo           string `json:"Modelo"`
	AnoModelo        int    `json:"AnoModelo"`
	Combustivel      string `json:"Combustivel"`
	CodigoFipe       string `json:"CodigoFipe"`
	MesReferencia    string `json:"MesReferencia"`
	Autenticacao     string `json:"Autenticacao"`
	DataConsulta     string `json:"DataConsulta"`
	SiglaCombustivel string `json:"SiglaCombustivel"`
}

// API is the fetch capability consumed by the stage scrapers. Errors are
// classified as TransientError or PermanentError; an empty listing is valid
// data, not an error.
type API interface {
	ReferenceTables(ctx context.Context) ([]ReferenceRow, error)
	Brands(ctx context.Context, periodCode int, vehicle VehicleType) ([]ListRow, error)
	Models(ctx context.Context, periodCode int, vehicle VehicleType, brandCode int) (ModelsPage, error)
	YearModels(ctx context.Context, periodCode int, vehicle VehicleType, brandCode, modelCode int) ([]ListRow, error)
	Value(ctx context.Context, periodCode int, vehicle VehicleType, brandCode, modelCode int, yearCode string) (ValueRow, error)
}

// Clock returns the current time; a seam so tests control timestamps.
type Clock interface {
	Now() time.Time
}
