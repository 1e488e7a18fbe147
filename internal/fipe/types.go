// Package fipe defines the record model shared across subsystems.
package fipe

import (
	"fmt"
	"strings"
)

// VehicleType identifies one of the three vehicle categories tracked by the
// FIPE reference tables.
type VehicleType string

// Vehicle type values threaded through every entity of a work unit.
const (
	VehicleTypeCar   VehicleType = "car"
	VehicleTypeBike  VehicleType = "bike"
	VehicleTypeTruck VehicleType = "truck"
)

// Code returns the numeric code the upstream API uses for the type.
func (t VehicleType) Code() int {
	switch t {
	case VehicleTypeCar:
		return 1
	case VehicleTypeBike:
		return 2
	case VehicleTypeTruck:
		return 3
	}
	return 0
}

// Valid reports whether the value is one of the known vehicle types.
func (t VehicleType) Valid() bool {
	return t.Code() != 0
}

// AllVehicleTypes returns the full set in upstream code order.
func AllVehicleTypes() []VehicleType {
	return []VehicleType{VehicleTypeCar, VehicleTypeBike, VehicleTypeTruck}
}

// ParseVehicleType converts a user-supplied string into a VehicleType.
// Portuguese aliases are accepted since the upstream service is Brazilian.
func ParseVehicleType(s string) (VehicleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car", "carro":
		return VehicleTypeCar, nil
	case "bike", "moto":
		return VehicleTypeBike, nil
	case "truck", "caminhao", "caminhão":
		return VehicleTypeTruck, nil
	}
	return "", fmt.Errorf("invalid vehicle type %q (want car, bike or truck)", s)
}

// ReferencePeriod is one monthly FIPE reference table. Period is the MM/YYYY
// form; Code is the API-internal table identifier.
type ReferencePeriod struct {
	Period string `json:"period"`
	Code   int    `json:"code"`
}

// Key returns the natural key of the period.
func (p ReferencePeriod) Key() string {
	return p.Period
}

// Brand is a vehicle manufacturer as listed for one vehicle type.
// InitialPeriod records the earliest period the brand was observed at.
type Brand struct {
	Name          string      `json:"name"`
	Code          int         `json:"code"`
	VehicleType   VehicleType `json:"vehicle_type"`
	InitialPeriod string      `json:"initial_period,omitempty"`
}

// BrandKey uniquely identifies a brand within a vehicle type.
type BrandKey struct {
	Name        string
	VehicleType VehicleType
}

// Key returns the natural key of the brand.
func (b Brand) Key() BrandKey {
	return BrandKey{Name: b.Name, VehicleType: b.VehicleType}
}

// Model is one vehicle model. FipeCode is the cross-period stable identifier;
// it is empty until the values stage observes it in a price response.
type Model struct {
	Name        string      `json:"name"`
	Code        int         `json:"code"`
	FipeCode    string      `json:"fipe_code"`
	Brand       Brand       `json:"brand"`
	VehicleType VehicleType `json:"vehicle_type"`
}

// ModelKey uniquely identifies a model across brands of one vehicle type.
type ModelKey struct {
	FipeCode    string
	VehicleType VehicleType
}

// Key returns the natural key of the model.
func (m Model) Key() ModelKey {
	return ModelKey{FipeCode: m.FipeCode, VehicleType: m.VehicleType}
}

// YearModel is one year/fuel variant of a model. Authentication is the opaque
// token returned by the price endpoint and is required to re-query it.
type YearModel struct {
	Description    string `json:"description"`
	YearCode       string `json:"year_code"`
	Authentication string `json:"authentication"`
	Model          Model  `json:"model"`
}

// Key returns the natural key of the year-model.
func (y YearModel) Key() string {
	return y.Authentication
}

// FipeValue is one price observation for a year-model under one reference
// period. AveragePrice keeps the upstream currency formatting.
type FipeValue struct {
	YearModel       YearModel `json:"year_model"`
	AveragePrice    string    `json:"average_price"`
	QueryTimestamp  string    `json:"query_timestamp"`
	ReferencePeriod string    `json:"reference_period"`
	FipeCode        string    `json:"fipe_code"`
	Fuel            string    `json:"fuel"`
}

// ValueKey uniquely identifies a price observation.
type ValueKey struct {
	Authentication  string
	ReferencePeriod string
}

// Key returns the natural key of the value.
func (v FipeValue) Key() ValueKey {
	return ValueKey{
		Authentication:  v.YearModel.Authentication,
		ReferencePeriod: v.ReferencePeriod,
	}
}
