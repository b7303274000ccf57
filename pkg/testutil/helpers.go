// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/loan-formulas/pkg/formula"
)

// AnnuityExpression is the fixed-payment formula written out in full.
const AnnuityExpression = "monto * (tasa/100/12) / (1 - (1 + tasa/100/12) ^ -plazo)"

// AnnuityFormula returns an active formula computing the level monthly
// payment from monto, tasa and plazo.
func AnnuityFormula() formula.Formula {
	return formula.Formula{
		ID:          "cuota-fija",
		Name:        "Cuota fija",
		Description: "Pago mensual de un crédito a tasa fija",
		Active:      true,
		Expression:  AnnuityExpression,
		Variables: []formula.Variable{
			{Name: "monto", Kind: formula.KindNumeric, Required: true, Order: 1, Unit: "MXN", Description: "Monto del préstamo"},
			{Name: "tasa", Kind: formula.KindNumeric, Required: true, Order: 2, Unit: "%", Description: "Tasa anual"},
			{Name: "plazo", Kind: formula.KindNumeric, Required: true, Order: 3, Unit: "meses", Description: "Plazo en meses"},
		},
	}
}

// TotalCostFormula returns an active formula using the library functions and
// an optional fee with a default.
func TotalCostFormula() formula.Formula {
	return formula.Formula{
		ID:         "costo-total",
		Name:       "Costo total",
		Active:     true,
		Expression: "calcularAmortizacion(principal, annualRate, months) + comision",
		Variables: []formula.Variable{
			{Name: "principal", Kind: formula.KindNumeric, Required: true, Order: 1},
			{Name: "annualRate", Kind: formula.KindNumeric, Required: true, Order: 2},
			{Name: "months", Kind: formula.KindNumeric, Required: true, Order: 3},
			{Name: "comision", Kind: formula.KindNumeric, Default: 250.0, Order: 4},
		},
	}
}

// InactiveFormula returns a valid formula that is switched off.
func InactiveFormula() formula.Formula {
	f := AnnuityFormula()
	f.ID = "cuota-anterior"
	f.Name = "Cuota anterior"
	f.Active = false
	return f
}

// Formulas returns the fixture catalog.
func Formulas() []formula.Formula {
	return []formula.Formula{AnnuityFormula(), TotalCostFormula(), InactiveFormula()}
}

// FindFormula finds a formula by id in the formulas slice.
// Returns a pointer to the formula if found, nil otherwise.
func FindFormula(formulas []formula.Formula, id string) *formula.Formula {
	for i := range formulas {
		if formulas[i].ID == id {
			return &formulas[i]
		}
	}
	return nil
}
