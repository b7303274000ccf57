// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"

	"github.com/iwvelando/loan-formulas/pkg/formula"
)

// ValidateFormulaDefinition checks a single formula and returns warnings for
// problems that do not stop it from being served.
func ValidateFormulaDefinition(f formula.Formula) ([]string, error) {
	if err := formula.Validate(f); err != nil {
		return nil, err
	}

	var warnings []string
	identifiers, _ := formula.ReferencedIdentifiers(f.Expression)
	referenced := make(map[string]bool, len(identifiers))
	for _, name := range identifiers {
		referenced[name] = true
	}

	for _, v := range f.Variables {
		if v.Required && v.Default != nil {
			warnings = append(warnings, fmt.Sprintf("Formula '%s' variable '%s' is required; its default is never used",
				f.ID, v.Name))
		}
		if !referenced[v.Name] {
			warnings = append(warnings, fmt.Sprintf("Formula '%s' declares variable '%s' but the expression does not use it",
				f.ID, v.Name))
		}
	}

	return warnings, nil
}

// CatalogValidator performs validation across a set of formula definitions
type CatalogValidator struct {
	Formulas []formula.Formula
}

// ValidateAll validates every formula and returns warnings
func (cv *CatalogValidator) ValidateAll() []string {
	var warnings []string

	seen := make(map[string]bool, len(cv.Formulas))
	active := 0
	for _, f := range cv.Formulas {
		if f.ID == "" {
			warnings = append(warnings, fmt.Sprintf("Formula '%s' has no id; a random one is assigned at load", f.Name))
		} else if seen[f.ID] {
			warnings = append(warnings, fmt.Sprintf("Formula id '%s' is declared more than once", f.ID))
		}
		seen[f.ID] = true

		formulaWarnings, err := ValidateFormulaDefinition(f)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Formula '%s' is invalid: %v", f.ID, err))
			continue
		}
		warnings = append(warnings, formulaWarnings...)

		if f.Active {
			active++
		}
	}

	if len(cv.Formulas) > 0 && active == 0 {
		warnings = append(warnings, "No valid active formulas; simulations by id will fail")
	}

	return warnings
}
