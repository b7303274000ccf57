// Package output provides utilities for formatting and displaying formulas,
// simulation results and amortization schedules.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/iwvelando/loan-formulas/internal/simulation"
	"github.com/iwvelando/loan-formulas/pkg/formula"
	"github.com/iwvelando/loan-formulas/pkg/loans"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettySchedule outputs a human-readable rather than machine-readable table.
func PrettySchedule(w io.Writer, rows []loans.Row, summary loans.Summary) {
	p := message.NewPrinter(language.English)
	dated := len(rows) > 0 && rows[0].DueDate != ""

	if dated {
		fmt.Fprintf(w, "Period | Due     | Payment       | Principal     | Interest      | Balance\n")
		fmt.Fprintf(w, "______ | _______ | _____________ | _____________ | _____________ | _____________\n")
	} else {
		fmt.Fprintf(w, "Period | Payment       | Principal     | Interest      | Balance\n")
		fmt.Fprintf(w, "______ | _____________ | _____________ | _____________ | _____________\n")
	}

	for _, row := range rows {
		if dated {
			_, _ = p.Fprintf(w, "%6d | %s | $%12.2f | $%12.2f | $%12.2f | $%12.2f\n",
				row.Period, row.DueDate, row.Payment, row.Principal, row.Interest, row.Balance)
			continue
		}
		_, _ = p.Fprintf(w, "%6d | $%12.2f | $%12.2f | $%12.2f | $%12.2f\n",
			row.Period, row.Payment, row.Principal, row.Interest, row.Balance)
	}

	fmt.Fprintf(w, "\n")
	_, _ = p.Fprintf(w, "Periods: %d\n", summary.Periods)
	_, _ = p.Fprintf(w, "Payment: $%.2f\n", summary.Payment)
	_, _ = p.Fprintf(w, "Total paid: $%.2f\n", summary.TotalPaid)
	_, _ = p.Fprintf(w, "Total interest: $%.2f\n", summary.TotalInterest)
}

// PrettyFormulas lists formulas with their declared variables.
func PrettyFormulas(w io.Writer, formulas []formula.Formula) {
	for _, f := range formulas {
		status := "active"
		if !f.Active {
			status = "inactive"
		}
		fmt.Fprintf(w, "--- %s (%s, %s) ---\n", f.Name, f.ID, status)
		if f.Description != "" {
			fmt.Fprintf(w, "%s\n", f.Description)
		}
		fmt.Fprintf(w, "Expression: %s\n", f.Expression)
		for _, v := range f.OrderedVariables() {
			var attrs []string
			attrs = append(attrs, string(v.EffectiveKind()))
			if v.Required {
				attrs = append(attrs, "required")
			}
			if v.Unit != "" {
				attrs = append(attrs, "unit "+v.Unit)
			}
			if v.Default != nil {
				attrs = append(attrs, fmt.Sprintf("default %v", v.Default))
			}
			fmt.Fprintf(w, "  %s [%s]\n", v.Name, strings.Join(attrs, ", "))
		}
		fmt.Fprintf(w, "\n")
	}
	fmt.Fprintf(w, "Library functions: %s\n", strings.Join(formula.LibraryFunctions(), ", "))
}

// PrettySimulation outputs a simulation result: the formula value, how each
// variable was bound, the recovered loan terms and the reference schedule.
func PrettySimulation(w io.Writer, result simulation.Result) {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "--- Results for formula %s ---\n", result.FormulaName)
	_, _ = p.Fprintf(w, "Value: %.2f\n", result.FormulaResult.Value)

	names := make([]string, 0, len(result.FormulaResult.Binding.Values))
	for name := range result.FormulaResult.Binding.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %v (%s)\n", name, result.FormulaResult.Binding.Values[name],
			result.FormulaResult.Binding.Sources[name])
	}

	_, _ = p.Fprintf(w, "Loan: $%.2f at %.2f%% for %d months\n\n",
		result.Terms.Principal, result.Terms.AnnualRatePercent, result.Terms.TermMonths)
	PrettySchedule(w, result.ReferenceSchedule, result.Summary)
}
