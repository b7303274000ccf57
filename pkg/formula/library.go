package formula

import (
	"fmt"
	"sort"

	"github.com/iwvelando/loan-formulas/pkg/calcerr"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/loans"
	"github.com/iwvelando/loan-formulas/pkg/mathutil"
)

// Names of the financial functions callable from formula text.
const (
	FuncPayment   = "calcularCuota"
	FuncTotalPaid = "calcularAmortizacion"
)

type libraryFunc struct {
	arity int
	call  func(args []float64) (float64, error)
}

var library = map[string]libraryFunc{
	// calcularCuota(principal, annualRatePercent, termMonths)
	FuncPayment: {arity: 3, call: func(args []float64) (float64, error) {
		term, err := termArg(FuncPayment, args[2])
		if err != nil {
			return 0, err
		}
		if err := loans.ValidateInputs(args[0], args[1], term); err != nil {
			return 0, err
		}
		return loans.CalculateMonthlyPayment(args[0], args[1], term), nil
	}},
	// calcularAmortizacion(principal, annualRatePercent, termMonths) is the
	// total paid over the full schedule.
	FuncTotalPaid: {arity: 3, call: func(args []float64) (float64, error) {
		term, err := termArg(FuncTotalPaid, args[2])
		if err != nil {
			return 0, err
		}
		return loans.TotalPaid(args[0], args[1], term)
	}},
}

func termArg(fn string, v float64) (int, error) {
	if !mathutil.IsWholeNumber(v) || v < 1 || v > constants.MaxScheduleMonths {
		return 0, calcerr.New(calcerr.KindInvalidTerm, fmt.Sprintf("%v", v),
			fn+" needs a whole number of months within range")
	}
	return int(v), nil
}

// LibraryFunctions lists the function names available to formula text.
func LibraryFunctions() []string {
	names := make([]string, 0, len(library))
	for name := range library {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
