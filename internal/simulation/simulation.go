// Package simulation runs catalog formulas end to end: it binds the caller's
// values, evaluates the formula, and computes the standard fixed-payment
// schedule for the same loan so the two can be compared.
package simulation

import (
	"context"
	"fmt"

	"github.com/iwvelando/loan-formulas/internal/catalog"
	"github.com/iwvelando/loan-formulas/pkg/formula"
	"github.com/iwvelando/loan-formulas/pkg/loans"
	"go.uber.org/zap"
)

// Result holds the outcome of one simulation.
type Result struct {
	FormulaID         string                   `json:"formulaId"`
	FormulaName       string                   `json:"formulaName"`
	FormulaResult     formula.EvaluationResult `json:"formulaResult"`
	Terms             formula.LoanTerms        `json:"terms"`
	ReferenceSchedule []loans.Row              `json:"referenceSchedule"`
	Summary           loans.Summary            `json:"summary"`
}

// Simulate binds values onto f, evaluates it, and builds the reference
// schedule from the loan terms guessed out of values. Errors from binding and
// evaluation are returned unchanged.
func Simulate(f formula.Formula, values map[string]interface{}) (Result, error) {
	evaluation, err := f.Evaluate(values)
	if err != nil {
		return Result{}, err
	}

	terms, err := formula.GuessLoanTerms(values)
	if err != nil {
		return Result{}, err
	}

	rows, err := loans.Schedule(terms.Principal, terms.AnnualRatePercent, terms.TermMonths)
	if err != nil {
		return Result{}, err
	}

	return Result{
		FormulaID:         f.ID,
		FormulaName:       f.Name,
		FormulaResult:     evaluation,
		Terms:             terms,
		ReferenceSchedule: rows,
		Summary:           loans.Summarize(rows),
	}, nil
}

// Simulator runs simulations against a catalog. It holds no mutable state
// of its own and is safe for concurrent use when the reader is.
type Simulator struct {
	logger *zap.Logger
	reader catalog.Reader
}

// New creates a Simulator reading formulas from reader.
func New(logger *zap.Logger, reader catalog.Reader) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{logger: logger, reader: reader}
}

// Catalog returns the reader the simulator fetches formulas from.
func (s *Simulator) Catalog() catalog.Reader {
	return s.reader
}

// Simulate runs an already-loaded formula.
func (s *Simulator) Simulate(f formula.Formula, values map[string]interface{}) (Result, error) {
	result, err := Simulate(f, values)
	if err != nil {
		s.logger.Debug("simulation failed",
			zap.String("op", "simulation.Simulate"),
			zap.String("formula", f.ID),
			zap.Error(err),
		)
		return Result{}, err
	}

	s.logger.Debug(fmt.Sprintf("formula %s evaluated to %.2f, reference payment %.2f",
		f.ID, result.FormulaResult.Value, result.Summary.Payment),
		zap.String("op", "simulation.Simulate"),
	)
	return result, nil
}

// SimulateByID fetches the formula with id and simulates it. Inactive
// formulas are rejected with catalog.ErrInactiveFormula.
func (s *Simulator) SimulateByID(ctx context.Context, id string, values map[string]interface{}) (Result, error) {
	f, err := s.fetchActive(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return s.Simulate(f, values)
}

// EvaluateByID fetches the formula with id and evaluates it without building
// a reference schedule.
func (s *Simulator) EvaluateByID(ctx context.Context, id string, values map[string]interface{}) (formula.EvaluationResult, error) {
	f, err := s.fetchActive(ctx, id)
	if err != nil {
		return formula.EvaluationResult{}, err
	}
	return f.Evaluate(values)
}

// ActiveFormulas lists the formulas available for simulation.
func (s *Simulator) ActiveFormulas(ctx context.Context) ([]formula.Formula, error) {
	formulas, err := s.reader.FetchActiveFormulas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list formulas: %w", err)
	}
	return formulas, nil
}

func (s *Simulator) fetchActive(ctx context.Context, id string) (formula.Formula, error) {
	f, err := s.reader.FetchFormulaByID(ctx, id)
	if err != nil {
		return formula.Formula{}, fmt.Errorf("failed to fetch formula: %w", err)
	}
	if !f.Active {
		return formula.Formula{}, fmt.Errorf("%w: %s", catalog.ErrInactiveFormula, id)
	}
	return f, nil
}
