// Package loans provides fixed-payment loan calculations and amortization
// schedules.
package loans

import (
	"fmt"
	"math"

	"github.com/iwvelando/loan-formulas/pkg/calcerr"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/datetime"
	"github.com/iwvelando/loan-formulas/pkg/mathutil"
	"go.uber.org/zap"
)

// Row holds the values for a single period of an amortization schedule.
type Row struct {
	Period    int     `json:"period"`
	DueDate   string  `json:"dueDate,omitempty"`
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

// Summary aggregates a schedule.
type Summary struct {
	Periods        int     `json:"periods"`
	Payment        float64 `json:"payment"`
	TotalPaid      float64 `json:"totalPaid"`
	TotalInterest  float64 `json:"totalInterest"`
	TotalPrincipal float64 `json:"totalPrincipal"`
}

// MonthlyRate converts an annual nominal rate in percent into the periodic
// monthly rate.
func MonthlyRate(annualRatePercent float64) float64 {
	return annualRatePercent / constants.PercentageMultiplier / constants.MonthsPerYear
}

// CalculateMonthlyPayment calculates the monthly payment for a loan using the
// standard amortization formula. A zero rate degenerates to straight-line
// repayment.
func CalculateMonthlyPayment(principal, annualRatePercent float64, termMonths int) float64 {
	periodicRate := MonthlyRate(annualRatePercent)
	if periodicRate == 0 {
		return principal / float64(termMonths)
	}

	// P*r/(1-(1+r)^-n), written so (1+r)^n never overflows.
	return principal * periodicRate / -math.Expm1(-float64(termMonths)*math.Log1p(periodicRate))
}

// remainingBalance is the balance left after period payments of a level
// payment loan, in closed form so long terms and high rates keep full
// precision.
func remainingBalance(principal, periodicRate float64, termMonths, period int) float64 {
	if period >= termMonths {
		return 0
	}
	if periodicRate == 0 {
		return principal * float64(termMonths-period) / float64(termMonths)
	}
	growth := math.Log1p(periodicRate)
	return principal * math.Expm1(-float64(termMonths-period)*growth) / math.Expm1(-float64(termMonths)*growth)
}

// CalculateInterestPayment calculates the interest portion of a payment.
func CalculateInterestPayment(remainingPrincipal, annualRatePercent float64) float64 {
	return remainingPrincipal * MonthlyRate(annualRatePercent)
}

// ValidateInputs checks loan parameters before any arithmetic is done.
func ValidateInputs(principal, annualRatePercent float64, termMonths int) error {
	if termMonths <= 0 {
		return calcerr.Newf(calcerr.KindInvalidTerm, fmt.Sprintf("%d", termMonths),
			"term must be at least one month")
	}
	if termMonths > constants.MaxScheduleMonths {
		return calcerr.Newf(calcerr.KindInvalidTerm, fmt.Sprintf("%d", termMonths),
			"term must not exceed %d months", constants.MaxScheduleMonths)
	}
	if !mathutil.IsFinite(principal) || principal < 0 {
		return calcerr.Newf(calcerr.KindInvalidInput, "principal",
			"must be a non-negative number, got %v", principal)
	}
	if !mathutil.IsFinite(annualRatePercent) || annualRatePercent < 0 {
		return calcerr.Newf(calcerr.KindInvalidInput, "annualRatePercent",
			"must be a non-negative number, got %v", annualRatePercent)
	}
	// The total paid must stay finite too, so Summarize cannot overflow.
	if payment := CalculateMonthlyPayment(principal, annualRatePercent, termMonths); !mathutil.IsFinite(payment * float64(termMonths)) {
		return calcerr.Newf(calcerr.KindInvalidInput, "payment",
			"%v at %v%% over %d months has no finite payment", principal, annualRatePercent, termMonths)
	}
	return nil
}

// Schedule produces the full fixed-payment schedule for a loan. The result
// always has exactly termMonths rows.
func Schedule(principal, annualRatePercent float64, termMonths int) ([]Row, error) {
	if err := ValidateInputs(principal, annualRatePercent, termMonths); err != nil {
		return nil, err
	}

	payment := CalculateMonthlyPayment(principal, annualRatePercent, termMonths)
	periodicRate := MonthlyRate(annualRatePercent)
	rows := make([]Row, 0, termMonths)
	balance := principal

	for period := 1; period <= termMonths; period++ {
		interest := CalculateInterestPayment(balance, annualRatePercent)
		next := mathutil.Max(0, remainingBalance(principal, periodicRate, termMonths, period))
		principalPortion := balance - next
		balance = next

		rows = append(rows, Row{
			Period:    period,
			Payment:   payment,
			Principal: principalPortion,
			Interest:  interest,
			Balance:   balance,
		})
	}

	return rows, nil
}

// Summarize aggregates the totals of a schedule.
func Summarize(rows []Row) Summary {
	summary := Summary{Periods: len(rows)}
	if len(rows) == 0 {
		return summary
	}

	summary.Payment = rows[0].Payment
	for _, row := range rows {
		summary.TotalPaid += row.Payment
		summary.TotalInterest += row.Interest
		summary.TotalPrincipal += row.Principal
	}
	return summary
}

// TotalPaid returns the sum of all payments of a schedule.
func TotalPaid(principal, annualRatePercent float64, termMonths int) (float64, error) {
	rows, err := Schedule(principal, annualRatePercent, termMonths)
	if err != nil {
		return 0, err
	}
	return Summarize(rows).TotalPaid, nil
}

// Request describes a schedule to generate.
type Request struct {
	Principal         float64 `json:"principal"`
	AnnualRatePercent float64 `json:"rate"`
	TermMonths        int     `json:"term"`
	StartDate         string  `json:"startDate,omitempty"` // YYYY-MM, optional
}

// ScheduleGenerator provides utilities for generating loan amortization schedules
type ScheduleGenerator struct {
	logger *zap.Logger
}

// NewScheduleGenerator creates a new generator instance
func NewScheduleGenerator(logger *zap.Logger) *ScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGenerator{logger: logger}
}

// Generate creates a complete amortization schedule for a request, stamping
// due dates when a start date is given.
func (g *ScheduleGenerator) Generate(req Request) ([]Row, Summary, error) {
	if req.StartDate != "" {
		if err := datetime.ValidateMonth(req.StartDate); err != nil {
			return nil, Summary{}, calcerr.New(calcerr.KindInvalidInput, "startDate", err.Error())
		}
	}

	rows, err := Schedule(req.Principal, req.AnnualRatePercent, req.TermMonths)
	if err != nil {
		g.logger.Debug("rejected schedule request",
			zap.String("op", "loans.Generate"),
			zap.Error(err),
		)
		return nil, Summary{}, err
	}

	if req.StartDate != "" {
		dates, err := datetime.DueDates(req.StartDate, len(rows))
		if err != nil {
			return nil, Summary{}, calcerr.New(calcerr.KindInvalidInput, "startDate", err.Error())
		}
		for i := range rows {
			rows[i].DueDate = dates[i]
		}
	}

	summary := Summarize(rows)
	g.logger.Debug(fmt.Sprintf("generated %d-period schedule with payment %.2f",
		summary.Periods, summary.Payment),
		zap.String("op", "loans.Generate"),
		zap.Float64("principal", req.Principal),
		zap.Float64("rate", req.AnnualRatePercent),
	)
	return rows, summary, nil
}
