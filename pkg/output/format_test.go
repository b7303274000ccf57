package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iwvelando/loan-formulas/internal/simulation"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/formula"
	"github.com/iwvelando/loan-formulas/pkg/loans"
	"github.com/xuri/excelize/v2"
)

func exampleSchedule(t *testing.T) ([]loans.Row, loans.Summary) {
	t.Helper()
	rows, err := loans.Schedule(100000, 12, 12)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	return rows, loans.Summarize(rows)
}

func TestWriteScheduleCSV(t *testing.T) {
	rows, err := loans.Schedule(1200, 0, 3)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteScheduleCSV(&buf, rows); err != nil {
		t.Fatalf("WriteScheduleCSV() error = %v", err)
	}

	expected := "period,payment,principal,interest,balance\n" +
		"1,400.00,400.00,0.00,800.00\n" +
		"2,400.00,400.00,0.00,400.00\n" +
		"3,400.00,400.00,0.00,0.00\n"
	if buf.String() != expected {
		t.Errorf("WriteScheduleCSV() =\n%s\nexpected\n%s", buf.String(), expected)
	}
}

func TestWriteScheduleCSVExampleLoan(t *testing.T) {
	rows, _ := exampleSchedule(t)

	var buf bytes.Buffer
	if err := WriteScheduleCSV(&buf, rows); err != nil {
		t.Fatalf("WriteScheduleCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 13 {
		t.Fatalf("WriteScheduleCSV() wrote %d lines, expected 13", len(lines))
	}
	if lines[1] != "1,8884.88,7884.88,1000.00,92115.12" {
		t.Errorf("First row = %q", lines[1])
	}
	if !strings.HasSuffix(lines[12], ",0.00") || !strings.HasPrefix(lines[12], "12,8884.88,") {
		t.Errorf("Last row = %q", lines[12])
	}
	if strings.Contains(buf.String(), "\r") {
		t.Errorf("WriteScheduleCSV() used CRLF line endings")
	}
}

func TestWriteScheduleCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteScheduleCSV(&buf, nil); err != nil {
		t.Fatalf("WriteScheduleCSV() error = %v", err)
	}
	if buf.String() != "period,payment,principal,interest,balance\n" {
		t.Errorf("WriteScheduleCSV() = %q, expected header only", buf.String())
	}
}

func TestPrettySchedule(t *testing.T) {
	rows, summary := exampleSchedule(t)

	var buf bytes.Buffer
	PrettySchedule(&buf, rows, summary)
	output := buf.String()

	if !strings.Contains(output, "Period | Payment       | Principal     | Interest      | Balance") {
		t.Errorf("PrettySchedule missing table header")
	}
	if !strings.Contains(output, "8,884.88") {
		t.Errorf("PrettySchedule missing formatted payment")
	}
	if !strings.Contains(output, "Payment: $8,884.88") {
		t.Errorf("PrettySchedule missing summary payment, got %q", output)
	}
	if !strings.Contains(output, "Periods: 12") {
		t.Errorf("PrettySchedule missing period count")
	}
}

func TestPrettyScheduleWithDueDates(t *testing.T) {
	rows, summary, err := loans.NewScheduleGenerator(nil).Generate(loans.Request{
		Principal:         1200,
		AnnualRatePercent: 0,
		TermMonths:        2,
		StartDate:         "2026-12",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var buf bytes.Buffer
	PrettySchedule(&buf, rows, summary)
	output := buf.String()

	if !strings.Contains(output, "| Due     |") {
		t.Errorf("PrettySchedule missing due date column")
	}
	if !strings.Contains(output, "2026-12") || !strings.Contains(output, "2027-01") {
		t.Errorf("PrettySchedule missing due dates, got %q", output)
	}
}

func TestPrettyFormulas(t *testing.T) {
	formulas := []formula.Formula{
		{
			ID:         "cuota",
			Name:       "Cuota fija",
			Active:     true,
			Expression: "calcularCuota(monto, tasa, plazo)",
			Variables: []formula.Variable{
				{Name: "plazo", Kind: formula.KindNumeric, Required: true, Order: 3, Unit: "meses"},
				{Name: "monto", Kind: formula.KindNumeric, Required: true, Order: 1},
				{Name: "tasa", Order: 2, Default: 12},
			},
		},
		{ID: "old", Name: "Retired", Expression: "1"},
	}

	var buf bytes.Buffer
	PrettyFormulas(&buf, formulas)
	output := buf.String()

	if !strings.Contains(output, "--- Cuota fija (cuota, active) ---") {
		t.Errorf("PrettyFormulas missing header, got %q", output)
	}
	if !strings.Contains(output, "--- Retired (old, inactive) ---") {
		t.Errorf("PrettyFormulas missing inactive header")
	}
	if !strings.Contains(output, "tasa [numeric, default 12]") {
		t.Errorf("PrettyFormulas missing default, got %q", output)
	}
	if strings.Index(output, "  monto [") > strings.Index(output, "  plazo [") {
		t.Errorf("PrettyFormulas did not list variables in display order")
	}
	if !strings.HasSuffix(output, "Library functions: calcularAmortizacion, calcularCuota\n") {
		t.Errorf("PrettyFormulas missing library function list, got %q", output)
	}
}

func TestPrettySimulation(t *testing.T) {
	rows, summary := exampleSchedule(t)
	result := simulation.Result{
		FormulaID:   "cuota",
		FormulaName: "Cuota fija",
		FormulaResult: formula.EvaluationResult{
			Value: 8884.878867,
			Binding: formula.Binding{
				Values:  map[string]interface{}{"monto": 100000.0},
				Sources: map[string]formula.BindingSource{"monto": formula.SourceExact},
			},
		},
		Terms:             formula.LoanTerms{Principal: 100000, AnnualRatePercent: 12, TermMonths: 12},
		ReferenceSchedule: rows,
		Summary:           summary,
	}

	var buf bytes.Buffer
	PrettySimulation(&buf, result)
	output := buf.String()

	if !strings.Contains(output, "--- Results for formula Cuota fija ---") {
		t.Errorf("PrettySimulation missing header")
	}
	if !strings.Contains(output, "Value: 8,884.88") {
		t.Errorf("PrettySimulation missing value, got %q", output)
	}
	if !strings.Contains(output, "monto = 100000 (exact)") {
		t.Errorf("PrettySimulation missing binding line, got %q", output)
	}
	if !strings.Contains(output, "for 12 months") {
		t.Errorf("PrettySimulation missing loan terms")
	}
}

func TestWriteScheduleXLSX(t *testing.T) {
	rows, summary := exampleSchedule(t)

	var buf bytes.Buffer
	if err := WriteScheduleXLSX(&buf, rows, summary); err != nil {
		t.Fatalf("WriteScheduleXLSX() error = %v", err)
	}

	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = file.Close() }()

	sheetRows, err := file.GetRows(ScheduleSheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(sheetRows) != len(rows)+2 {
		t.Fatalf("Sheet has %d rows, expected %d", len(sheetRows), len(rows)+2)
	}
	if strings.Join(sheetRows[0], ",") != "period,payment,principal,interest,balance" {
		t.Errorf("Header row = %v", sheetRows[0])
	}
	if sheetRows[1][0] != "1" || sheetRows[12][0] != "12" {
		t.Errorf("Period column = %s..%s, expected 1..12", sheetRows[1][0], sheetRows[12][0])
	}
	if sheetRows[13][0] != "total" {
		t.Errorf("Totals row label = %s, expected total", sheetRows[13][0])
	}
}

func TestWriteSchedulePDF(t *testing.T) {
	rows, err := loans.Schedule(175000, 4.5, 360)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteSchedulePDF(&buf, "Mortgage", rows, loans.Summarize(rows)); err != nil {
		t.Fatalf("WriteSchedulePDF() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("WriteSchedulePDF() output is not a PDF document")
	}
}

func TestWriteSchedule(t *testing.T) {
	rows, summary := exampleSchedule(t)

	for _, format := range []string{constants.OutputFormatPretty, constants.OutputFormatCSV,
		constants.OutputFormatXLSX, constants.OutputFormatPDF} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteSchedule(&buf, format, "Loan", rows, summary); err != nil {
				t.Fatalf("WriteSchedule() error = %v", err)
			}
			if buf.Len() == 0 {
				t.Errorf("WriteSchedule() wrote nothing")
			}
			if ContentType(format) == "" {
				t.Errorf("ContentType() is empty")
			}
		})
	}

	if err := WriteSchedule(&bytes.Buffer{}, "json", "Loan", rows, summary); err == nil {
		t.Errorf("WriteSchedule() expected error for unsupported format")
	}
}
