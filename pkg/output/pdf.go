package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/loan-formulas/pkg/format"
	"github.com/iwvelando/loan-formulas/pkg/loans"
	"github.com/jung-kurt/gofpdf"
)

const (
	pdfFont         = "Arial"
	pdfMargin       = 15.0
	pdfBottomMargin = 20.0
	pdfRowHeight    = 7.0
)

var pdfColumnWidths = []float64{20, 40, 40, 40, 40}

// WriteSchedulePDF writes a schedule as a printable A4 report with the table
// header repeated on every page and a totals section at the end.
func WriteSchedulePDF(w io.Writer, title string, rows []loans.Row, summary loans.Summary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfBottomMargin)
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	writePDFHeader(pdf)

	_, pageHeight := pdf.GetPageSize()
	pdf.SetFont(pdfFont, "", 10)
	for i, row := range rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfBottomMargin {
			pdf.AddPage()
			writePDFHeader(pdf)
			pdf.SetFont(pdfFont, "", 10)
		}

		fill := i%2 == 1
		if fill {
			pdf.SetFillColor(242, 242, 242)
		}
		cells := []string{
			strconv.Itoa(row.Period),
			format.NumericCurrency(row.Payment),
			format.NumericCurrency(row.Principal),
			format.NumericCurrency(row.Interest),
			format.NumericCurrency(row.Balance),
		}
		for c, text := range cells {
			align := "R"
			if c == 0 {
				align = "C"
			}
			pdf.CellFormat(pdfColumnWidths[c], pdfRowHeight, text, "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont(pdfFont, "B", 11)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 10)
	items := []struct {
		label string
		value string
	}{
		{"Periods", strconv.Itoa(summary.Periods)},
		{"Payment", format.Currency(summary.Payment)},
		{"Total paid", format.Currency(summary.TotalPaid)},
		{"Total principal", format.Currency(summary.TotalPrincipal)},
		{"Total interest", format.Currency(summary.TotalInterest)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build pdf: %w", err)
	}
	return pdf.Output(w)
}

func writePDFHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont(pdfFont, "B", 11)
	pdf.SetFillColor(68, 114, 196)
	pdf.SetTextColor(255, 255, 255)
	for i, col := range ScheduleColumns {
		pdf.CellFormat(pdfColumnWidths[i], 8, col, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
}
