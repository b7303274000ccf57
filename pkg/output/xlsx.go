package output

import (
	"fmt"
	"io"

	"github.com/iwvelando/loan-formulas/pkg/loans"
	"github.com/xuri/excelize/v2"
)

// ScheduleSheetName is the worksheet holding an exported schedule.
const ScheduleSheetName = "Schedule"

const moneyFormat = "#,##0.00"

// WriteScheduleXLSX writes a schedule as an Excel workbook with a frozen
// header row and a totals row below the periods.
func WriteScheduleXLSX(w io.Writer, rows []loans.Row, summary loans.Summary) error {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	if err := file.SetSheetName("Sheet1", ScheduleSheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	numFmt := moneyFormat
	moneyStyle, err := file.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("failed to create money style: %w", err)
	}

	for i, col := range ScheduleColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(ScheduleSheetName, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(ScheduleColumns), 1)
	if err := file.SetCellStyle(ScheduleSheetName, "A1", lastCol, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		r := i + 2
		values := []interface{}{row.Period, row.Payment, row.Principal, row.Interest, row.Balance}
		for c, value := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			if err := file.SetCellValue(ScheduleSheetName, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row.Period, err)
			}
		}
	}

	totalsRow := len(rows) + 2
	totals := []interface{}{"total", summary.TotalPaid, summary.TotalPrincipal, summary.TotalInterest}
	for c, value := range totals {
		cell, _ := excelize.CoordinatesToCellName(c+1, totalsRow)
		if err := file.SetCellValue(ScheduleSheetName, cell, value); err != nil {
			return fmt.Errorf("failed to write totals: %w", err)
		}
	}

	lastCell, _ := excelize.CoordinatesToCellName(len(ScheduleColumns), totalsRow)
	if err := file.SetCellStyle(ScheduleSheetName, "B2", lastCell, moneyStyle); err != nil {
		return fmt.Errorf("failed to style amounts: %w", err)
	}
	if err := file.SetColWidth(ScheduleSheetName, "B", "E", 16); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := file.SetPanes(ScheduleSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	return file.Write(w)
}
