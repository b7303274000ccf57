package output

import (
	"fmt"
	"io"

	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/loans"
)

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	switch format {
	case constants.OutputFormatCSV:
		return "text/csv; charset=utf-8"
	case constants.OutputFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case constants.OutputFormatPDF:
		return "application/pdf"
	}
	return "text/plain; charset=utf-8"
}

// WriteSchedule writes a schedule in the named output format.
func WriteSchedule(w io.Writer, format, title string, rows []loans.Row, summary loans.Summary) error {
	switch format {
	case constants.OutputFormatPretty:
		PrettySchedule(w, rows, summary)
		return nil
	case constants.OutputFormatCSV:
		return WriteScheduleCSV(w, rows)
	case constants.OutputFormatXLSX:
		return WriteScheduleXLSX(w, rows, summary)
	case constants.OutputFormatPDF:
		return WriteSchedulePDF(w, title, rows, summary)
	}
	return fmt.Errorf("unsupported output format %q", format)
}
