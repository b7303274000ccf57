package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/loan-formulas/pkg/format"
	"github.com/iwvelando/loan-formulas/pkg/loans"
)

// ScheduleColumns are the exported schedule columns, in order.
var ScheduleColumns = []string{"period", "payment", "principal", "interest", "balance"}

// WriteScheduleCSV writes a schedule as CSV: a header line, then one line per
// period with money columns as two-decimal fixed-point strings. Lines end
// with "\n".
func WriteScheduleCSV(w io.Writer, rows []loans.Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ScheduleColumns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.Period),
			format.Fixed(row.Payment),
			format.Fixed(row.Principal),
			format.Fixed(row.Interest),
			format.Fixed(row.Balance),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", row.Period, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
