// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"time"

	"github.com/iwvelando/loan-formulas/pkg/constants"
)

const (
	// DateTimeLayout is the format of schedule start dates and due dates.
	DateTimeLayout = constants.DateTimeLayout
)

// OffsetDate returns the string-formatted date offset by the given number of
// months relative to the given date.
func OffsetDate(date, layout string, months int) (string, error) {
	t, err := time.Parse(layout, date)
	if err != nil {
		return date, err
	}
	return t.AddDate(0, months, 0).Format(layout), nil
}

// ValidateMonth checks that date is in YYYY-MM form.
func ValidateMonth(date string) error {
	if _, err := time.Parse(DateTimeLayout, date); err != nil {
		return fmt.Errorf("invalid month %q, expected YYYY-MM", date)
	}
	return nil
}

// DueDates returns the monthly due dates for periods 1..periods, the first
// falling on startDate.
func DueDates(startDate string, periods int) ([]string, error) {
	if err := ValidateMonth(startDate); err != nil {
		return nil, err
	}
	dates := make([]string, 0, periods)
	for i := 0; i < periods; i++ {
		date, err := OffsetDate(startDate, DateTimeLayout, i)
		if err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, nil
}
