// Package format renders money amounts as strings.
package format

import (
	"math"
	"strconv"
	"strings"

	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/shopspring/decimal"
)

// Fixed returns amount as a fixed-point string with two decimals, rounding
// half away from zero (e.g., "-1234.57"). Negative zero prints as "0.00".
func Fixed(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return strconv.FormatFloat(amount, 'f', -1, 64)
	}
	d := decimal.NewFromFloat(amount).Round(constants.CurrencyDecimals)
	if d.IsZero() {
		d = decimal.Zero
	}
	return d.StringFixed(constants.CurrencyDecimals)
}

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	formatted := NumericCurrency(amount)
	if strings.HasPrefix(formatted, "-") {
		return "-$" + formatted[1:]
	}
	return "$" + formatted
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	fixed := Fixed(amount)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	return sign + groupThousands(fixed)
}

func groupThousands(fixed string) string {
	parts := strings.SplitN(fixed, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}
