// Package constants provides shared constants for the loan-formulas application.
package constants

// DateTimeLayout is the format of schedule start dates and due dates.
const DateTimeLayout = "2006-01"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyDecimals is the number of decimals in exported money columns
	CurrencyDecimals = 2

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// MaxScheduleMonths bounds the length of a generated schedule (100 years)
	MaxScheduleMonths = 1200
)

// Role heuristic thresholds used when caller values do not match declared
// variable names. These are approximate by nature; see DESIGN.md.
const (
	// AmountThreshold is the smallest value treated as a monetary amount
	AmountThreshold = 100.0

	// MaxRatePercent is the largest value treated as an annual rate
	MaxRatePercent = 100.0

	// MinTermMonths is the smallest value treated as a term in months
	MinTermMonths = 1

	// MaxTermMonths is the largest value treated as a term in months
	MaxTermMonths = 360
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatXLSX is the spreadsheet output format
	OutputFormatXLSX = "xlsx"

	// OutputFormatPDF is the printable output format
	OutputFormatPDF = "pdf"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Catalog sources
const (
	// CatalogSourceMemory serves formulas declared in the configuration file
	CatalogSourceMemory = "memory"

	// CatalogSourcePostgres serves formulas from a PostgreSQL database
	CatalogSourcePostgres = "postgres"

	// DefaultCacheTTLSeconds is the default lifetime of cached formulas
	DefaultCacheTTLSeconds = 300
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024
)
