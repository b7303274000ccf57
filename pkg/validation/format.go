// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/loan-formulas/pkg/constants"
)

// OutputFormats lists the supported output formats.
var OutputFormats = []string{
	constants.OutputFormatPretty,
	constants.OutputFormatCSV,
	constants.OutputFormatXLSX,
	constants.OutputFormatPDF,
}

// ExportFormats lists the formats that produce a downloadable file.
var ExportFormats = []string{
	constants.OutputFormatCSV,
	constants.OutputFormatXLSX,
	constants.OutputFormatPDF,
}

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	return oneOf(format, OutputFormats)
}

// ValidateExportFormat checks if the format is a file export format.
func ValidateExportFormat(format string) error {
	return oneOf(format, ExportFormats)
}

func oneOf(format string, allowed []string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("expected output format of %s, got %s", strings.Join(allowed, ", "), format)
}
