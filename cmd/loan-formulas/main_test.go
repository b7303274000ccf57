package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/iwvelando/loan-formulas/internal/config"
)

func TestParseValues(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  map[string]interface{}
		wantError bool
	}{
		{
			name:     "Empty",
			input:    "  ",
			expected: map[string]interface{}{},
		},
		{
			name:     "Pairs",
			input:    "monto=100000, tasa=12,plazo = 12",
			expected: map[string]interface{}{"monto": "100000", "tasa": "12", "plazo": "12"},
		},
		{
			name:     "Trailing comma",
			input:    "monto=5000,",
			expected: map[string]interface{}{"monto": "5000"},
		},
		{
			name:     "Empty value",
			input:    "comision=",
			expected: map[string]interface{}{"comision": ""},
		},
		{
			name:      "Missing equals",
			input:     "monto",
			wantError: true,
		},
		{
			name:      "Missing name",
			input:     "=12",
			wantError: true,
		},
		{
			name:      "Duplicate",
			input:     "tasa=12,tasa=13",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseValues(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("parseValues() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseValues() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseValues() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestInitializeLogger(t *testing.T) {
	tests := []struct {
		name      string
		config    config.LoggingConfig
		override  string
		wantError bool
	}{
		{name: "Defaults", config: config.LoggingConfig{}},
		{name: "Console debug", config: config.LoggingConfig{Level: "debug", Format: "console"}},
		{name: "Override", config: config.LoggingConfig{Level: "bogus"}, override: "warn"},
		{name: "Invalid level", config: config.LoggingConfig{Level: "verbose"}, wantError: true},
		{name: "Invalid format", config: config.LoggingConfig{Format: "xml"}, wantError: true},
		{
			name:   "Output file",
			config: config.LoggingConfig{OutputFile: filepath.Join(t.TempDir(), "logs", "app.log")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := initializeLogger(tt.config, tt.override)
			if tt.wantError {
				if err == nil {
					t.Errorf("initializeLogger() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("initializeLogger() error = %v", err)
			}
			logger.Info("test entry")
			_ = logger.Sync()

			if tt.config.OutputFile != "" {
				if _, err := os.Stat(tt.config.OutputFile); err != nil {
					t.Errorf("expected log file to exist: %v", err)
				}
			}
		})
	}
}

func TestOpenOutput(t *testing.T) {
	var stdout bytes.Buffer
	w, closeFn, err := openOutput("", &stdout)
	if err != nil || w != &stdout {
		t.Fatalf("expected stdout, got %v, %v", w, err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	w, closeFn, err = openOutput(path, &stdout)
	if err != nil {
		t.Fatalf("openOutput() error = %v", err)
	}
	if _, err := w.Write([]byte("ok")); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "ok" {
		t.Fatalf("expected file contents ok, got %q, %v", data, err)
	}

	if _, _, err := openOutput(filepath.Join(t.TempDir(), "missing", "out.csv"), &stdout); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

const stdinConfig = `logging:
  level: error
catalog:
  source: memory
formulas:
  - id: cuota
    name: Cuota
    active: true
    expression: "monto * (tasa/100/12) / (1 - (1 + tasa/100/12) ^ -plazo)"
    variables:
      - name: monto
        kind: numeric
        required: true
        order: 1
      - name: tasa
        kind: numeric
        required: true
        order: 2
      - name: plazo
        kind: numeric
        required: true
        order: 3
`

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	if code := run([]string{"-version"}, strings.NewReader(""), &stdout); code != 0 {
		t.Fatalf("run() = %d, expected 0", code)
	}
	if strings.TrimSpace(stdout.String()) != version {
		t.Errorf("stdout = %q, expected %q", stdout.String(), version)
	}
}

func TestRunListFromStdinConfig(t *testing.T) {
	var stdout bytes.Buffer
	code := run([]string{"-config", "-", "-list"}, strings.NewReader(stdinConfig), &stdout)
	if code != 0 {
		t.Fatalf("run() = %d, expected 0", code)
	}
	if !strings.Contains(stdout.String(), "cuota") {
		t.Errorf("expected listing to mention cuota, got %q", stdout.String())
	}
}

func TestRunWritesOutputFileBeforeReturning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.csv")
	args := []string{
		"-config", "-",
		"-formula", "cuota",
		"-values", "monto=100000,tasa=6,plazo=12",
		"-output-format", "csv",
		"-output-file", path,
	}
	var stdout bytes.Buffer
	if code := run(args, strings.NewReader(stdinConfig), &stdout); code != 0 {
		t.Fatalf("run() = %d, expected 0", code)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 13 {
		t.Fatalf("expected header plus 12 rows, got %d lines", len(lines))
	}
	if lines[0] != "period,payment,principal,interest,balance" {
		t.Errorf("header = %q", lines[0])
	}
	if stdout.Len() != 0 {
		t.Errorf("expected nothing on stdout, got %q", stdout.String())
	}
}

func TestRunFailures(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	tests := []struct {
		name     string
		args     []string
		stdin    string
		expected int
	}{
		{"Unknown flag", []string{"-nope"}, "", 2},
		{"Missing config file", []string{"-config", missing, "-list"}, "", 1},
		{"Malformed stdin config", []string{"-config", "-", "-list"}, "formulas: [", 1},
		{"Bad output format", []string{"-config", "-", "-list", "-output-format", "json"}, stdinConfig, 1},
		{"Unknown formula", []string{"-config", "-", "-formula", "nope"}, stdinConfig, 1},
		{"Bad values", []string{"-config", "-", "-formula", "cuota", "-values", "monto"}, stdinConfig, 1},
		{"Nothing to do", []string{"-config", "-"}, stdinConfig, 2},
		{"Bad body size", []string{"-config", "-", "-serve", "-server-config", missing, "-max-body-size", "lots"}, stdinConfig, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			if code := run(tt.args, strings.NewReader(tt.stdin), &stdout); code != tt.expected {
				t.Errorf("run() = %d, expected %d", code, tt.expected)
			}
		})
	}
}
