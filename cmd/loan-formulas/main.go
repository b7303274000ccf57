package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iwvelando/loan-formulas/internal/catalog"
	"github.com/iwvelando/loan-formulas/internal/config"
	"github.com/iwvelando/loan-formulas/internal/server"
	"github.com/iwvelando/loan-formulas/internal/simulation"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/loans"
	"github.com/iwvelando/loan-formulas/pkg/output"
	"github.com/iwvelando/loan-formulas/pkg/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var config zap.Config
	switch format {
	case "console":
		config = zap.NewDevelopmentConfig()
	case "json":
		config = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	// Logs go to stderr unless a file is given, so stdout stays clean for
	// CSV and binary exports.
	config.OutputPaths = []string{"stderr"}
	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		} else {
			_ = file.Close()
		}

		config.OutputPaths = []string{loggingConfig.OutputFile}
		config.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return config.Build()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

// run executes the CLI and returns the process exit code. Every resource it
// opens is released before it returns.
func run(args []string, stdin io.Reader, stdout io.Writer) int {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"warn\", \"msg\": \"failed to read .env\", \"error\": \"%v\"}\n", err)
	}

	flags := flag.NewFlagSet("loan-formulas", flag.ContinueOnError)
	configLocation := flags.String("config", constants.DefaultConfigFile, "path to configuration file, or - for stdin")
	outputFormatFlag := flags.String("output-format", "", "type of output override: pretty, csv, xlsx, pdf")
	outputFile := flags.String("output-file", "", "write output to this file instead of stdout")
	logLevel := flags.String("log-level", "", "log level override (debug, info, warn, error)")
	formulaID := flags.String("formula", "", "id of the formula to simulate")
	valuesFlag := flags.String("values", "", "formula inputs as name=value pairs separated by commas")
	principal := flags.Float64("principal", 0, "loan principal for a plain schedule")
	rate := flags.Float64("rate", 0, "annual interest rate in percent for a plain schedule")
	term := flags.Int("term", 0, "term in months for a plain schedule")
	startDate := flags.String("start-date", "", "first due date (YYYY-MM) for a plain schedule")
	list := flags.Bool("list", false, "list the active formulas")
	serve := flags.Bool("serve", false, "run the HTTP API")
	serverConfigLocation := flags.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	maxBodySize := flags.String("max-body-size", "", "request body limit override for the HTTP API (e.g. 2M)")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	conf, err := loadConfiguration(*configLocation, stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		return 1
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Error(err.Error(),
			zap.String("op", "main"),
		)
		return 1
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, closeCatalog, err := catalog.Open(ctx, conf, logger)
	if err != nil {
		logger.Error("failed to open formula catalog",
			zap.String("op", "main"),
			zap.Error(err),
		)
		return 1
	}
	defer closeCatalog()

	simulator := simulation.New(logger, reader)

	if *serve {
		if err := runServer(ctx, logger, simulator, *serverConfigLocation, *maxBodySize); err != nil {
			logger.Error("server stopped with error",
				zap.String("op", "main"),
				zap.Error(err),
			)
			return 1
		}
		return 0
	}

	if !*list && *formulaID == "" && *term == 0 && *principal == 0 {
		flags.Usage()
		return 2
	}

	out, closeOut, err := openOutput(*outputFile, stdout)
	if err != nil {
		logger.Error("failed to open output",
			zap.String("op", "main"),
			zap.Error(err),
		)
		return 1
	}
	defer func() {
		if err := closeOut(); err != nil {
			logger.Error("failed to close output",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}()

	switch {
	case *list:
		formulas, err := simulator.ActiveFormulas(ctx)
		if err != nil {
			logger.Error("failed to list formulas",
				zap.String("op", "main"),
				zap.Error(err),
			)
			return 1
		}
		output.PrettyFormulas(out, formulas)

	case *formulaID != "":
		values, err := parseValues(*valuesFlag)
		if err != nil {
			logger.Error("failed to parse values",
				zap.String("op", "main"),
				zap.Error(err),
			)
			return 1
		}
		result, err := simulator.SimulateByID(ctx, *formulaID, values)
		if err != nil {
			logger.Error("failed to simulate formula",
				zap.String("op", "main"),
				zap.String("formula", *formulaID),
				zap.Error(err),
			)
			return 1
		}
		if outputFormat == constants.OutputFormatPretty {
			output.PrettySimulation(out, result)
			return 0
		}
		title := fmt.Sprintf("%s: reference schedule", result.FormulaName)
		if err := output.WriteSchedule(out, outputFormat, title, result.ReferenceSchedule, result.Summary); err != nil {
			logger.Error("failed to write schedule",
				zap.String("op", "main"),
				zap.Error(err),
			)
			return 1
		}

	default:
		req := loans.Request{
			Principal:         *principal,
			AnnualRatePercent: *rate,
			TermMonths:        *term,
			StartDate:         *startDate,
		}
		rows, summary, err := loans.NewScheduleGenerator(logger).Generate(req)
		if err != nil {
			logger.Error("failed to generate schedule",
				zap.String("op", "main"),
				zap.Error(err),
			)
			return 1
		}
		if outputFormat == constants.OutputFormatPretty {
			output.PrettySchedule(out, rows, summary)
			return 0
		}
		title := fmt.Sprintf("Amortization schedule: %.2f at %.2f%% for %d months", *principal, *rate, *term)
		if err := output.WriteSchedule(out, outputFormat, title, rows, summary); err != nil {
			logger.Error("failed to write schedule",
				zap.String("op", "main"),
				zap.Error(err),
			)
			return 1
		}
	}
	return 0
}

// loadConfiguration reads the config file at path, or stdin when path is "-".
func loadConfiguration(path string, stdin io.Reader) (*config.Configuration, error) {
	if path == "-" {
		return config.LoadConfigurationFromReader(stdin)
	}
	return config.LoadConfiguration(path)
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return file, file.Close, nil
}

func runServer(ctx context.Context, logger *zap.Logger, simulator *simulation.Simulator, configPath, maxBodySize string) error {
	serverConf, err := server.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if maxBodySize != "" {
		size, err := server.ParseSize(maxBodySize)
		if err != nil {
			return fmt.Errorf("invalid -max-body-size: %w", err)
		}
		serverConf.SetBodySizeBytes(size)
	}

	// A logging section in the server config replaces the CLI logger for requests.
	if serverConf.Logging != (config.LoggingConfig{}) {
		serverLogger, err := initializeLogger(serverConf.Logging, "")
		if err != nil {
			return err
		}
		defer func() {
			_ = serverLogger.Sync()
		}()
		logger = serverLogger
	}

	httpServer := &http.Server{
		Addr:              serverConf.Address,
		Handler:           server.NewHandler(logger, simulator, serverConf.BodySizeBytes(), version),
		ReadTimeout:       serverConf.ReadTimeoutDuration(),
		ReadHeaderTimeout: serverConf.ReadTimeoutDuration(),
		WriteTimeout:      serverConf.WriteTimeoutDuration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("op", "main.runServer"),
			zap.String("address", serverConf.Address),
			zap.String("version", version),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down", zap.String("op", "main.runServer"))
	return httpServer.Shutdown(shutdownCtx)
}
