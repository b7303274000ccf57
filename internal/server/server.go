// Package server exposes the formula catalog, simulations and amortization
// schedules over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iwvelando/loan-formulas/internal/catalog"
	"github.com/iwvelando/loan-formulas/internal/simulation"
	"github.com/iwvelando/loan-formulas/pkg/calcerr"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/formula"
	"github.com/iwvelando/loan-formulas/pkg/loans"
	"github.com/iwvelando/loan-formulas/pkg/output"
	"github.com/iwvelando/loan-formulas/pkg/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type handler struct {
	logger      *zap.Logger
	simulator   *simulation.Simulator
	generator   *loans.ScheduleGenerator
	maxBodySize int64
	version     string
}

// NewHandler constructs the HTTP handler serving the formula API.
func NewHandler(logger *zap.Logger, simulator *simulation.Simulator, maxBodySize int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:      logger,
		simulator:   simulator,
		generator:   loans.NewScheduleGenerator(logger),
		maxBodySize: maxBodySize,
		version:     trimmedVersion,
	}

	mux := http.NewServeMux()

	// Catalog
	mux.HandleFunc("/api/formulas", h.handleFormulas)
	mux.HandleFunc("/api/formulas/{id}", h.handleFormula)
	mux.HandleFunc("/api/catalog/export", h.handleCatalogExport)

	// Calculations
	mux.HandleFunc("/api/simulate", h.handleSimulate)
	mux.HandleFunc("/api/evaluate", h.handleEvaluate)
	mux.HandleFunc("/api/schedule", h.handleSchedule)
	mux.HandleFunc("/api/schedule/export", h.handleScheduleExport)

	mux.HandleFunc("/api/version", h.handleVersion)

	return mux
}

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Subject string `json:"subject,omitempty"`
}

type simulateRequest struct {
	FormulaID string                 `json:"formulaId"`
	Formula   *formula.Formula       `json:"formula"`
	Values    map[string]interface{} `json:"values"`
}

type evaluateRequest struct {
	Expression string                 `json:"expression"`
	FormulaID  string                 `json:"formulaId"`
	Values     map[string]interface{} `json:"values"`
}

type evaluateResponse struct {
	Value   float64          `json:"value"`
	Binding *formula.Binding `json:"binding,omitempty"`
}

type scheduleResponse struct {
	Rows    []loans.Row   `json:"rows"`
	Summary loans.Summary `json:"summary"`
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleFormulas(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleFormulas"

	switch r.Method {
	case http.MethodGet:
		formulas, err := h.simulator.ActiveFormulas(r.Context())
		if err != nil {
			h.respondErr(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, formulas)

	case http.MethodPost:
		writer, ok := h.writer()
		if !ok {
			h.respondErr(w, catalog.ErrReadOnlyCatalog, op)
			return
		}
		var f formula.Formula
		if !h.decode(w, r, &f, op) {
			return
		}
		created, err := writer.CreateFormula(r.Context(), f)
		if err != nil {
			h.respondErr(w, err, op)
			return
		}
		h.logger.Info("formula created",
			zap.String("op", op),
			zap.String("id", created.ID),
		)
		h.writeJSON(w, http.StatusCreated, created)

	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *handler) handleFormula(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleFormula"
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		f, err := h.simulator.Catalog().FetchFormulaByID(r.Context(), id)
		if err != nil {
			h.respondErr(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, f)

	case http.MethodPut:
		writer, ok := h.writer()
		if !ok {
			h.respondErr(w, catalog.ErrReadOnlyCatalog, op)
			return
		}
		var f formula.Formula
		if !h.decode(w, r, &f, op) {
			return
		}
		f.ID = id
		if err := writer.UpdateFormula(r.Context(), f); err != nil {
			h.respondErr(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, f)

	case http.MethodDelete:
		writer, ok := h.writer()
		if !ok {
			h.respondErr(w, catalog.ErrReadOnlyCatalog, op)
			return
		}
		if err := writer.DeleteFormula(r.Context(), id); err != nil {
			h.respondErr(w, err, op)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// handleCatalogExport returns the active formulas as a YAML document that can
// be pasted into the formulas section of a configuration file.
func (h *handler) handleCatalogExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCatalogExport"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	formulas, err := h.simulator.ActiveFormulas(r.Context())
	if err != nil {
		h.respondErr(w, err, op)
		return
	}

	data, err := yaml.Marshal(map[string][]formula.Formula{"formulas": formulas})
	if err != nil {
		h.respondErr(w, fmt.Errorf("failed to encode catalog: %w", err), op)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="formulas.yaml"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write catalog export", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSimulate"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var req simulateRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	var (
		result simulation.Result
		err    error
	)
	switch {
	case req.Formula != nil:
		if err = formula.Validate(*req.Formula); err == nil {
			result, err = h.simulator.Simulate(*req.Formula, req.Values)
		}
	case req.FormulaID != "":
		result, err = h.simulator.SimulateByID(r.Context(), req.FormulaID, req.Values)
	default:
		err = calcerr.New(calcerr.KindInvalidInput, "formulaId", "formulaId or formula is required")
	}
	if err != nil {
		h.respondErr(w, err, op)
		return
	}

	h.logger.Info("simulation computed",
		zap.String("op", op),
		zap.String("formula", result.FormulaID),
		zap.Int("periods", result.Summary.Periods),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEvaluate"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var req evaluateRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	if req.FormulaID != "" {
		result, err := h.simulator.EvaluateByID(r.Context(), req.FormulaID, req.Values)
		if err != nil {
			h.respondErr(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, evaluateResponse{Value: result.Value, Binding: &result.Binding})
		return
	}

	value, err := formula.Evaluate(req.Expression, req.Values)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, evaluateResponse{Value: value})
}

func (h *handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSchedule"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var req loans.Request
	if !h.decode(w, r, &req, op) {
		return
	}

	rows, summary, err := h.generator.Generate(req)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, scheduleResponse{Rows: rows, Summary: summary})
}

func (h *handler) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleScheduleExport"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = constants.OutputFormatCSV
	}
	if err := validation.ValidateExportFormat(format); err != nil {
		h.respondErr(w, calcerr.New(calcerr.KindInvalidInput, "format", err.Error()), op)
		return
	}

	var req loans.Request
	if !h.decode(w, r, &req, op) {
		return
	}

	rows, summary, err := h.generator.Generate(req)
	if err != nil {
		h.respondErr(w, err, op)
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Amortization schedule: %.2f at %.2f%% for %d months",
		req.Principal, req.AnnualRatePercent, req.TermMonths)
	if err := output.WriteSchedule(&buf, format, title, rows, summary); err != nil {
		h.respondErr(w, fmt.Errorf("failed to render %s: %w", format, err), op)
		return
	}

	w.Header().Set("Content-Type", output.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="schedule.%s"`, format))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, &buf); err != nil {
		h.logger.Error("failed to write export", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) writer() (catalog.Writer, bool) {
	w, ok := h.simulator.Catalog().(catalog.Writer)
	return w, ok
}

// decode reads a JSON body into dst, responding with an error when it cannot.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				errorResponse{Error: fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize)}, op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest,
			errorResponse{Error: fmt.Sprintf("failed to decode request: %v", err)}, op)
		return false
	}
	return true
}

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrFormulaNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrReadOnlyCatalog):
		return http.StatusMethodNotAllowed
	case errors.Is(err, catalog.ErrDuplicateFormula):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrInactiveFormula):
		return http.StatusBadRequest
	case calcerr.KindOf(err) != "":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *handler) respondErr(w http.ResponseWriter, err error, op string) {
	resp := errorResponse{Error: err.Error()}
	if kind := calcerr.KindOf(err); kind != "" {
		resp.Kind = string(kind)
		resp.Subject = calcerr.SubjectOf(err)
	}
	h.respondErrorWithOp(w, statusFor(err), resp, op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, resp errorResponse, op string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", resp.Error),
		)
	} else {
		h.logger.Debug("request rejected",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", resp.Error),
		)
	}

	h.writeJSON(w, status, resp)
}

// writeJSON encodes before writing the status so an unencodable payload
// turns into a 500 instead of a truncated 200.
func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		h.logger.Error("failed to encode JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"failed to encode response"}`+"\n")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
