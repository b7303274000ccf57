package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iwvelando/loan-formulas/internal/catalog"
	"github.com/iwvelando/loan-formulas/internal/simulation"
	"github.com/iwvelando/loan-formulas/pkg/constants"
	"github.com/iwvelando/loan-formulas/pkg/formula"
	"github.com/iwvelando/loan-formulas/pkg/testutil"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	memory, err := catalog.NewMemory(testutil.Formulas())
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	return NewHandler(zap.NewNop(), simulation.New(zap.NewNop(), memory), constants.DefaultMaxBodySizeBytes, "1.2.3")
}

// readOnlyReader hides the writer methods of a memory catalog.
type readOnlyReader struct {
	catalog.Reader
}

func perform(t *testing.T, handler http.Handler, method, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func TestHandleVersion(t *testing.T) {
	handler := newTestHandler(t)

	rr := perform(t, handler, http.MethodGet, "/api/version", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["version"] != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", resp["version"])
	}

	rr = perform(t, handler, http.MethodPost, "/api/version", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleVersionDefaultsToDev(t *testing.T) {
	memory, _ := catalog.NewMemory(nil)
	handler := NewHandler(nil, simulation.New(nil, memory), 0, "  ")

	rr := perform(t, handler, http.MethodGet, "/api/version", nil)
	if !strings.Contains(rr.Body.String(), `"dev"`) {
		t.Fatalf("expected dev version, got %s", rr.Body.String())
	}
}

func TestHandleFormulasList(t *testing.T) {
	handler := newTestHandler(t)

	rr := perform(t, handler, http.MethodGet, "/api/formulas", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var formulas []formula.Formula
	if err := json.Unmarshal(rr.Body.Bytes(), &formulas); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(formulas) != 2 {
		t.Fatalf("expected 2 active formulas, got %d", len(formulas))
	}
}

func TestHandleFormulaCRUD(t *testing.T) {
	handler := newTestHandler(t)

	rr := perform(t, handler, http.MethodGet, "/api/formulas/cuota-anterior", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected inactive formula to be fetchable, got %d", rr.Code)
	}

	rr = perform(t, handler, http.MethodGet, "/api/formulas/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	newFormula := testutil.TotalCostFormula()
	newFormula.ID = ""
	rr = perform(t, handler, http.MethodPost, "/api/formulas", newFormula)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created formula.Formula
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an id to be assigned")
	}

	created.Name = "Costo total v2"
	rr = perform(t, handler, http.MethodPut, "/api/formulas/"+created.ID, created)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = perform(t, handler, http.MethodGet, "/api/formulas/"+created.ID, nil)
	if !strings.Contains(rr.Body.String(), "Costo total v2") {
		t.Fatalf("expected updated name, got %s", rr.Body.String())
	}

	rr = perform(t, handler, http.MethodDelete, "/api/formulas/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	rr = perform(t, handler, http.MethodDelete, "/api/formulas/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 on second delete, got %d", rr.Code)
	}

	rr = perform(t, handler, http.MethodPatch, "/api/formulas/cuota-fija", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleFormulaCreateErrors(t *testing.T) {
	handler := newTestHandler(t)

	rr := perform(t, handler, http.MethodPost, "/api/formulas", testutil.AnnuityFormula())
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for duplicate id, got %d", rr.Code)
	}

	invalid := testutil.AnnuityFormula()
	invalid.ID = "nueva"
	invalid.Expression = "monto * seguro"
	rr = perform(t, handler, http.MethodPost, "/api/formulas", invalid)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Kind != "UnboundVariable" || resp.Subject != "seguro" {
		t.Fatalf("unexpected error response: %+v", resp)
	}
}

func TestHandleFormulaReadOnlyCatalog(t *testing.T) {
	memory, err := catalog.NewMemory(testutil.Formulas())
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	sim := simulation.New(zap.NewNop(), readOnlyReader{memory})
	handler := NewHandler(zap.NewNop(), sim, 0, "")

	rr := perform(t, handler, http.MethodPost, "/api/formulas", testutil.AnnuityFormula())
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
	rr = perform(t, handler, http.MethodDelete, "/api/formulas/cuota-fija", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleSimulateByID(t *testing.T) {
	handler := newTestHandler(t)

	rr := perform(t, handler, http.MethodPost, "/api/simulate", map[string]interface{}{
		"formulaId": "cuota-fija",
		"values":    map[string]interface{}{"monto": 100000, "tasa": 12, "plazo": 12},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result simulation.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if math.Abs(result.FormulaResult.Value-8884.88) > 0.01 {
		t.Fatalf("expected ~8884.88, got %.4f", result.FormulaResult.Value)
	}
	if len(result.ReferenceSchedule) != 12 {
		t.Fatalf("expected 12 rows, got %d", len(result.ReferenceSchedule))
	}
	if result.ReferenceSchedule[11].Balance != 0 {
		t.Fatalf("expected final balance 0, got %v", result.ReferenceSchedule[11].Balance)
	}
}

func TestHandleSimulateInlineFormula(t *testing.T) {
	handler := newTestHandler(t)

	f := formula.Formula{
		Name:       "Interés del primer mes",
		Expression: "monto * tasa / 100 / 12",
		Variables: []formula.Variable{
			{Name: "monto", Required: true},
			{Name: "tasa", Required: true},
		},
	}
	rr := perform(t, handler, http.MethodPost, "/api/simulate", map[string]interface{}{
		"formula": f,
		"values":  map[string]interface{}{"amount": 100000, "rate": 12, "term": 12},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result simulation.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if math.Abs(result.FormulaResult.Value-1000) > 1e-9 {
		t.Fatalf("expected 1000, got %v", result.FormulaResult.Value)
	}
}

func TestHandleSimulateErrors(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name       string
		payload    interface{}
		wantStatus int
		wantKind   string
	}{
		{
			name:       "Missing formula",
			payload:    map[string]interface{}{"values": map[string]interface{}{}},
			wantStatus: http.StatusBadRequest,
			wantKind:   "InvalidInput",
		},
		{
			name:       "Unknown formula",
			payload:    map[string]interface{}{"formulaId": "missing"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Inactive formula",
			payload:    map[string]interface{}{"formulaId": "cuota-anterior"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "Missing required variable",
			payload: map[string]interface{}{
				"formulaId": "cuota-fija",
				"values":    map[string]interface{}{"monto": 100000, "tasa": 12},
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   "MissingRequiredVariable",
		},
		{
			name: "Insufficient numeric inputs",
			payload: map[string]interface{}{
				"formula": formula.Formula{
					Name: "Solo monto", Expression: "monto",
					Variables: []formula.Variable{{Name: "monto", Required: true}},
				},
				"values": map[string]interface{}{"monto": 5000},
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   "InsufficientNumericInputs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := perform(t, handler, http.MethodPost, "/api/simulate", tt.payload)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.Error == "" {
				t.Fatal("expected error message")
			}
			if tt.wantKind != "" && resp.Kind != tt.wantKind {
				t.Fatalf("expected kind %s, got %+v", tt.wantKind, resp)
			}
		})
	}
}

func TestHandleSimulateBadJSON(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleBodyTooLarge(t *testing.T) {
	memory, _ := catalog.NewMemory(testutil.Formulas())
	handler := NewHandler(zap.NewNop(), simulation.New(zap.NewNop(), memory), 64, "")

	payload := map[string]interface{}{
		"expression": "x",
		"values":     map[string]interface{}{"x": strings.Repeat("9", 200)},
	}
	rr := perform(t, handler, http.MethodPost, "/api/evaluate", payload)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleEvaluate(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name        string
		payload     map[string]interface{}
		wantStatus  int
		wantValue   float64
		wantKind    string
		wantSubject string
	}{
		{
			name: "Expression",
			payload: map[string]interface{}{
				"expression": "calcularCuota(p, r, n)",
				"values":     map[string]interface{}{"p": 1200, "r": 0, "n": 12},
			},
			wantStatus: http.StatusOK,
			wantValue:  100,
		},
		{
			name: "Formula by id",
			payload: map[string]interface{}{
				"formulaId": "costo-total",
				"values":    map[string]interface{}{"principal": 1200, "annualRate": 0, "months": 12},
			},
			wantStatus: http.StatusOK,
			wantValue:  1450,
		},
		{
			name: "Unbound variable",
			payload: map[string]interface{}{
				"expression": "monto * 2",
				"values":     map[string]interface{}{},
			},
			wantStatus:  http.StatusBadRequest,
			wantKind:    "UnboundVariable",
			wantSubject: "monto",
		},
		{
			name: "Sandbox rejection",
			payload: map[string]interface{}{
				"expression": `len("abc")`,
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   "InvalidExpression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := perform(t, handler, http.MethodPost, "/api/evaluate", tt.payload)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp evaluateResponse
				if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if math.Abs(resp.Value-tt.wantValue) > 1e-9 {
					t.Fatalf("expected %v, got %v", tt.wantValue, resp.Value)
				}
				return
			}

			resp := decodeError(t, rr)
			if resp.Kind != tt.wantKind {
				t.Fatalf("expected kind %s, got %+v", tt.wantKind, resp)
			}
			if tt.wantSubject != "" && resp.Subject != tt.wantSubject {
				t.Fatalf("expected subject %s, got %+v", tt.wantSubject, resp)
			}
		})
	}
}

func TestHandleSchedule(t *testing.T) {
	handler := newTestHandler(t)

	rr := perform(t, handler, http.MethodPost, "/api/schedule", map[string]interface{}{
		"principal": 1200, "rate": 0, "term": 3, "startDate": "2025-01",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp scheduleResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(resp.Rows))
	}
	for _, row := range resp.Rows {
		if row.Payment != 400 {
			t.Fatalf("expected payment 400, got %v", row.Payment)
		}
	}
	if resp.Rows[2].DueDate != "2025-03" {
		t.Fatalf("expected last due date 2025-03, got %s", resp.Rows[2].DueDate)
	}
	if resp.Summary.TotalPaid != 1200 {
		t.Fatalf("expected total paid 1200, got %v", resp.Summary.TotalPaid)
	}

	rr = perform(t, handler, http.MethodPost, "/api/schedule", map[string]interface{}{
		"principal": 1200, "rate": 5, "term": 0,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Kind != "InvalidTerm" {
		t.Fatalf("expected InvalidTerm, got %+v", resp)
	}
}

func TestHandleScheduleExtremeRate(t *testing.T) {
	handler := newTestHandler(t)

	rr := perform(t, handler, http.MethodPost, "/api/schedule", map[string]interface{}{
		"principal": 1000, "rate": 10000, "term": 1200,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp scheduleResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rows) != 1200 {
		t.Fatalf("expected 1200 rows, got %d", len(resp.Rows))
	}
	if last := resp.Rows[len(resp.Rows)-1]; last.Balance != 0 {
		t.Fatalf("expected final balance 0, got %v", last.Balance)
	}
	if math.Abs(resp.Summary.TotalPrincipal-1000) > 1e-6 {
		t.Fatalf("expected principal portions to sum to 1000, got %v", resp.Summary.TotalPrincipal)
	}
}

func TestWriteJSONUnencodablePayload(t *testing.T) {
	h := &handler{logger: zap.NewNop()}
	rr := httptest.NewRecorder()

	h.writeJSON(rr, http.StatusOK, map[string]float64{"value": math.NaN()})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error == "" {
		t.Fatalf("expected an error message, got %s", rr.Body.String())
	}
}

func TestHandleScheduleExport(t *testing.T) {
	handler := newTestHandler(t)
	request := map[string]interface{}{"principal": 1200, "rate": 0, "term": 3}

	tests := []struct {
		format      string
		contentType string
		prefix      string
	}{
		{"csv", "text/csv; charset=utf-8", "period,payment,principal,interest,balance\n1,400.00,400.00,0.00,800.00\n"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "PK"},
		{"pdf", "application/pdf", "%PDF-"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rr := perform(t, handler, http.MethodPost, "/api/schedule/export?format="+tt.format, request)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if got := rr.Header().Get("Content-Type"); got != tt.contentType {
				t.Fatalf("expected content type %s, got %s", tt.contentType, got)
			}
			if !strings.HasPrefix(rr.Body.String(), tt.prefix) {
				t.Fatalf("expected body to start with %q", tt.prefix)
			}
			if !strings.Contains(rr.Header().Get("Content-Disposition"), "schedule."+tt.format) {
				t.Fatalf("unexpected content disposition %q", rr.Header().Get("Content-Disposition"))
			}
		})
	}

	rr := perform(t, handler, http.MethodPost, "/api/schedule/export?format=pretty", request)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for pretty export, got %d", rr.Code)
	}
}

func TestHandleCatalogExport(t *testing.T) {
	handler := newTestHandler(t)

	rr := perform(t, handler, http.MethodGet, "/api/catalog/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var doc struct {
		Formulas []formula.Formula `yaml:"formulas"`
	}
	if err := yaml.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to decode YAML export: %v", err)
	}
	if len(doc.Formulas) != 2 {
		t.Fatalf("expected 2 exported formulas, got %d", len(doc.Formulas))
	}
	if doc.Formulas[0].ID != "cuota-fija" || doc.Formulas[0].Expression != testutil.AnnuityExpression {
		t.Fatalf("unexpected first formula: %+v", doc.Formulas[0])
	}
	if testutil.FindFormula(doc.Formulas, "cuota-anterior") != nil {
		t.Fatalf("inactive formula should not be exported")
	}
	exported := testutil.FindFormula(doc.Formulas, "costo-total")
	if exported == nil {
		t.Fatalf("expected costo-total in export")
	}
	if exported.Expression != testutil.TotalCostFormula().Expression || len(exported.Variables) != len(testutil.TotalCostFormula().Variables) {
		t.Fatalf("costo-total changed in export: %+v", exported)
	}
	for _, f := range doc.Formulas {
		if err := formula.Validate(f); err != nil {
			t.Fatalf("exported formula %s does not validate: %v", f.ID, err)
		}
	}
}
