package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/castflow/castflow/pkg/errors"
	"github.com/castflow/castflow/pkg/graphio"
	"github.com/castflow/castflow/pkg/pipeline"
)

// roundTripGraph holds a narrow/wide cast pair that cancels, leaving a
// cast-free graph after one modifying sweep.
const roundTripGraph = `{
  "values": [
    {"name": "x", "precision": "wide"},
    {"name": "s", "precision": "wide"},
    {"name": "sn", "precision": "narrow"},
    {"name": "sw", "precision": "wide"},
    {"name": "y", "precision": "wide"}
  ],
  "nodes": [
    {"name": "a", "op": "Softmax", "inputs": ["x"], "outputs": ["s"]},
    {"name": "down", "op": "Cast", "inputs": ["s"], "outputs": ["sn"], "to": "narrow"},
    {"name": "up", "op": "Cast", "inputs": ["sn"], "outputs": ["sw"], "to": "wide"},
    {"name": "b", "op": "Softmax", "inputs": ["sw"], "outputs": ["y"]}
  ],
  "inputs": ["x"],
  "outputs": ["y"]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(pipeline.NewRunner(nil, nil, nil), nil)
}

func postOptimize(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestOptimizeEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := postOptimize(t, s, `{"graph": `+roundTripGraph+`, "formats": ["json", "dot"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/optimize = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp optimizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID == "" {
		t.Error("response should carry a run ID")
	}
	if resp.GraphHash == "" {
		t.Error("response should carry the input graph hash")
	}
	if resp.Stats.CastsBefore != 2 || resp.Stats.CastsAfter != 0 {
		t.Errorf("casts = %d -> %d, want 2 -> 0", resp.Stats.CastsBefore, resp.Stats.CastsAfter)
	}
	if resp.Stats.Sweeps != 2 {
		t.Errorf("sweeps = %d, want 2", resp.Stats.Sweeps)
	}

	optimized, err := graphio.Unmarshal(resp.Graph)
	if err != nil {
		t.Fatalf("response graph does not round-trip: %v", err)
	}
	if n := countCasts(optimized); n != 0 {
		t.Errorf("response graph has %d casts, want 0", n)
	}
	if dot, ok := resp.Artifacts["dot"]; !ok || !strings.Contains(dot, "digraph G {") {
		t.Errorf("dot artifact missing or malformed: %q", dot)
	}
	if _, ok := resp.Artifacts["json"]; ok {
		t.Error("json artifact should be folded into the graph field")
	}
}

func TestOptimizeDefaultsToJSON(t *testing.T) {
	s := newTestServer(t)

	rec := postOptimize(t, s, `{"graph": `+roundTripGraph+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/optimize = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp optimizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Graph) == 0 {
		t.Error("response graph missing")
	}
	if len(resp.Artifacts) != 0 {
		t.Errorf("artifacts = %v, want none", resp.Artifacts)
	}
}

func TestOptimizeMissingGraph(t *testing.T) {
	s := newTestServer(t)

	rec := postOptimize(t, s, `{"formats": ["json"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rec); e.Code != string(apperrors.ErrCodeInvalidInput) {
		t.Errorf("error code = %q, want %q", e.Code, apperrors.ErrCodeInvalidInput)
	}
}

func TestOptimizeMalformedBody(t *testing.T) {
	s := newTestServer(t)

	rec := postOptimize(t, s, `{"graph": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rec); e.Code != string(apperrors.ErrCodeInvalidFormat) {
		t.Errorf("error code = %q, want %q", e.Code, apperrors.ErrCodeInvalidFormat)
	}
}

func TestOptimizeRejectsCyclicGraph(t *testing.T) {
	s := newTestServer(t)

	cyclic := `{
	  "values": [
	    {"name": "a", "precision": "wide"},
	    {"name": "b", "precision": "wide"}
	  ],
	  "nodes": [
	    {"name": "n1", "op": "Relu", "inputs": ["a"], "outputs": ["b"]},
	    {"name": "n2", "op": "Relu", "inputs": ["b"], "outputs": ["a"]}
	  ]
	}`
	rec := postOptimize(t, s, `{"graph": `+cyclic+`}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if e := decodeError(t, rec); e.Code != string(apperrors.ErrCodeInvalidGraph) {
		t.Errorf("error code = %q, want %q", e.Code, apperrors.ErrCodeInvalidGraph)
	}
}

func TestOptimizeRejectsUnknownFormat(t *testing.T) {
	s := newTestServer(t)

	rec := postOptimize(t, s, `{"graph": `+roundTripGraph+`, "formats": ["png"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rec); e.Code != string(apperrors.ErrCodeInvalidFormat) {
		t.Errorf("error code = %q, want %q", e.Code, apperrors.ErrCodeInvalidFormat)
	}
}

func TestOptimizeRejectsOverlappingPolicy(t *testing.T) {
	s := newTestServer(t)

	body := `{"graph": ` + roundTripGraph + `,
	  "policy": {"pass_through": ["Relu"], "precision_safe": ["Relu"]}}`
	rec := postOptimize(t, s, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rec); e.Code != string(apperrors.ErrCodeInvalidPolicy) {
		t.Errorf("error code = %q, want %q", e.Code, apperrors.ErrCodeInvalidPolicy)
	}
}

func TestOptimizeCustomPolicyKeepsBoundaryCasts(t *testing.T) {
	s := newTestServer(t)

	// With an empty policy every operator is a boundary, so the cast pair
	// still cancels but nothing else may move.
	body := `{"graph": ` + roundTripGraph + `,
	  "policy": {"pass_through": [], "precision_safe": []}}`
	rec := postOptimize(t, s, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /v1/optimize = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp optimizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stats.CastsAfter != 0 {
		t.Errorf("casts after = %d, want 0", resp.Stats.CastsAfter)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code apperrors.Code
		want int
	}{
		{apperrors.ErrCodeInvalidInput, http.StatusBadRequest},
		{apperrors.ErrCodeInvalidPolicy, http.StatusBadRequest},
		{apperrors.ErrCodeInvalidGraph, http.StatusUnprocessableEntity},
		{apperrors.ErrCodeMissingCastTarget, http.StatusUnprocessableEntity},
		{apperrors.ErrCodeNotFound, http.StatusNotFound},
		{apperrors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{apperrors.ErrCodeUnsupported, http.StatusNotImplemented},
		{apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
