package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/castflow/castflow/pkg/cache"
	"github.com/castflow/castflow/pkg/castprop"
	apperrors "github.com/castflow/castflow/pkg/errors"
	"github.com/castflow/castflow/pkg/graph"
	"github.com/castflow/castflow/pkg/graphio"
	"github.com/castflow/castflow/pkg/pipeline"
)

// optimizeRequest is the body of POST /v1/optimize. Only Graph is required.
type optimizeRequest struct {
	Graph json.RawMessage `json:"graph"`

	// Policy replaces the built-in operator classification when set.
	Policy *policySpec `json:"policy,omitempty"`

	Formats   []string `json:"formats,omitempty"`
	Detailed  bool     `json:"detailed,omitempty"`
	MaxSweeps int      `json:"max_sweeps,omitempty"`
	Refresh   bool     `json:"refresh,omitempty"`
}

type policySpec struct {
	PassThrough   []string `json:"pass_through"`
	PrecisionSafe []string `json:"precision_safe"`
}

type optimizeResponse struct {
	RunID     string            `json:"run_id"`
	GraphHash string            `json:"graph_hash"`
	Graph     json.RawMessage   `json:"graph"`
	Stats     statsPayload      `json:"stats"`
	Cache     cachePayload      `json:"cache"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

type statsPayload struct {
	NodeCount    int    `json:"node_count"`
	CastsBefore  int    `json:"casts_before"`
	CastsAfter   int    `json:"casts_after"`
	Sweeps       int    `json:"sweeps"`
	OptimizeTime string `json:"optimize_time"`
	RenderTime   string `json:"render_time"`
}

type cachePayload struct {
	OptimizeHit bool `json:"optimize_hit"`
	RenderHit   bool `json:"render_hit"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "decode request body"))
		return
	}
	if len(req.Graph) == 0 {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "request is missing the graph"))
		return
	}

	g, err := graphio.Unmarshal(req.Graph)
	if err != nil {
		s.writeError(w, err)
		return
	}

	opts := pipeline.Options{
		MaxSweeps: req.MaxSweeps,
		Refresh:   req.Refresh,
		Formats:   req.Formats,
		Detailed:  req.Detailed,
		Logger:    s.logger,
	}
	if req.Policy != nil {
		policy, err := castprop.NewPolicy(req.Policy.PassThrough, req.Policy.PrecisionSafe)
		if err != nil {
			s.writeError(w, err)
			return
		}
		opts.Policy = policy
	}
	if err := pipeline.ValidateFormats(req.Formats); err != nil {
		s.writeError(w, err)
		return
	}

	runID := uuid.NewString()
	castsBefore := countCasts(g)

	// Hash the canonical serialization, not the request bytes, so the same
	// graph submitted with different whitespace reports the same hash.
	inputData, err := graphio.Marshal(g)
	if err != nil {
		s.writeError(w, err)
		return
	}
	inputHash := cache.Hash(inputData)

	optStart := time.Now()
	optimized, sweeps, optHit, err := s.runner.OptimizeWithCacheInfo(r.Context(), g, runID, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	optimizeTime := time.Since(optStart)

	renderStart := time.Now()
	artifacts, renderHit, err := s.runner.RenderWithCacheInfo(r.Context(), optimized, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	renderTime := time.Since(renderStart)

	graphData, ok := artifacts[pipeline.FormatJSON]
	if !ok {
		// The json artifact is the response graph, so render it even when
		// the caller only asked for other formats.
		graphData, err = graphio.Marshal(optimized)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	resp := optimizeResponse{
		RunID:     runID,
		GraphHash: inputHash,
		Graph:     graphData,
		Stats: statsPayload{
			NodeCount:    optimized.NodeCount(),
			CastsBefore:  castsBefore,
			CastsAfter:   countCasts(optimized),
			Sweeps:       sweeps,
			OptimizeTime: optimizeTime.String(),
			RenderTime:   renderTime.String(),
		},
		Cache: cachePayload{OptimizeHit: optHit, RenderHit: renderHit},
	}
	for format, data := range artifacts {
		if format == pipeline.FormatJSON {
			continue
		}
		if resp.Artifacts == nil {
			resp.Artifacts = make(map[string]string)
		}
		resp.Artifacts[format] = string(data)
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeError translates an application error into an HTTP status and a
// structured error body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: errorPayload{
		Code:    string(code),
		Message: apperrors.UserMessage(err),
	}})
}

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeInvalidFormat,
		apperrors.ErrCodeInvalidPolicy:
		return http.StatusBadRequest
	case apperrors.ErrCodeInvalidGraph,
		apperrors.ErrCodeMissingCastTarget,
		apperrors.ErrCodeEmptyCastChain:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func countCasts(g *graph.Graph) int {
	count := 0
	for _, n := range g.Nodes() {
		if n.Op == graph.OpCast {
			count++
		}
	}
	return count
}
