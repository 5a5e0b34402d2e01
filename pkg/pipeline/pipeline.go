// Package pipeline provides the core optimization pipeline for castflow.
//
// This package implements the complete load → optimize → render pipeline
// that can be used by CLI and API components. By centralizing this logic,
// we ensure consistent behavior across all entry points and avoid code
// duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Import a precision-annotated dataflow graph from JSON
//  2. Optimize: Run the cast optimizer to a fixed point
//  3. Render: Generate output in various formats (DOT, SVG, JSON)
//
// Each stage can be run independently or as part of the complete pipeline.
// Optimized graphs and rendered artifacts are cached by content hash, so
// re-running the pipeline over an unchanged graph and policy is a lookup.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Source:  "model.json",
//	    Formats: []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// Run individual stages:
//
//	g, err := runner.Load(ctx, opts)
//	g, stats, err := runner.Optimize(ctx, g, opts)
//	artifacts, err := runner.Render(ctx, g, opts)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/castflow/castflow/pkg/castprop"
	"github.com/castflow/castflow/pkg/graph"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultMaxSweeps bounds the optimize loop. Each sweep strictly
	// reduces or relocates casts, so well-formed graphs converge long
	// before this; the cap guards against a policy that makes two rewrites
	// undo each other forever.
	DefaultMaxSweeps = 50
)

// Format constants for output formats.
const (
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT:  true,
	FormatSVG:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the optimization pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Load options
	Source string `json:"source,omitempty"` // Path of the input graph JSON

	// Optimize options
	PolicyPath string `json:"policy_path,omitempty"` // TOML policy file; empty uses the built-in policy
	MaxSweeps  int    `json:"max_sweeps,omitempty"`
	Refresh    bool   `json:"refresh,omitempty"` // Skip cache reads (still writes)

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"` // Include precisions in render labels

	// Runtime options (not serialized)
	Logger *log.Logger      `json:"-"`
	Policy *castprop.Policy `json:"-"` // Overrides PolicyPath when set

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies this pipeline invocation in logs and hooks.
	RunID string

	// Graph is the optimized graph.
	Graph *graph.Graph

	// GraphHash is the content hash of the input graph.
	GraphHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount    int // Nodes in the optimized graph
	CastsBefore  int
	CastsAfter   int
	Sweeps       int // Optimizer sweeps until fixed point
	LoadTime     time.Duration
	OptimizeTime time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	OptimizeHit bool // Whether the optimized graph came from cache
	RenderHit   bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: dot, svg, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the
// full pipeline. This method is idempotent - calling it multiple times has
// the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.SetOptimizeDefaults(); err != nil {
		return err
	}
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks required fields for loading.
func (o *Options) ValidateForLoad() error {
	if o.Source == "" {
		return fmt.Errorf("source is required")
	}
	o.setLoggerDefault()
	return nil
}

// SetOptimizeDefaults resolves the policy and sweep cap.
func (o *Options) SetOptimizeDefaults() error {
	if o.MaxSweeps == 0 {
		o.MaxSweeps = DefaultMaxSweeps
	}
	o.setLoggerDefault()
	if o.Policy != nil {
		return nil
	}
	if o.PolicyPath == "" {
		o.Policy = castprop.DefaultPolicy()
		return nil
	}
	p, err := castprop.LoadPolicy(o.PolicyPath)
	if err != nil {
		return err
	}
	o.Policy = p
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	o.setLoggerDefault()
}

func (o *Options) setLoggerDefault() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// countCasts returns the number of Cast nodes in the graph.
func countCasts(g *graph.Graph) int {
	count := 0
	for _, n := range g.Nodes() {
		if n.Op == graph.OpCast {
			count++
		}
	}
	return count
}
