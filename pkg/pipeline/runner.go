package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/castflow/castflow/pkg/cache"
	"github.com/castflow/castflow/pkg/castprop"
	apperrors "github.com/castflow/castflow/pkg/errors"
	"github.com/castflow/castflow/pkg/graph"
	"github.com/castflow/castflow/pkg/graphio"
	"github.com/castflow/castflow/pkg/observability"
	"github.com/castflow/castflow/pkg/render"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → optimize → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		RunID:     uuid.NewString(),
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Load
	loadStart := time.Now()
	g, err := r.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.CastsBefore = countCasts(g)

	if data, err := graphio.Marshal(g); err == nil {
		result.GraphHash = cache.Hash(data)
	}

	r.Logger.Info("loaded graph",
		"source", opts.Source,
		"nodes", g.NodeCount(),
		"casts", result.Stats.CastsBefore,
		"duration", result.Stats.LoadTime)

	// Stage 2: Optimize
	optStart := time.Now()
	optimized, sweeps, optHit, err := r.OptimizeWithCacheInfo(ctx, g, result.RunID, opts)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	result.Graph = optimized
	result.Stats.OptimizeTime = time.Since(optStart)
	result.Stats.Sweeps = sweeps
	result.Stats.NodeCount = optimized.NodeCount()
	result.Stats.CastsAfter = countCasts(optimized)
	result.CacheInfo.OptimizeHit = optHit

	r.Logger.Info("optimized casts",
		"run_id", result.RunID,
		"sweeps", sweeps,
		"casts_before", result.Stats.CastsBefore,
		"casts_after", result.Stats.CastsAfter,
		"cached", optHit,
		"duration", result.Stats.OptimizeTime)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, optimized, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Load imports the input graph from opts.Source.
func (r *Runner) Load(ctx context.Context, opts Options) (*graph.Graph, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	start := time.Now()
	observability.Pipeline().OnLoadStart(ctx, opts.Source)
	g, err := graphio.ImportJSON(opts.Source)
	nodes := 0
	if g != nil {
		nodes = g.NodeCount()
	}
	observability.Pipeline().OnLoadComplete(ctx, opts.Source, nodes, time.Since(start), err)
	return g, err
}

// OptimizeWithCacheInfo runs the optimizer to a fixed point with caching and
// returns the sweep count and cache hit info. A cache hit reports zero
// sweeps.
func (r *Runner) OptimizeWithCacheInfo(ctx context.Context, g *graph.Graph, runID string, opts Options) (*graph.Graph, int, bool, error) {
	if err := opts.SetOptimizeDefaults(); err != nil {
		return nil, 0, false, err
	}
	r.applyLogger(&opts)

	// Compute cache key from the input graph and the policy
	graphData, err := graphio.Marshal(g)
	if err != nil {
		return nil, 0, false, err
	}
	graphHash := cache.Hash(graphData)
	policyHash := cache.Hash([]byte(opts.Policy.Fingerprint()))
	cacheKey := r.Keyer.GraphKey(graphHash, policyHash)

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if cached, err := graphio.Unmarshal(data); err == nil {
				observability.Cache().OnCacheHit(ctx, "graph")
				return cached, 0, true, nil
			}
			// If deserialization fails, fall through to recompute
		}
		observability.Cache().OnCacheMiss(ctx, "graph")
	}

	// Optimize
	start := time.Now()
	observability.Pipeline().OnOptimizeStart(ctx, runID, g.NodeCount())
	sweeps, err := r.optimizeToFixedPoint(ctx, g, runID, opts)
	observability.Pipeline().OnOptimizeComplete(ctx, runID, sweeps, time.Since(start), err)
	if err != nil {
		return nil, sweeps, false, err
	}

	// Cache the result
	if data, err := graphio.Marshal(g); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLOptimized)
		observability.Cache().OnCacheSet(ctx, "graph", len(data))
	}

	return g, sweeps, false, nil
}

// Optimize is a convenience wrapper that calls OptimizeWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Optimize(ctx context.Context, g *graph.Graph, opts Options) (*graph.Graph, int, error) {
	optimized, sweeps, _, err := r.OptimizeWithCacheInfo(ctx, g, uuid.NewString(), opts)
	return optimized, sweeps, err
}

// optimizeToFixedPoint re-invokes the optimizer until a sweep reports no
// change, honoring the context and the sweep cap.
func (r *Runner) optimizeToFixedPoint(ctx context.Context, g *graph.Graph, runID string, opts Options) (int, error) {
	for sweep := 1; ; sweep++ {
		if err := ctx.Err(); err != nil {
			return sweep - 1, err
		}
		if sweep > opts.MaxSweeps {
			return sweep - 1, apperrors.New(apperrors.ErrCodeInternal,
				"optimizer did not converge after %d sweeps", opts.MaxSweeps)
		}
		modified, err := castprop.Apply(g, opts.Policy)
		if err != nil {
			return sweep - 1, err
		}
		observability.Pipeline().OnOptimizeSweep(ctx, runID, sweep, modified)
		r.Logger.Debug("optimizer sweep", "run_id", runID, "sweep", sweep, "modified", modified)
		if !modified {
			return sweep, nil
		}
	}
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit
// info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, g *graph.Graph, opts Options) (map[string][]byte, bool, error) {
	opts.SetRenderDefaults()
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	graphData, err := graphio.Marshal(g)
	if err != nil {
		return nil, false, fmt.Errorf("serialize graph for cache key: %w", err)
	}
	graphHash := cache.Hash(graphData)

	// Try to get all formats from cache
	allCached := true
	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(graphHash, r.artifactOpts(format, opts))
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			artifacts[format] = data
		} else {
			allCached = false
			break
		}
	}

	if allCached && len(artifacts) == len(opts.Formats) {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return artifacts, true, nil
	}

	// Render all formats
	rendered := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		start := time.Now()
		observability.Pipeline().OnRenderStart(ctx, format)
		data, err := r.renderFormat(g, graphData, format, opts)
		observability.Pipeline().OnRenderComplete(ctx, format, time.Since(start), err)
		if err != nil {
			return nil, false, fmt.Errorf("render %s: %w", format, err)
		}
		rendered[format] = data
	}

	// Cache each format
	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(graphHash, r.artifactOpts(format, opts))
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact)
		observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	}

	return rendered, false, nil
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Render(ctx context.Context, g *graph.Graph, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, g, opts)
	return artifacts, err
}

func (r *Runner) renderFormat(g *graph.Graph, graphData []byte, format string, opts Options) ([]byte, error) {
	switch format {
	case FormatJSON:
		return graphData, nil
	case FormatDOT:
		return []byte(render.ToDOT(g, render.Options{Detailed: opts.Detailed})), nil
	case FormatSVG:
		dot := render.ToDOT(g, render.Options{Detailed: opts.Detailed})
		return render.RenderSVG(dot)
	default:
		return nil, fmt.Errorf("invalid format: %q", format)
	}
}

func (r *Runner) artifactOpts(format string, opts Options) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{Format: format, Detailed: opts.Detailed}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
