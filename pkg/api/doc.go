// Package api exposes the optimization pipeline over HTTP.
//
// # Overview
//
// The server wraps a [pipeline.Runner] (the same one the CLI uses) behind
// a small JSON API built on chi:
//
//   - POST /v1/optimize: optimize a graph submitted in the request body
//   - GET  /healthz: liveness probe
//
// # Optimize
//
// The request body carries the graph in the graphio JSON format plus
// optional knobs:
//
//	{
//	  "graph":   { "values": [...], "nodes": [...] },
//	  "formats": ["json", "dot"],
//	  "policy":  { "pass_through": [...], "precision_safe": [...] }
//	}
//
// The response contains the optimized graph, per-stage statistics, cache
// hit information, and any extra rendered artifacts:
//
//	{
//	  "run_id": "...",
//	  "graph":  { ... },
//	  "stats":  { "casts_before": 4, "casts_after": 1, "sweeps": 2, ... },
//	  "cache":  { "optimize_hit": false, "render_hit": false }
//	}
//
// Errors are reported as {"error": {"code", "message"}} with the code
// taken from the errors package, so clients can distinguish a malformed
// graph (400) from a server fault (500) without parsing messages.
//
// # Running
//
// Construct a server around a runner and serve it:
//
//	runner := pipeline.NewRunner(fileCache, nil, logger)
//	srv := api.NewServer(runner, logger)
//	err := srv.ListenAndServe(ctx, ":8080")
//
// ListenAndServe shuts down gracefully when ctx is cancelled.
package api
