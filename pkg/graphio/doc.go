// Package graphio provides JSON import and export for dataflow graphs.
//
// # Overview
//
// This package serializes precision-annotated dataflow graphs to and from a
// simple JSON format. The format is designed for:
//
//   - Feeding graphs into the cast optimizer from external exporters
//   - Caching of optimized graphs for fast re-runs
//   - Round-trip preservation: import, optimize, export, and re-import
//
// # JSON Format
//
// The format has two required top-level arrays and two optional ones:
//
//	{
//	  "values": [
//	    {"name": "x", "precision": "narrow"},
//	    {"name": "y", "precision": "wide"}
//	  ],
//	  "nodes": [
//	    {"name": "up", "op": "Cast", "inputs": ["x"], "outputs": ["y"], "to": "wide"}
//	  ],
//	  "inputs": ["x"],
//	  "outputs": ["y"]
//	}
//
// # Value Fields
//
// Required:
//   - name: Unique string identifier
//
// Optional:
//   - precision: "wide", "narrow" or "other" (defaults to "other")
//   - placeholder: marks an absent optional operator input
//
// # Node Fields
//
// Required:
//   - name: Unique string identifier; nodes and values share one namespace
//   - op: Operator kind
//   - outputs: Produced value names ordered by slot
//
// Optional:
//   - inputs: Consumed value names ordered by slot; an empty string marks an
//     unused optional slot
//   - to: Target precision, required on Cast nodes and ignored elsewhere
//
// # Import
//
// Use [ImportJSON] to read a graph from a file path, or [ReadJSON] to read
// from any io.Reader:
//
//	g, err := graphio.ImportJSON("model.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Both functions validate identifiers, reject references to unknown values,
// and run the graph's structural validation (index consistency, acyclicity)
// before returning. Errors are wrapped with context about which value or
// node caused the problem.
//
// # Export
//
// Use [ExportJSON] to write a graph to a file, or [WriteJSON] to write to
// any io.Writer. The export lists values and nodes in sorted name order, so
// equal graphs serialize to equal bytes regardless of construction order.
// This determinism is what the cache layer hashes.
//
// # Concurrency
//
// All functions in this package are safe to call concurrently with other
// readers of the same graph, but not with concurrent modifications. The
// [ReadJSON] and [ImportJSON] functions create independent graph instances
// that can be rewritten freely after import.
package graphio
