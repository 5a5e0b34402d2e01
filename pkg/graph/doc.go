// Package graph implements the dataflow graph that castflow optimizes.
//
// A graph is an arena of nodes (operator instances) and values (named tensor
// edges) addressed by stable string identifiers. Nodes reference values by
// name through ordered input and output slots; nodes never reference other
// nodes directly. Connectivity is derived from two index maps maintained by
// the graph itself:
//
//   - producer: value name → (node, output slot) that writes it
//   - consumers: value name → list of (node, input slot) that read it
//
// Every mutation offered by the package ([Graph.AddNode], [Graph.RemoveNode],
// [Graph.AddEdge], [Graph.RemoveEdge], ...) keeps both indices in sync with
// the node definitions, so a rewrite pass can interleave insertions, rewires
// and deletions in the middle of a traversal without ever observing a
// dangling edge. [Graph.Validate] checks the full consistency invariant plus
// acyclicity and is intended for tests and debugging.
//
// Values carry a precision ([PrecisionWide], [PrecisionNarrow] or
// [PrecisionOther]); Cast nodes convert between the two floating-point
// precisions and store their target under the [AttrTo] attribute.
package graph
