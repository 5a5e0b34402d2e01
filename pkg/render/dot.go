package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/castflow/castflow/pkg/graph"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes value precisions in edge labels.
	// When false, edges are labeled with the value name only.
	Detailed bool
}

// ToDOT converts a dataflow graph to Graphviz DOT format.
// The resulting DOT string can be rendered with [RenderSVG].
//
// Operator nodes are drawn as boxes; Cast nodes are filled by target
// precision (lightblue for narrow, khaki for wide). Graph inputs and other
// producerless values appear as grey ellipses, graph outputs as white ones.
func ToDOT(g *graph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, name := range terminalValues(g) {
		fill := "white"
		if !g.IsOutput(name) {
			fill = "lightgrey"
		}
		fmt.Fprintf(&buf, "  %q [shape=ellipse, fillcolor=%s, label=%q];\n",
			valueID(name), fill, valueLabel(g, name, opts.Detailed))
	}
	for _, name := range g.NodeNames() {
		n, _ := g.Node(name)
		fmt.Fprintf(&buf, "  %q [%s];\n", name, strings.Join(nodeAttrs(n), ", "))
	}

	buf.WriteString("\n")
	for _, name := range g.NodeNames() {
		n, _ := g.Node(name)
		for _, in := range n.Inputs {
			if v, ok := g.Value(in); !ok || !v.Exists() {
				continue
			}
			if prod, ok := g.Producer(in); ok {
				fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n",
					prod.Node, name, valueLabel(g, in, opts.Detailed))
			} else {
				fmt.Fprintf(&buf, "  %q -> %q;\n", valueID(in), name)
			}
		}
	}
	for _, out := range g.Outputs() {
		if prod, ok := g.Producer(out); ok {
			fmt.Fprintf(&buf, "  %q -> %q;\n", prod.Node, valueID(out))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// terminalValues returns the values drawn as their own diagram nodes:
// graph outputs and every consumed value that has no producer.
func terminalValues(g *graph.Graph) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	for _, name := range g.ValueNames() {
		v, _ := g.Value(name)
		if !v.Exists() {
			continue
		}
		if _, ok := g.Producer(name); ok {
			continue
		}
		if len(g.Consumers(name)) > 0 {
			add(name)
		}
	}
	for _, out := range g.Outputs() {
		add(out)
	}
	return names
}

// valueID namespaces value diagram nodes away from operator nodes, which
// share the DOT identifier space.
func valueID(name string) string {
	return "value:" + name
}

func valueLabel(g *graph.Graph, name string, detailed bool) string {
	if !detailed {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, g.Precision(name))
}

func nodeAttrs(n *graph.Node) []string {
	label := n.Name
	if n.Op != n.Name {
		label = fmt.Sprintf("%s\n%s", n.Name, n.Op)
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if n.Op == graph.OpCast {
		switch n.Attrs[graph.AttrTo] {
		case graph.PrecisionNarrow:
			attrs = append(attrs, "fillcolor=lightblue")
		case graph.PrecisionWide:
			attrs = append(attrs, "fillcolor=khaki")
		}
	}
	return attrs
}
