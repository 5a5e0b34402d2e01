package castprop

import (
	"testing"

	"github.com/castflow/castflow/pkg/graph"
)

// Shared helpers for the castprop tests. Graphs are built with explicit
// value names so assertions can follow individual edges through rewrites.

func addValues(t *testing.T, g *graph.Graph, prec graph.Precision, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := g.AddValue(graph.Value{Name: name, Prec: prec}); err != nil {
			t.Fatalf("AddValue(%q) error: %v", name, err)
		}
	}
}

func addNode(t *testing.T, g *graph.Graph, name, op string, inputs, outputs []string, attrs graph.Attrs) *graph.Node {
	t.Helper()
	n, err := g.AddNode(name, op, inputs, outputs, attrs)
	if err != nil {
		t.Fatalf("AddNode(%q) error: %v", name, err)
	}
	if n.Name != name {
		t.Fatalf("AddNode(%q) renamed node to %q", name, n.Name)
	}
	return n
}

func addCast(t *testing.T, g *graph.Graph, name, input, output string, target graph.Precision) *graph.Node {
	t.Helper()
	return addNode(t, g, name, graph.OpCast, []string{input}, []string{output}, graph.Attrs{graph.AttrTo: target})
}

func newTestPass(g *graph.Graph) *pass {
	return &pass{g: g, policy: DefaultPolicy()}
}

func mustValidate(t *testing.T, g *graph.Graph) {
	t.Helper()
	if err := g.Validate(); err != nil {
		t.Fatalf("graph invalid after rewrite: %v", err)
	}
}

// castNodes returns the names of all Cast nodes in the graph.
func castNodes(g *graph.Graph) []string {
	var names []string
	for _, n := range g.Nodes() {
		if n.Op == graph.OpCast {
			names = append(names, n.Name)
		}
	}
	return names
}

// consumerNodes returns the node names consuming the given value.
func consumerNodes(g *graph.Graph, value string) []string {
	var names []string
	for _, p := range g.Consumers(value) {
		names = append(names, p.Node)
	}
	return names
}
