package castprop

import (
	"slices"
	"testing"

	"github.com/castflow/castflow/pkg/graph"
)

func TestFuseSiblingsMergesDuplicateCasts(t *testing.T) {
	// P -> v -> Cast(narrow) -> o1 -> SoftmaxA
	//        -> Cast(narrow) -> o2 -> SoftmaxB
	//
	// Both casts compute the same conversion of v; they fuse into one node
	// producing both output values.
	g := graph.New()
	addValues(t, g, graph.PrecisionWide, "x", "v", "ya", "yb")
	addValues(t, g, graph.PrecisionNarrow, "o1", "o2")
	addNode(t, g, "parent", "Softmax", []string{"x"}, []string{"v"}, nil)
	addCast(t, g, "c1", "v", "o1", graph.PrecisionNarrow)
	addCast(t, g, "c2", "v", "o2", graph.PrecisionNarrow)
	a := addNode(t, g, "consumerA", "Softmax", []string{"o1"}, []string{"ya"}, nil)
	b := addNode(t, g, "consumerB", "Softmax", []string{"o2"}, []string{"yb"}, nil)

	p := newTestPass(g)
	modified, err := p.fuseSiblings("parent")
	if err != nil {
		t.Fatalf("fuseSiblings() error: %v", err)
	}
	if !modified {
		t.Fatal("fuseSiblings() = false, want true")
	}
	mustValidate(t, g)

	casts := castNodes(g)
	if !slices.Equal(casts, []string{"c1_replace"}) {
		t.Fatalf("cast nodes = %v, want [c1_replace]", casts)
	}
	fused, _ := g.Node("c1_replace")
	if !slices.Equal(fused.Inputs, []string{"v"}) {
		t.Errorf("fused inputs = %v, want [v]", fused.Inputs)
	}
	if !slices.Equal(fused.Outputs, []string{"o1", "o2"}) {
		t.Errorf("fused outputs = %v, want [o1 o2]", fused.Outputs)
	}
	// Downstream consumers keep their values.
	if a.Inputs[0] != "o1" || b.Inputs[0] != "o2" {
		t.Errorf("consumer inputs = %q, %q, want o1, o2", a.Inputs[0], b.Inputs[0])
	}
}

func TestFuseSiblingsKeepsOppositeTargetsApart(t *testing.T) {
	g := graph.New()
	addValues(t, g, graph.PrecisionWide, "x", "v", "o2")
	addValues(t, g, graph.PrecisionNarrow, "o1")
	addNode(t, g, "parent", "Softmax", []string{"x"}, []string{"v"}, nil)
	addCast(t, g, "c1", "v", "o1", graph.PrecisionNarrow)
	addCast(t, g, "c2", "v", "o2", graph.PrecisionWide)

	p := newTestPass(g)
	modified, err := p.fuseSiblings("parent")
	if err != nil {
		t.Fatalf("fuseSiblings() error: %v", err)
	}
	if modified {
		t.Error("fuseSiblings() = true, want false")
	}
	if got := len(castNodes(g)); got != 2 {
		t.Errorf("cast count = %d, want 2", got)
	}
	mustValidate(t, g)
}

func TestFuseSiblingsIgnoresLoneCast(t *testing.T) {
	g := graph.New()
	addValues(t, g, graph.PrecisionWide, "x", "v")
	addValues(t, g, graph.PrecisionNarrow, "o1")
	addNode(t, g, "parent", "Softmax", []string{"x"}, []string{"v"}, nil)
	addCast(t, g, "c1", "v", "o1", graph.PrecisionNarrow)

	p := newTestPass(g)
	modified, err := p.fuseSiblings("parent")
	if err != nil {
		t.Fatalf("fuseSiblings() error: %v", err)
	}
	if modified {
		t.Error("fuseSiblings() = true, want false")
	}
	if _, ok := g.Node("c1"); !ok {
		t.Error("c1 removed, want kept")
	}
}

func TestFuseSiblingsBothGroups(t *testing.T) {
	// Two narrow and two wide casts below the same value fuse into one
	// node per target precision.
	g := graph.New()
	addValues(t, g, graph.PrecisionWide, "x", "v", "w1", "w2")
	addValues(t, g, graph.PrecisionNarrow, "n1", "n2")
	addNode(t, g, "parent", "Softmax", []string{"x"}, []string{"v"}, nil)
	addCast(t, g, "cn1", "v", "n1", graph.PrecisionNarrow)
	addCast(t, g, "cn2", "v", "n2", graph.PrecisionNarrow)
	addCast(t, g, "cw1", "v", "w1", graph.PrecisionWide)
	addCast(t, g, "cw2", "v", "w2", graph.PrecisionWide)

	p := newTestPass(g)
	modified, err := p.fuseSiblings("parent")
	if err != nil {
		t.Fatalf("fuseSiblings() error: %v", err)
	}
	if !modified {
		t.Fatal("fuseSiblings() = false, want true")
	}
	mustValidate(t, g)

	casts := castNodes(g)
	slices.Sort(casts)
	if !slices.Equal(casts, []string{"cn1_replace", "cw1_replace"}) {
		t.Errorf("cast nodes = %v, want [cn1_replace cw1_replace]", casts)
	}
}
