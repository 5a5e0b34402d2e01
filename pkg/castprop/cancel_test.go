package castprop

import (
	"testing"

	"github.com/castflow/castflow/pkg/graph"
)

// buildOppositePair constructs A -> c1(to narrow) -> c2(to wide) -> B.
func buildOppositePair(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	addValues(t, g, graph.PrecisionNarrow, "src", "m")
	addValues(t, g, graph.PrecisionWide, "a", "w", "out")
	addNode(t, g, "A", "Conv", []string{"src"}, []string{"a"}, nil)
	addCast(t, g, "c1", "a", "m", graph.PrecisionNarrow)
	addCast(t, g, "c2", "m", "w", graph.PrecisionWide)
	addNode(t, g, "B", "Conv", []string{"w"}, []string{"out"}, nil)
	if err := g.MarkInput("src"); err != nil {
		t.Fatal(err)
	}
	if err := g.MarkOutput("out"); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCancelOppositePair(t *testing.T) {
	g := buildOppositePair(t)
	p := newTestPass(g)

	modified, err := p.removeBackToBack()
	if err != nil {
		t.Fatalf("removeBackToBack error: %v", err)
	}
	if !modified {
		t.Fatal("removeBackToBack reported no change")
	}
	mustValidate(t, g)

	if got := castNodes(g); len(got) != 0 {
		t.Errorf("cast nodes remain: %v", got)
	}
	a, _ := g.Node("A")
	b, _ := g.Node("B")
	if a.Outputs[0] != b.Inputs[0] {
		t.Errorf("A produces %q but B consumes %q", a.Outputs[0], b.Inputs[0])
	}
}

func TestCancelIdenticalPair(t *testing.T) {
	// c1 and its child c2 both target narrow: only the child is redundant.
	g := graph.New()
	addValues(t, g, graph.PrecisionWide, "a")
	addValues(t, g, graph.PrecisionNarrow, "m", "n", "out")
	addCast(t, g, "c1", "a", "m", graph.PrecisionNarrow)
	addCast(t, g, "c2", "m", "n", graph.PrecisionNarrow)
	addNode(t, g, "B", "Conv", []string{"n"}, []string{"out"}, nil)
	if err := g.MarkInput("a"); err != nil {
		t.Fatal(err)
	}

	p := newTestPass(g)
	modified, err := p.removeBackToBack()
	if err != nil {
		t.Fatalf("removeBackToBack error: %v", err)
	}
	if !modified {
		t.Fatal("removeBackToBack reported no change")
	}
	mustValidate(t, g)

	if _, ok := g.Node("c2"); ok {
		t.Error("duplicate child cast c2 still present")
	}
	c1, ok := g.Node("c1")
	if !ok {
		t.Fatal("parent cast c1 was removed")
	}
	b, _ := g.Node("B")
	if b.Inputs[0] != c1.Outputs[0] {
		t.Errorf("B consumes %q, want the parent cast output %q", b.Inputs[0], c1.Outputs[0])
	}
}

func TestCancelSkipsOppositePairWithFanOut(t *testing.T) {
	g := buildOppositePair(t)
	// Give c1's output a second consumer: the intermediate narrow value
	// stays live, so the pair must not cancel.
	addValues(t, g, graph.PrecisionNarrow, "other")
	addNode(t, g, "X", "Relu", []string{"m"}, []string{"other"}, nil)

	p := newTestPass(g)
	modified, err := p.removeBackToBack()
	if err != nil {
		t.Fatalf("removeBackToBack error: %v", err)
	}
	if modified {
		t.Error("removeBackToBack cancelled a pair whose intermediate value has fan-out")
	}
	mustValidate(t, g)
	if _, ok := g.Node("c1"); !ok {
		t.Error("c1 removed despite fan-out")
	}
	if _, ok := g.Node("c2"); !ok {
		t.Error("c2 removed despite fan-out")
	}
}

func TestCancelRepeatedCallsReachFixedPoint(t *testing.T) {
	// Four alternating casts collapse over repeated sweeps:
	// a -> n1 -> w1 -> n2 -> w2 -> B.
	g := graph.New()
	addValues(t, g, graph.PrecisionWide, "a", "w1", "w2", "out")
	addValues(t, g, graph.PrecisionNarrow, "n1v", "n2v")
	addCast(t, g, "n1", "a", "n1v", graph.PrecisionNarrow)
	addCast(t, g, "w1", "n1v", "w1", graph.PrecisionWide)
	addCast(t, g, "n2", "w1", "n2v", graph.PrecisionNarrow)
	addCast(t, g, "w2", "n2v", "w2", graph.PrecisionWide)
	addNode(t, g, "B", "Conv", []string{"w2"}, []string{"out"}, nil)
	if err := g.MarkInput("a"); err != nil {
		t.Fatal(err)
	}

	p := newTestPass(g)
	for i := 0; i < 4; i++ {
		modified, err := p.removeBackToBack()
		if err != nil {
			t.Fatalf("sweep %d error: %v", i, err)
		}
		mustValidate(t, g)
		if !modified {
			break
		}
	}

	if got := castNodes(g); len(got) != 0 {
		t.Errorf("cast nodes remain after repeated sweeps: %v", got)
	}
	b, _ := g.Node("B")
	if got := g.Consumers(b.Inputs[0]); len(got) != 1 {
		t.Errorf("consumers of B's input = %v, want just B", got)
	}
}
