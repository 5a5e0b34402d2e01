package castprop

import (
	"slices"
	"testing"

	"github.com/castflow/castflow/pkg/graph"
)

func TestPropagateForwardsSinksCastToBoundary(t *testing.T) {
	// x -> Cast(wide) -> xw -> Transpose -> t -> Softmax -> y
	//
	// Transpose tolerates the narrow value, so the cast sinks below it and
	// lands on t, the value Softmax actually needs in wide precision.
	g := graph.New()
	addValues(t, g, graph.PrecisionNarrow, "x")
	addValues(t, g, graph.PrecisionWide, "xw", "t", "y")
	addCast(t, g, "c1", "x", "xw", graph.PrecisionWide)
	transpose := addNode(t, g, "transpose", "Transpose", []string{"xw"}, []string{"t"}, nil)
	softmax := addNode(t, g, "softmax", "Softmax", []string{"t"}, []string{"y"}, nil)
	if err := g.MarkInput("x"); err != nil {
		t.Fatal(err)
	}

	p := newTestPass(g)
	modified, err := p.propagateForwards("c1")
	if err != nil {
		t.Fatalf("propagateForwards() error: %v", err)
	}
	if !modified {
		t.Fatal("propagateForwards() = false, want true")
	}
	mustValidate(t, g)

	casts := castNodes(g)
	if !slices.Equal(casts, []string{"t_cast"}) {
		t.Fatalf("cast nodes = %v, want [t_cast]", casts)
	}
	// t already declares wide precision, so the cast splices on the
	// production side: Transpose writes a fresh narrow value and the cast
	// retakes t, leaving Softmax untouched.
	if transpose.Inputs[0] != "x" {
		t.Errorf("transpose input = %q, want x", transpose.Inputs[0])
	}
	if transpose.Outputs[0] != "t__1" {
		t.Errorf("transpose output = %q, want t__1", transpose.Outputs[0])
	}
	if softmax.Inputs[0] != "t" {
		t.Errorf("softmax input = %q, want t", softmax.Inputs[0])
	}
	cast, _ := g.Node("t_cast")
	if target, err := castTarget(cast); err != nil || target != graph.PrecisionWide {
		t.Errorf("castTarget(t_cast) = %v, %v, want wide", target, err)
	}
}

func TestPropagateForwardsKeepsCastAtBoundary(t *testing.T) {
	// The cast already sits directly above its boundary; moving it would
	// change nothing, so the rewrite declines.
	g := graph.New()
	addValues(t, g, graph.PrecisionNarrow, "x")
	addValues(t, g, graph.PrecisionWide, "xw", "y")
	addCast(t, g, "c1", "x", "xw", graph.PrecisionWide)
	addNode(t, g, "softmax", "Softmax", []string{"xw"}, []string{"y"}, nil)

	p := newTestPass(g)
	modified, err := p.propagateForwards("c1")
	if err != nil {
		t.Fatalf("propagateForwards() error: %v", err)
	}
	if modified {
		t.Error("propagateForwards() = true, want false")
	}
	if _, ok := g.Node("c1"); !ok {
		t.Error("c1 removed, want kept")
	}
	mustValidate(t, g)
}

func TestPropagateForwardsCollapsesInputCasts(t *testing.T) {
	// p1 -> Cast(wide) -> p1w \
	//                          Add -> s -> Softmax -> y
	// p2 -> Cast(wide) -> p2w /
	//
	// Add tolerates narrow operands, so both input casts collapse into a
	// single wide cast below it.
	g := graph.New()
	addValues(t, g, graph.PrecisionNarrow, "p1", "p2", "s")
	addValues(t, g, graph.PrecisionWide, "p1w", "p2w", "y")
	addCast(t, g, "c1", "p1", "p1w", graph.PrecisionWide)
	addCast(t, g, "c2", "p2", "p2w", graph.PrecisionWide)
	add := addNode(t, g, "add", "Add", []string{"p1w", "p2w"}, []string{"s"}, nil)
	softmax := addNode(t, g, "softmax", "Softmax", []string{"s"}, []string{"y"}, nil)
	if err := g.MarkInput("p1"); err != nil {
		t.Fatal(err)
	}
	if err := g.MarkInput("p2"); err != nil {
		t.Fatal(err)
	}

	p := newTestPass(g)
	modified, err := p.propagateForwards("add")
	if err != nil {
		t.Fatalf("propagateForwards() error: %v", err)
	}
	if !modified {
		t.Fatal("propagateForwards() = false, want true")
	}
	mustValidate(t, g)

	casts := castNodes(g)
	if !slices.Equal(casts, []string{"s_cast"}) {
		t.Fatalf("cast nodes = %v, want [s_cast]", casts)
	}
	if !slices.Equal(add.Inputs, []string{"p1", "p2"}) {
		t.Errorf("add inputs = %v, want [p1 p2]", add.Inputs)
	}
	// s declares narrow precision, so the new cast splices on the
	// consumption side and Softmax moves onto its fresh wide output.
	if softmax.Inputs[0] != "s__1" {
		t.Errorf("softmax input = %q, want s__1", softmax.Inputs[0])
	}
}

func TestPropagateForwardsCollapseSharedCast(t *testing.T) {
	// One cast feeds both operands of Add. The collapse must remove it
	// exactly once.
	g := graph.New()
	addValues(t, g, graph.PrecisionNarrow, "x", "s")
	addValues(t, g, graph.PrecisionWide, "xw")
	addCast(t, g, "c1", "x", "xw", graph.PrecisionWide)
	add := addNode(t, g, "add", "Add", []string{"xw", "xw"}, []string{"s"}, nil)
	if err := g.MarkInput("x"); err != nil {
		t.Fatal(err)
	}

	p := newTestPass(g)
	modified, err := p.propagateForwards("add")
	if err != nil {
		t.Fatalf("propagateForwards() error: %v", err)
	}
	if !modified {
		t.Fatal("propagateForwards() = false, want true")
	}
	mustValidate(t, g)

	if !slices.Equal(add.Inputs, []string{"x", "x"}) {
		t.Errorf("add inputs = %v, want [x x]", add.Inputs)
	}
	if casts := castNodes(g); !slices.Equal(casts, []string{"s_cast"}) {
		t.Errorf("cast nodes = %v, want [s_cast]", casts)
	}
}

func TestPropagateBackwardsLiftsCastAboveActivation(t *testing.T) {
	// in -> Relu -> r -> Cast(narrow) -> rn -> Softmax -> y
	//
	// Relu is pass-through, so the narrow cast lifts above it onto the
	// graph input.
	g := graph.New()
	addValues(t, g, graph.PrecisionWide, "in", "r", "y")
	addValues(t, g, graph.PrecisionNarrow, "rn")
	relu := addNode(t, g, "relu", "Relu", []string{"in"}, []string{"r"}, nil)
	addCast(t, g, "cn", "r", "rn", graph.PrecisionNarrow)
	sigmoid := addNode(t, g, "softmax", "Softmax", []string{"rn"}, []string{"y"}, nil)
	if err := g.MarkInput("in"); err != nil {
		t.Fatal(err)
	}
	if err := g.MarkOutput("y"); err != nil {
		t.Fatal(err)
	}

	p := newTestPass(g)
	modified, err := p.propagateBackwards("softmax")
	if err != nil {
		t.Fatalf("propagateBackwards() error: %v", err)
	}
	if !modified {
		t.Fatal("propagateBackwards() = false, want true")
	}
	mustValidate(t, g)

	casts := castNodes(g)
	if !slices.Equal(casts, []string{"in_cast"}) {
		t.Fatalf("cast nodes = %v, want [in_cast]", casts)
	}
	if relu.Inputs[0] != "in__1" {
		t.Errorf("relu input = %q, want in__1", relu.Inputs[0])
	}
	if relu.Outputs[0] != "rn" {
		t.Errorf("relu output = %q, want rn", relu.Outputs[0])
	}
	if sigmoid.Inputs[0] != "rn" {
		t.Errorf("softmax input = %q, want rn", sigmoid.Inputs[0])
	}
}

func TestPropagateBackwardsKeepsCastOnInput(t *testing.T) {
	// The cast already consumes a graph input; the upstream search finds
	// only that same value, so the cast stays.
	g := graph.New()
	addValues(t, g, graph.PrecisionWide, "in")
	addValues(t, g, graph.PrecisionNarrow, "n")
	addCast(t, g, "cn", "in", "n", graph.PrecisionNarrow)
	if err := g.MarkInput("in"); err != nil {
		t.Fatal(err)
	}

	p := newTestPass(g)
	modified, err := p.propagateBackwards("cn")
	if err != nil {
		t.Fatalf("propagateBackwards() error: %v", err)
	}
	if modified {
		t.Error("propagateBackwards() = true, want false")
	}
	if _, ok := g.Node("cn"); !ok {
		t.Error("cn removed, want kept")
	}
	mustValidate(t, g)
}
