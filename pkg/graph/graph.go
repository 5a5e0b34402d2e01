package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	// ErrInvalidName is returned when a node or value is created with an
	// empty seed name. All entities must have non-empty identifiers.
	ErrInvalidName = errors.New("name must not be empty")

	// ErrDuplicateValue is returned by [Graph.AddValue] when a value with
	// the same name already exists in the graph.
	ErrDuplicateValue = errors.New("duplicate value name")

	// ErrUnknownValue is returned when an operation references a value
	// that does not exist in the graph.
	ErrUnknownValue = errors.New("unknown value")

	// ErrUnknownNode is returned when an operation references a node
	// that does not exist in the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrSlotOutOfRange is returned by edge operations when an input or
	// output slot index does not exist on the referenced node.
	ErrSlotOutOfRange = errors.New("slot index out of range")

	// ErrEdgeMismatch is returned by [Graph.AddEdge] and [Graph.RemoveEdge]
	// when the producer's output slot and the consumer's input slot do not
	// name the same value. It indicates the caller rewired node definitions
	// and the index out of step.
	ErrEdgeMismatch = errors.New("edge endpoints reference different values")

	// ErrInconsistentIndex is returned by [Graph.Validate] when the
	// producer/consumer index disagrees with the node definitions.
	// This indicates a rewrite left a dangling or missing edge.
	ErrInconsistentIndex = errors.New("producer/consumer index inconsistent with node definitions")

	// ErrGraphHasCycle is returned by [Graph.Validate] when a directed
	// cycle is detected. Cycles are found with depth-first search using
	// white/gray/black coloring.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// OpCast is the operator kind of precision-conversion nodes.
const OpCast = "Cast"

// AttrTo is the attribute key under which a Cast node stores its target
// precision. A Cast node without this attribute is malformed.
const AttrTo = "to"

// Attrs holds the attribute map of a node. For Cast nodes the only attribute
// is [AttrTo] with a [Precision] value.
type Attrs map[string]any

// Port identifies one end of an edge: a node together with the input or
// output slot at which it touches the connecting value.
type Port struct {
	Node string // node name
	Slot int    // input slot for consumers, output slot for producers
}

// Value is a named edge of the graph carrying a tensor. A value has at most
// one producer and any number of consumers; values without a producer are
// either graph inputs or initializers.
//
// Placeholder values stand in for absent optional operator inputs. They carry
// no data and are skipped by every rewrite.
type Value struct {
	Name        string
	Prec        Precision
	Placeholder bool
}

// Exists reports whether the value carries real data. It is false for nil
// values and placeholders.
func (v *Value) Exists() bool { return v != nil && !v.Placeholder }

// Node is an operator instance. Inputs and Outputs hold value names ordered
// by slot; an empty string marks an unused optional input slot. Nodes reach
// other nodes only through the graph's producer/consumer index.
type Node struct {
	Name    string
	Op      string
	Inputs  []string
	Outputs []string
	Attrs   Attrs
}

// InputIndex returns the first input slot referencing the given value,
// or -1 if the node does not consume it.
func (n *Node) InputIndex(value string) int {
	return slices.Index(n.Inputs, value)
}

// OutputIndex returns the output slot producing the given value,
// or -1 if the node does not produce it.
func (n *Node) OutputIndex(value string) int {
	return slices.Index(n.Outputs, value)
}

// Graph owns the node and value arenas and the producer/consumer index.
//
// The zero value is not usable - use [New]. Graph is not safe for concurrent
// use; an optimization pass assumes exclusive ownership for the duration of
// one invocation.
type Graph struct {
	values    map[string]*Value
	nodes     map[string]*Node
	producer  map[string]Port   // value name -> producing (node, output slot)
	consumers map[string][]Port // value name -> consuming (node, input slot) pairs
	inputs    map[string]struct{}
	outputs   []string
	used      map[string]struct{} // every name ever issued, for collision-free generation
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		values:    make(map[string]*Value),
		nodes:     make(map[string]*Node),
		producer:  make(map[string]Port),
		consumers: make(map[string][]Port),
		inputs:    make(map[string]struct{}),
		used:      make(map[string]struct{}),
	}
}

// =============================================================================
// Values
// =============================================================================

// AddValue registers a value under its own name.
// Returns ErrInvalidName for an empty name or ErrDuplicateValue if the name
// is taken. Use [Graph.NewValue] to create values with generated names.
func (g *Graph) AddValue(v Value) (*Value, error) {
	if v.Name == "" {
		return nil, ErrInvalidName
	}
	if _, exists := g.values[v.Name]; exists {
		return nil, ErrDuplicateValue
	}
	val := &v
	g.values[val.Name] = val
	g.used[val.Name] = struct{}{}
	return val, nil
}

// NewValue creates a value with a fresh name derived from seed and the given
// precision. The generated name never collides with any existing node or
// value name.
func (g *Graph) NewValue(seed string, prec Precision) *Value {
	val := &Value{Name: g.generateName(seed), Prec: prec}
	g.values[val.Name] = val
	return val
}

// Value returns the value with the given name, or nil and false if absent.
func (g *Graph) Value(name string) (*Value, bool) {
	v, ok := g.values[name]
	return v, ok
}

// Precision returns the declared precision of the named value.
// Unknown values report PrecisionOther.
func (g *Graph) Precision(name string) Precision {
	if v, ok := g.values[name]; ok {
		return v.Prec
	}
	return PrecisionOther
}

// ValueNames returns all value names in sorted order.
func (g *Graph) ValueNames() []string {
	return slices.Sorted(maps.Keys(g.values))
}

// ValueCount returns the number of values in the graph.
func (g *Graph) ValueCount() int { return len(g.values) }

// =============================================================================
// Nodes
// =============================================================================

// AddNode creates a node with a fresh name derived from seed and registers it
// in the producer/consumer index: the node becomes the producer of every
// output value and a consumer of every existing input value.
//
// All referenced values must already exist (an empty input name marks an
// unused optional slot and is skipped). An output value that already has a
// producer is reassigned to the new node; callers splicing nodes into live
// edges are expected to rewire or remove the previous producer themselves.
func (g *Graph) AddNode(seed, op string, inputs, outputs []string, attrs Attrs) (*Node, error) {
	if seed == "" {
		return nil, ErrInvalidName
	}
	for _, in := range inputs {
		if in == "" {
			continue
		}
		if _, ok := g.values[in]; !ok {
			return nil, fmt.Errorf("input %q: %w", in, ErrUnknownValue)
		}
	}
	for _, out := range outputs {
		if _, ok := g.values[out]; !ok {
			return nil, fmt.Errorf("output %q: %w", out, ErrUnknownValue)
		}
	}
	if attrs == nil {
		attrs = Attrs{}
	}
	n := &Node{
		Name:    g.generateName(seed),
		Op:      op,
		Inputs:  slices.Clone(inputs),
		Outputs: slices.Clone(outputs),
		Attrs:   attrs,
	}
	g.nodes[n.Name] = n
	for slot, in := range n.Inputs {
		if in == "" {
			continue
		}
		g.consumers[in] = append(g.consumers[in], Port{Node: n.Name, Slot: slot})
	}
	for slot, out := range n.Outputs {
		g.producer[out] = Port{Node: n.Name, Slot: slot}
	}
	return n, nil
}

// Node returns the node with the given name, or nil and false if absent.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// NodeNames returns all node names in sorted order. Rewrites running over a
// snapshot of this slice must re-check [Graph.Node] before visiting, since
// earlier steps may have removed nodes.
func (g *Graph) NodeNames() []string {
	return slices.Sorted(maps.Keys(g.nodes))
}

// Nodes returns all nodes in unspecified order. The returned slice contains
// pointers to the live node structs.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of (value, consumer) edges in the graph.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, ports := range g.consumers {
		total += len(ports)
	}
	return total
}

// RemoveNode deletes a node and drops every index entry that still refers to
// it: its consumer ports on all input values, and - where the node is still
// registered as producer - the producer entry and the consumer ports of the
// now producerless output value. Callers that want an output value to
// survive must reassign its producer before removing the node.
func (g *Graph) RemoveNode(name string) error {
	n, ok := g.nodes[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownNode)
	}
	for slot, in := range n.Inputs {
		if in == "" {
			continue
		}
		g.removeConsumerPort(in, Port{Node: name, Slot: slot})
	}
	for _, out := range n.Outputs {
		if p, ok := g.producer[out]; ok && p.Node == name {
			delete(g.producer, out)
			delete(g.consumers, out)
		}
	}
	delete(g.nodes, name)
	return nil
}

// =============================================================================
// Edges
// =============================================================================

// AddEdge records the edge (src, dst, outSlot, inSlot) in the consumer index.
// The value at src's output slot must already appear at dst's input slot;
// callers rewire the consumer's input definition first, then add the edge.
func (g *Graph) AddEdge(src, dst string, outSlot, inSlot int) error {
	value, err := g.edgeValue(src, dst, outSlot, inSlot)
	if err != nil {
		return err
	}
	g.consumers[value] = append(g.consumers[value], Port{Node: dst, Slot: inSlot})
	return nil
}

// RemoveEdge deletes the edge (src, dst, outSlot, inSlot) from the consumer
// index. Both endpoint definitions must still reference the connecting value;
// remove the edge before rewiring the consumer's input definition.
func (g *Graph) RemoveEdge(src, dst string, outSlot, inSlot int) error {
	value, err := g.edgeValue(src, dst, outSlot, inSlot)
	if err != nil {
		return err
	}
	g.removeConsumerPort(value, Port{Node: dst, Slot: inSlot})
	return nil
}

func (g *Graph) edgeValue(src, dst string, outSlot, inSlot int) (string, error) {
	srcNode, ok := g.nodes[src]
	if !ok {
		return "", fmt.Errorf("%q: %w", src, ErrUnknownNode)
	}
	dstNode, ok := g.nodes[dst]
	if !ok {
		return "", fmt.Errorf("%q: %w", dst, ErrUnknownNode)
	}
	if outSlot < 0 || outSlot >= len(srcNode.Outputs) {
		return "", fmt.Errorf("output slot %d of %q: %w", outSlot, src, ErrSlotOutOfRange)
	}
	if inSlot < 0 || inSlot >= len(dstNode.Inputs) {
		return "", fmt.Errorf("input slot %d of %q: %w", inSlot, dst, ErrSlotOutOfRange)
	}
	value := srcNode.Outputs[outSlot]
	if dstNode.Inputs[inSlot] != value {
		return "", fmt.Errorf("%q -> %q: %w", src, dst, ErrEdgeMismatch)
	}
	return value, nil
}

// AddConsumer records (node, inSlot) as a consumer of the named value.
// It is the producerless counterpart of [Graph.AddEdge], used when the value
// is a graph input. The node's input definition at inSlot must already name
// the value.
func (g *Graph) AddConsumer(value, node string, inSlot int) error {
	n, ok := g.nodes[node]
	if !ok {
		return fmt.Errorf("%q: %w", node, ErrUnknownNode)
	}
	if inSlot < 0 || inSlot >= len(n.Inputs) {
		return fmt.Errorf("input slot %d of %q: %w", inSlot, node, ErrSlotOutOfRange)
	}
	if n.Inputs[inSlot] != value {
		return fmt.Errorf("%q slot %d: %w", node, inSlot, ErrEdgeMismatch)
	}
	g.consumers[value] = append(g.consumers[value], Port{Node: node, Slot: inSlot})
	return nil
}

// RemoveConsumer drops (node, inSlot) from the named value's consumer list.
// Missing entries are ignored.
func (g *Graph) RemoveConsumer(value, node string, inSlot int) {
	g.removeConsumerPort(value, Port{Node: node, Slot: inSlot})
}

func (g *Graph) removeConsumerPort(value string, p Port) {
	ports := g.consumers[value]
	for i, q := range ports {
		if q == p {
			g.consumers[value] = slices.Delete(ports, i, i+1)
			return
		}
	}
}

// Producer returns the (node, output slot) producing the named value.
// Graph inputs and initializers have no producer.
func (g *Graph) Producer(value string) (Port, bool) {
	p, ok := g.producer[value]
	return p, ok
}

// SetProducer registers port as the producer of the named value, replacing
// any previous registration.
func (g *Graph) SetProducer(value string, p Port) {
	g.producer[value] = p
}

// ClearProducer removes the producer registration of the named value,
// typically after its former producer was rewired to a different output.
func (g *Graph) ClearProducer(value string) {
	delete(g.producer, value)
}

// Consumers returns a copy of the (node, input slot) pairs consuming the
// named value, in edge insertion order.
func (g *Graph) Consumers(value string) []Port {
	return slices.Clone(g.consumers[value])
}

// =============================================================================
// Graph inputs and outputs
// =============================================================================

// MarkInput declares the named value a graph input.
func (g *Graph) MarkInput(value string) error {
	if _, ok := g.values[value]; !ok {
		return fmt.Errorf("%q: %w", value, ErrUnknownValue)
	}
	g.inputs[value] = struct{}{}
	return nil
}

// MarkOutput declares the named value a graph output. Outputs keep their
// declaration order.
func (g *Graph) MarkOutput(value string) error {
	if _, ok := g.values[value]; !ok {
		return fmt.Errorf("%q: %w", value, ErrUnknownValue)
	}
	if !slices.Contains(g.outputs, value) {
		g.outputs = append(g.outputs, value)
	}
	return nil
}

// IsInput reports whether the named value is a graph input.
func (g *Graph) IsInput(value string) bool {
	_, ok := g.inputs[value]
	return ok
}

// IsOutput reports whether the named value is a graph output.
func (g *Graph) IsOutput(value string) bool {
	return slices.Contains(g.outputs, value)
}

// Inputs returns the graph input value names in sorted order.
func (g *Graph) Inputs() []string {
	return slices.Sorted(maps.Keys(g.inputs))
}

// Outputs returns the graph output value names in declaration order.
func (g *Graph) Outputs() []string {
	return slices.Clone(g.outputs)
}

// =============================================================================
// Name generation
// =============================================================================

// generateName issues a name derived from seed that collides with no node or
// value name issued before, even ones since removed.
func (g *Graph) generateName(seed string) string {
	name := seed
	for i := 1; ; i++ {
		if _, taken := g.used[name]; !taken {
			g.used[name] = struct{}{}
			return name
		}
		name = fmt.Sprintf("%s__%d", seed, i)
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks graph integrity and returns nil if valid. It verifies:
//
//  1. Every value referenced by a node definition exists.
//  2. The producer index matches output definitions both ways.
//  3. The consumer index matches input definitions both ways.
//  4. The graph is acyclic.
//
// Returns ErrUnknownValue, ErrInconsistentIndex or ErrGraphHasCycle
// accordingly. Tests run Validate after every rewrite to pin down the
// "no dangling edge after mutation" invariant.
func (g *Graph) Validate() error {
	if err := g.validateIndex(); err != nil {
		return err
	}
	return g.detectCycles()
}

func (g *Graph) validateIndex() error {
	for name, n := range g.nodes {
		for slot, in := range n.Inputs {
			if in == "" {
				continue
			}
			if _, ok := g.values[in]; !ok {
				return fmt.Errorf("node %q input %q: %w", name, in, ErrUnknownValue)
			}
			if !slices.Contains(g.consumers[in], Port{Node: name, Slot: slot}) {
				return fmt.Errorf("node %q input %q slot %d not indexed: %w", name, in, slot, ErrInconsistentIndex)
			}
		}
		for slot, out := range n.Outputs {
			if _, ok := g.values[out]; !ok {
				return fmt.Errorf("node %q output %q: %w", name, out, ErrUnknownValue)
			}
			p, ok := g.producer[out]
			if ok && p.Node == name && p.Slot != slot {
				return fmt.Errorf("node %q output %q slot mismatch: %w", name, out, ErrInconsistentIndex)
			}
		}
	}
	for value, ports := range g.consumers {
		for _, p := range ports {
			n, ok := g.nodes[p.Node]
			if !ok {
				return fmt.Errorf("consumer %q of %q: %w", p.Node, value, ErrInconsistentIndex)
			}
			if p.Slot < 0 || p.Slot >= len(n.Inputs) || n.Inputs[p.Slot] != value {
				return fmt.Errorf("consumer %q slot %d of %q: %w", p.Node, p.Slot, value, ErrInconsistentIndex)
			}
		}
	}
	for value, p := range g.producer {
		n, ok := g.nodes[p.Node]
		if !ok {
			return fmt.Errorf("producer %q of %q: %w", p.Node, value, ErrInconsistentIndex)
		}
		if p.Slot < 0 || p.Slot >= len(n.Outputs) || n.Outputs[p.Slot] != value {
			return fmt.Errorf("producer %q slot %d of %q: %w", p.Node, p.Slot, value, ErrInconsistentIndex)
		}
	}
	return nil
}

func (g *Graph) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	var hasCycle bool

	var dfs func(name string)
	dfs = func(name string) {
		color[name] = gray
		n := g.nodes[name]
		for _, out := range n.Outputs {
			for _, p := range g.consumers[out] {
				switch color[p.Node] {
				case white:
					dfs(p.Node)
				case gray:
					hasCycle = true
					return
				}
			}
		}
		color[name] = black
	}

	for name := range g.nodes {
		if color[name] == white {
			dfs(name)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}
