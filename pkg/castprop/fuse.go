package castprop

import "github.com/castflow/castflow/pkg/graph"

// fuseSiblings merges duplicate sibling casts below the given node. For each
// output value, the consumer Cast nodes are partitioned by target precision;
// a group of two or more casts sharing the input value and the target
// computes the same result that many times, so the group is replaced by a
// single cast producing all of the group's output values.
func (p *pass) fuseSiblings(name string) (bool, error) {
	parent, ok := p.g.Node(name)
	if !ok {
		return false, nil
	}

	modified := false
	for _, out := range parent.Outputs {
		var narrowGroup, wideGroup []*graph.Node
		for _, c := range p.g.Consumers(out) {
			node, ok := p.g.Node(c.Node)
			if !ok || node.Op != graph.OpCast {
				continue
			}
			target, err := castTarget(node)
			if err != nil {
				return modified, err
			}
			switch target {
			case graph.PrecisionNarrow:
				narrowGroup = append(narrowGroup, node)
			case graph.PrecisionWide:
				wideGroup = append(wideGroup, node)
			}
		}
		if len(narrowGroup) > 1 {
			if err := p.fuseGroup(out, narrowGroup); err != nil {
				return modified, err
			}
			modified = true
		}
		if len(wideGroup) > 1 {
			if err := p.fuseGroup(out, wideGroup); err != nil {
				return modified, err
			}
			modified = true
		}
	}
	return modified, nil
}

// fuseGroup replaces a group of sibling casts with one node of the same
// operator kind and attributes, consuming the shared input and producing the
// union of the group's output values as separate output slots.
func (p *pass) fuseGroup(input string, group []*graph.Node) error {
	var outputs []string
	for _, node := range group {
		outputs = append(outputs, node.Outputs...)
	}

	first := group[0]
	// AddNode reassigns the producer of every output value to the fused
	// node, so removing the group afterwards leaves all downstream edges
	// in place.
	if _, err := p.g.AddNode(first.Name+"_replace", first.Op, []string{input}, outputs, first.Attrs); err != nil {
		return err
	}
	for _, node := range group {
		if err := p.g.RemoveNode(node.Name); err != nil {
			return err
		}
	}
	return nil
}
