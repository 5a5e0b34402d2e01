package castprop

import "github.com/castflow/castflow/pkg/graph"

// removeBackToBack removes adjacent Cast pairs in one sweep over the graph.
// For every Cast node and each Cast directly consuming its output:
//
//   - opposite target precisions annul each other and both nodes are
//     removed, provided the parent's output feeds only the child (with
//     fan-out the intermediate value is still live and the pair must stay);
//   - identical target precisions make the child redundant and only the
//     child is removed.
//
// Cancellations uncovered by removals within the same sweep are picked up by
// the next invocation of the pass, not revisited here.
func (p *pass) removeBackToBack() (bool, error) {
	modified := false
	for _, name := range p.g.NodeNames() {
		node, ok := p.g.Node(name)
		if !ok || node.Op != graph.OpCast {
			continue
		}
		target, err := castTarget(node)
		if err != nil {
			return modified, err
		}
		if target != graph.PrecisionWide && target != graph.PrecisionNarrow {
			continue
		}
	outputs:
		for _, out := range node.Outputs {
			consumers := p.g.Consumers(out)
			for _, c := range consumers {
				child, ok := p.g.Node(c.Node)
				if !ok || child.Op != graph.OpCast {
					continue
				}
				childTarget, err := castTarget(child)
				if err != nil {
					return modified, err
				}
				switch childTarget {
				case target:
					// Child duplicates the parent.
					if err := p.removeCastChain([]string{child.Name}); err != nil {
						return modified, err
					}
					modified = true
				case target.Opposite():
					if len(consumers) != 1 {
						continue
					}
					// The pair is a no-op.
					if err := p.removeCastChain([]string{node.Name, child.Name}); err != nil {
						return modified, err
					}
					modified = true
					break outputs
				}
			}
		}
	}
	return modified, nil
}
