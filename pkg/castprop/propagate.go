package castprop

import "github.com/castflow/castflow/pkg/graph"

// propagateForwards recurses over consumer edges, sinking wide-targeting
// casts downstream.
//
// A wide-targeting Cast whose downstream boundary set excludes its own
// output is redundant where it stands: pass-through consumers tolerate the
// narrow value, so the cast is removed and re-inserted at the boundary
// values where wide precision is actually consumed.
//
// A precision-safe node whose inputs are all produced by wide-targeting
// casts may run in narrow precision: the input casts collapse into a single
// wide-targeting cast on the node's output.
//
// Any other node recurses into the consumers of its outputs, so every node
// is eventually visited along some in-edge path.
func (p *pass) propagateForwards(name string) (bool, error) {
	node, ok := p.g.Node(name)
	if !ok {
		return false, nil
	}

	if node.Op == graph.OpCast {
		target, err := castTarget(node)
		if err != nil {
			return false, err
		}
		if target != graph.PrecisionWide {
			return false, nil
		}
		castOut := node.Outputs[0]
		require := make(map[string]struct{})
		p.searchDownstream(castOut, require)
		if _, self := require[castOut]; len(require) == 0 || self {
			return false, nil
		}
		if err := p.removeCastChain([]string{name}); err != nil {
			return false, err
		}
		if err := p.insertCasts(setKeys(require), graph.PrecisionWide); err != nil {
			return false, err
		}
		return true, nil
	}

	if p.policy.PrecisionSafe(node.Op) {
		casts, ok, err := p.wideInputCasts(node)
		if err != nil || !ok {
			return false, err
		}
		for _, cast := range casts {
			if err := p.removeCastChain([]string{cast}); err != nil {
				return false, err
			}
		}
		if err := p.insertCasts([]string{node.Outputs[0]}, graph.PrecisionWide); err != nil {
			return false, err
		}
		return true, nil
	}

	modified := false
	for _, out := range node.Outputs {
		for _, c := range p.g.Consumers(out) {
			m, err := p.propagateForwards(c.Node)
			modified = modified || m
			if err != nil {
				return modified, err
			}
		}
	}
	return modified, nil
}

// wideInputCasts returns the distinct producers of all of the node's inputs,
// provided every input is produced directly by a Cast targeting wide
// precision. ok is false when any input misses that shape.
func (p *pass) wideInputCasts(node *graph.Node) ([]string, bool, error) {
	var casts []string
	seen := make(map[string]struct{})
	for _, in := range node.Inputs {
		if in == "" {
			continue
		}
		prod, hasProd := p.g.Producer(in)
		if !hasProd {
			return nil, false, nil
		}
		producer, ok := p.g.Node(prod.Node)
		if !ok || producer.Op != graph.OpCast {
			return nil, false, nil
		}
		target, err := castTarget(producer)
		if err != nil {
			return nil, false, err
		}
		if target != graph.PrecisionWide {
			return nil, false, nil
		}
		if _, dup := seen[producer.Name]; !dup {
			seen[producer.Name] = struct{}{}
			casts = append(casts, producer.Name)
		}
	}
	return casts, len(casts) > 0, nil
}

// propagateBackwards recurses over producer edges, pushing narrow-targeting
// casts upstream.
//
// A narrow-targeting Cast whose input is not itself an upstream boundary can
// move: the safety policy lets the narrow conversion happen earlier, so the
// cast is removed and re-inserted at each boundary value discovered by the
// upstream search.
func (p *pass) propagateBackwards(name string) (bool, error) {
	node, ok := p.g.Node(name)
	if !ok {
		return false, nil
	}

	if node.Op == graph.OpCast {
		target, err := castTarget(node)
		if err != nil {
			return false, err
		}
		if target != graph.PrecisionNarrow {
			return false, nil
		}
		castIn := node.Inputs[0]
		require := make(map[string]struct{})
		p.searchUpstream(castIn, require)
		if _, self := require[castIn]; self {
			return false, nil
		}
		if err := p.removeCastChain([]string{name}); err != nil {
			return false, err
		}
		if err := p.insertCasts(setKeys(require), graph.PrecisionNarrow); err != nil {
			return false, err
		}
		return true, nil
	}

	modified := false
	for _, in := range node.Inputs {
		if in == "" {
			continue
		}
		prod, hasProd := p.g.Producer(in)
		if !hasProd {
			continue
		}
		m, err := p.propagateBackwards(prod.Node)
		modified = modified || m
		if err != nil {
			return modified, err
		}
	}
	return modified, nil
}

func setKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}
