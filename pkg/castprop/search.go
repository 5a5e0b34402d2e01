package castprop

// searchDownstream walks the consumer edges of a value, collecting into
// require the values at which a wide-targeting cast would still be needed
// if the cast currently above them were removed. A consumer that is not
// pass-through is such a boundary; pass-through consumers are walked
// through into their own outputs.
//
// The walk terminates because the graph is acyclic; fan-out may visit a
// value more than once, which the result set absorbs.
func (p *pass) searchDownstream(value string, require map[string]struct{}) {
	for _, c := range p.g.Consumers(value) {
		node, ok := p.g.Node(c.Node)
		if !ok {
			continue
		}
		if !p.policy.PassThrough(node.Op) {
			require[value] = struct{}{}
			continue
		}
		for _, out := range node.Outputs {
			p.searchDownstream(out, require)
		}
	}
}

// searchUpstream walks the producer edges of a value, collecting into
// require the values at which a narrow-targeting cast would still be needed
// if the cast currently below them were removed. Graph inputs and outputs
// of boundary operators are such boundaries; pass-through and
// precision-safe producers are walked through into their own inputs.
func (p *pass) searchUpstream(value string, require map[string]struct{}) {
	prod, ok := p.g.Producer(value)
	if !ok {
		// Graph inputs have no producer; the cast lands on the input itself.
		require[value] = struct{}{}
		return
	}
	node, ok := p.g.Node(prod.Node)
	if !ok {
		return
	}
	if !p.policy.PassThrough(node.Op) && !p.policy.PrecisionSafe(node.Op) {
		require[value] = struct{}{}
		return
	}
	for _, in := range node.Inputs {
		if in == "" {
			continue
		}
		p.searchUpstream(in, require)
	}
}
