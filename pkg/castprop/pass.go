package castprop

import "github.com/castflow/castflow/pkg/graph"

// pass holds the state of one optimizer invocation: the graph being
// rewritten, the operator policy, and a queue of node removals deferred to
// the end of the invocation. The splice primitives today remove nodes
// eagerly, so the queue stays empty; it is flushed regardless so a rewrite
// that wants to defer a removal past a traversal can simply append to it.
type pass struct {
	g        *graph.Graph
	policy   *Policy
	deferred []string
}

// Apply runs one sweep of the cast optimizer over the graph and reports
// whether anything changed. The sequence is fixed:
//
//  1. forward propagation over every node,
//  2. back-to-back cancellation,
//  3. backward propagation from every graph output, skipped when an
//     earlier stage already modified the graph,
//  4. sibling fusion over every node,
//  5. flush of deferred removals.
//
// Apply does not loop to a local fixed point; callers re-invoke it until it
// reports no change. A nil policy selects [DefaultPolicy].
//
// On a fatal invariant violation (see [github.com/castflow/castflow/pkg/errors])
// the invocation aborts; the graph may be left partially rewritten and
// should be discarded.
func Apply(g *graph.Graph, policy *Policy) (bool, error) {
	if policy == nil {
		policy = DefaultPolicy()
	}
	p := &pass{g: g, policy: policy}
	modified := false

	// Propagate wide casts forward.
	for _, name := range g.NodeNames() {
		m, err := p.propagateForwards(name)
		modified = modified || m
		if err != nil {
			return modified, err
		}
	}

	m, err := p.removeBackToBack()
	modified = modified || m
	if err != nil {
		return modified, err
	}

	// Propagate narrow casts backward.
	if !modified {
		for _, out := range g.Outputs() {
			prod, ok := g.Producer(out)
			if !ok {
				continue
			}
			m, err := p.propagateBackwards(prod.Node)
			modified = modified || m
			if err != nil {
				return modified, err
			}
		}
	}

	// Fuse sibling casts sharing an input and a target.
	for _, name := range g.NodeNames() {
		m, err := p.fuseSiblings(name)
		modified = modified || m
		if err != nil {
			return modified, err
		}
	}

	if err := p.flushDeferred(); err != nil {
		return modified, err
	}
	return modified, nil
}

func (p *pass) flushDeferred() error {
	for _, name := range p.deferred {
		if _, ok := p.g.Node(name); !ok {
			continue
		}
		if err := p.g.RemoveNode(name); err != nil {
			return err
		}
	}
	p.deferred = p.deferred[:0]
	return nil
}
