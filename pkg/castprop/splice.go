package castprop

import (
	"slices"

	apperrors "github.com/castflow/castflow/pkg/errors"
	"github.com/castflow/castflow/pkg/graph"
)

// castTarget extracts the target precision of a Cast node. A Cast node whose
// target attribute is missing or malformed is a fatal invariant violation.
// Casts converting to non-floating-point types report PrecisionOther and are
// ignored by every rewrite.
func castTarget(n *graph.Node) (graph.Precision, error) {
	t, ok := n.Attrs[graph.AttrTo].(graph.Precision)
	if !ok {
		return graph.PrecisionOther, apperrors.New(apperrors.ErrCodeMissingCastTarget,
			"cast node %q has no target precision attribute", n.Name)
	}
	return t, nil
}

// insertCasts splices a Cast node targeting the given precision onto each of
// the named values. Placeholder and already-removed values are skipped.
// Values are visited in sorted order so that generated names are
// deterministic.
//
// Two shapes of splice exist:
//
//   - consumption-side, when the value's precision differs from the target:
//     the cast consumes the value and all previous consumers move to the
//     cast's fresh output value;
//   - production-side, when the value already reports the target precision:
//     the producer is rewired to a fresh opposite-precision value and the
//     cast retakes the original value's identity, so consumers keep the
//     precision the value declares.
//
// A value that is simultaneously a graph input and a graph output cannot be
// spliced and aborts the pass.
func (p *pass) insertCasts(values []string, target graph.Precision) error {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	for _, name := range sorted {
		val, ok := p.g.Value(name)
		if !ok || !val.Exists() {
			continue
		}
		if p.g.IsInput(name) && p.g.IsOutput(name) {
			return apperrors.New(apperrors.ErrCodeInvalidGraph,
				"value %q is both a graph input and a graph output", name)
		}
		var err error
		if val.Prec == target {
			err = p.insertProducerSide(val, target)
		} else {
			err = p.insertConsumerSide(val, target)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) insertConsumerSide(val *graph.Value, target graph.Precision) error {
	name := val.Name
	newVal := p.g.NewValue(name, target)
	prod, hasProd := p.g.Producer(name)
	consumers := p.g.Consumers(name)

	cast, err := p.g.AddNode(name+"_cast", graph.OpCast,
		[]string{name}, []string{newVal.Name}, graph.Attrs{graph.AttrTo: target})
	if err != nil {
		return err
	}

	// Move every pre-existing consumer of the value onto the cast output.
	for _, c := range consumers {
		consumer, ok := p.g.Node(c.Node)
		if !ok {
			continue
		}
		if hasProd {
			if err := p.g.RemoveEdge(prod.Node, c.Node, prod.Slot, c.Slot); err != nil {
				return err
			}
		} else {
			p.g.RemoveConsumer(name, c.Node, c.Slot)
		}
		consumer.Inputs[c.Slot] = newVal.Name
		if err := p.g.AddEdge(cast.Name, c.Node, 0, c.Slot); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) insertProducerSide(val *graph.Value, target graph.Precision) error {
	name := val.Name
	newVal := p.g.NewValue(name, target.Opposite())

	if prod, hasProd := p.g.Producer(name); hasProd {
		producer, ok := p.g.Node(prod.Node)
		if !ok {
			return apperrors.New(apperrors.ErrCodeInternal, "producer %q of %q not found", prod.Node, name)
		}
		producer.Outputs[prod.Slot] = newVal.Name
		p.g.SetProducer(newVal.Name, prod)
		p.g.ClearProducer(name)
	}

	// The cast retakes the original value; its consumers stay in place.
	_, err := p.g.AddNode(name+"_cast", graph.OpCast,
		[]string{newVal.Name}, []string{name}, graph.Attrs{graph.AttrTo: target})
	return err
}

// removeCastChain deletes a head-to-tail chain of Cast nodes, reconnecting
// the head's producer (or the graph input the head consumed) directly to all
// of the tail's consumers while preserving every consumer's input slot.
// An empty chain is a fatal precondition failure.
func (p *pass) removeCastChain(chain []string) error {
	if len(chain) == 0 {
		return apperrors.New(apperrors.ErrCodeEmptyCastChain, "no cast nodes given for removal")
	}
	head, ok := p.g.Node(chain[0])
	if !ok {
		return apperrors.New(apperrors.ErrCodeInternal, "chain head %q not found", chain[0])
	}
	tail, ok := p.g.Node(chain[len(chain)-1])
	if !ok {
		return apperrors.New(apperrors.ErrCodeInternal, "chain tail %q not found", chain[len(chain)-1])
	}

	chainIn := head.Inputs[0]
	chainOut := tail.Outputs[0]
	prod, hasProd := p.g.Producer(chainIn)
	consumers := p.g.Consumers(chainOut)

	if hasProd {
		producer, ok := p.g.Node(prod.Node)
		if !ok {
			return apperrors.New(apperrors.ErrCodeInternal, "producer %q of %q not found", prod.Node, chainIn)
		}
		if err := p.g.RemoveEdge(prod.Node, head.Name, prod.Slot, head.InputIndex(chainIn)); err != nil {
			return err
		}
		producer.Outputs[prod.Slot] = chainOut
		p.g.ClearProducer(chainIn)
		p.g.SetProducer(chainOut, prod)
	}

	// The chain's output value survives when a producer takes it over, so
	// graph outputs keep their identity; without a producer the consumers
	// fall back to the graph input the head consumed.
	tailSlot := tail.OutputIndex(chainOut)
	for _, c := range consumers {
		consumer, ok := p.g.Node(c.Node)
		if !ok {
			continue
		}
		if err := p.g.RemoveEdge(tail.Name, c.Node, tailSlot, c.Slot); err != nil {
			return err
		}
		if hasProd {
			// Consumers already reference chainOut, which the producer
			// now writes directly.
			if err := p.g.AddEdge(prod.Node, c.Node, prod.Slot, c.Slot); err != nil {
				return err
			}
		} else {
			consumer.Inputs[c.Slot] = chainIn
			if err := p.g.AddConsumer(chainIn, c.Node, c.Slot); err != nil {
				return err
			}
		}
	}

	for _, name := range chain {
		if err := p.g.RemoveNode(name); err != nil {
			return err
		}
	}
	return nil
}
