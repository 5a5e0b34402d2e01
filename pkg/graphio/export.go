package graphio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/castflow/castflow/pkg/graph"
)

type model struct {
	Values  []value `json:"values"`
	Nodes   []node  `json:"nodes"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

type value struct {
	Name        string          `json:"name"`
	Precision   graph.Precision `json:"precision"`
	Placeholder bool            `json:"placeholder,omitempty"`
}

type node struct {
	Name    string           `json:"name"`
	Op      string           `json:"op"`
	Inputs  []string         `json:"inputs,omitempty"`
	Outputs []string         `json:"outputs"`
	To      *graph.Precision `json:"to,omitempty"`
}

// WriteJSON encodes a graph as JSON and writes it to w.
// Values and nodes appear in sorted name order, so structurally equal graphs
// produce identical bytes. The output can be re-imported with [ReadJSON].
func WriteJSON(g *graph.Graph, w io.Writer) error {
	out := model{
		Values:  make([]value, 0, g.ValueCount()),
		Nodes:   make([]node, 0, g.NodeCount()),
		Inputs:  g.Inputs(),
		Outputs: g.Outputs(),
	}

	for _, name := range g.ValueNames() {
		v, _ := g.Value(name)
		out.Values = append(out.Values, value{
			Name:        v.Name,
			Precision:   v.Prec,
			Placeholder: v.Placeholder,
		})
	}
	for _, name := range g.NodeNames() {
		n, _ := g.Node(name)
		nd := node{Name: n.Name, Op: n.Op, Inputs: n.Inputs, Outputs: n.Outputs}
		if t, ok := n.Attrs[graph.AttrTo].(graph.Precision); ok {
			to := t
			nd.To = &to
		}
		out.Nodes = append(out.Nodes, nd)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a graph to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(g *graph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(g, f)
}

// Marshal encodes a graph into the same deterministic JSON bytes that
// [WriteJSON] produces. The cache layer hashes this representation.
func Marshal(g *graph.Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
