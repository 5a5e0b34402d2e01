package graphio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	apperrors "github.com/castflow/castflow/pkg/errors"
	"github.com/castflow/castflow/pkg/graph"
)

// ReadJSON decodes a JSON graph from r.
//
// The input must be a JSON object with "values" and "nodes" arrays and
// optional "inputs" and "outputs" arrays; see the package documentation for
// the field reference.
//
// ReadJSON returns an error if:
//   - The JSON is malformed or invalid
//   - A value or node identifier fails validation
//   - A value has a duplicate name
//   - A node references an unknown value
//   - The assembled graph fails structural validation (a dangling index
//     entry or a cycle)
//
// Errors are wrapped with context describing which value or node caused the
// problem. Use errors.Is to check for specific graph errors.
//
// The returned graph is independent of r and can be rewritten safely after
// ReadJSON returns. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*graph.Graph, error) {
	var data model
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "decode graph")
	}

	g := graph.New()
	for _, v := range data.Values {
		if err := apperrors.ValidateIdentifier(v.Name); err != nil {
			return nil, fmt.Errorf("value %q: %w", v.Name, err)
		}
		val := graph.Value{Name: v.Name, Prec: v.Precision, Placeholder: v.Placeholder}
		if _, err := g.AddValue(val); err != nil {
			return nil, fmt.Errorf("value %s: %w", v.Name, err)
		}
	}
	for _, n := range data.Nodes {
		if err := apperrors.ValidateIdentifier(n.Name); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		var attrs graph.Attrs
		if n.To != nil {
			attrs = graph.Attrs{graph.AttrTo: *n.To}
		}
		added, err := g.AddNode(n.Name, n.Op, n.Inputs, n.Outputs, attrs)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Name, err)
		}
		// AddNode resolves name collisions by suffixing; a rename here
		// means the file declared the same node twice.
		if added.Name != n.Name {
			return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "duplicate node name %q", n.Name)
		}
	}
	for _, in := range data.Inputs {
		if err := g.MarkInput(in); err != nil {
			return nil, fmt.Errorf("input %s: %w", in, err)
		}
	}
	for _, out := range data.Outputs {
		if err := g.MarkOutput(out); err != nil {
			return nil, fmt.Errorf("output %s: %w", out, err)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidGraph, err, "validate imported graph")
	}
	return g, nil
}

// ImportJSON reads a JSON file at path and returns the decoded graph.
//
// ImportJSON opens the file, decodes it using [ReadJSON], and closes the
// file. A missing file reports [apperrors.ErrCodeFileNotFound]; decode
// failures return the same errors as [ReadJSON]. The error wraps the
// underlying cause with the file path for context.
func ImportJSON(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrCodeFileNotFound, err, "graph file %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// Unmarshal decodes a graph from JSON bytes, the inverse of [Marshal].
func Unmarshal(data []byte) (*graph.Graph, error) {
	return ReadJSON(bytes.NewReader(data))
}
