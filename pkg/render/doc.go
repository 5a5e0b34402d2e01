// Package render visualizes dataflow graphs as node-link diagrams.
//
// # Overview
//
// The package converts a [graph.Graph] to Graphviz DOT format and renders it
// to SVG in-process. Cast nodes are filled by target precision so the effect
// of an optimization pass is visible at a glance: blue casts narrow, yellow
// casts widen, everything else stays white.
//
// # Usage
//
//	dot := render.ToDOT(g, render.Options{})
//	svg, err := render.RenderSVG(dot)
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering, so no Graphviz installation is required.
package render
