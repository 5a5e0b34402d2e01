package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castflow/castflow/pkg/pipeline"
)

// renderCommand creates the render command for generating diagrams.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		output     string
		formatsStr string
		detailed   bool
		optimize   bool
		policyPath string
		noCache    bool
		refresh    bool
	)

	cmd := &cobra.Command{
		Use:   "render [graph.json]",
		Short: "Render a graph as a DOT or SVG diagram",
		Long: `Render a graph as a DOT or SVG diagram.

The render command loads a graph, optionally optimizes its casts first,
and writes one file per requested format. Cast nodes are colored by their
target precision so conversion points stand out.

With multiple formats the output path acts as a base; the format is
appended as the file extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{
				Source:     args[0],
				PolicyPath: policyPath,
				Refresh:    refresh,
				Formats:    parseFormats(formatsStr, pipeline.FormatSVG),
				Detailed:   detailed,
				Logger:     c.Logger,
			}
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), opts, output, optimize, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, json (comma-separated)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "label edges with value precisions")
	cmd.Flags().BoolVar(&optimize, "optimize", false, "optimize casts before rendering")
	cmd.Flags().StringVar(&policyPath, "policy", "", "TOML policy file (with --optimize)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even when a cached result exists")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, opts pipeline.Options, output string, optimize, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	pr := newProgress(c.Logger)

	g, err := runner.Load(ctx, opts)
	if err != nil {
		return err
	}
	c.Logger.Debug("loaded graph", "nodes", g.NodeCount(), "edges", g.EdgeCount())

	if optimize {
		optimized, _, err := runner.Optimize(ctx, g, opts)
		if err != nil {
			return err
		}
		g = optimized
	}

	spinner := newSpinnerWithContext(ctx, "Rendering...")
	spinner.Start()

	artifacts, cacheHit, err := runner.RenderWithCacheInfo(ctx, g, opts)
	if err != nil {
		spinner.StopWithError("Rendering failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Stop()

	base := basePath(output, opts.Source)
	for _, format := range opts.Formats {
		path := output
		if path == "" || len(opts.Formats) > 1 {
			path = base + "." + format
		}
		out, err := openOutput(path)
		if err != nil {
			return err
		}
		if _, err := out.Write(artifacts[format]); err != nil {
			out.Close()
			return fmt.Errorf("write output %s: %w", path, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
		printFile(path)
	}

	if cacheHit {
		printDetail("All formats served from cache")
	}
	pr.done(fmt.Sprintf("Rendered %d format(s)", len(opts.Formats)))
	return nil
}
