package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castflow/castflow/pkg/pipeline"
)

// optimizeCommand creates the optimize command.
func (c *CLI) optimizeCommand() *cobra.Command {
	var (
		output     string
		policyPath string
		maxSweeps  int
		noCache    bool
		refresh    bool
	)

	cmd := &cobra.Command{
		Use:   "optimize [graph.json]",
		Short: "Minimize precision casts in a graph",
		Long: `Minimize precision casts in a graph.

The optimize command loads a graph in the castflow JSON format, pushes
precision-conversion casts toward operator boundaries, cancels pairs that
undo each other, merges duplicate casts, and writes the optimized graph
back out as JSON.

The operator classification can be replaced with --policy, pointing at a
TOML file with pass_through and precision_safe operator lists.

Results are cached locally; identical graph and policy inputs are answered
from cache on subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{
				Source:     args[0],
				PolicyPath: policyPath,
				MaxSweeps:  maxSweeps,
				Refresh:    refresh,
				Formats:    []string{pipeline.FormatJSON},
				Logger:     c.Logger,
			}
			return c.runOptimize(cmd.Context(), opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, or - for stdout (default: <input>.opt.json)")
	cmd.Flags().StringVar(&policyPath, "policy", "", "TOML file with pass_through and precision_safe operator lists")
	cmd.Flags().IntVar(&maxSweeps, "max-sweeps", 0, "cap on optimizer sweeps (default 50)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even when a cached result exists")

	return cmd
}

func (c *CLI) runOptimize(ctx context.Context, opts pipeline.Options, output string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Optimizing casts...")
	spinner.Start()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Optimization failed")
		return err
	}
	spinner.Stop()

	outputPath := output
	if outputPath == "" {
		outputPath = basePath("", opts.Source) + ".opt.json"
	}
	out, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.Write(result.Artifacts[pipeline.FormatJSON]); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	removed := result.Stats.CastsBefore - result.Stats.CastsAfter
	switch {
	case result.Stats.Sweeps == 0:
		printSuccess("Optimized (cached result)")
	case removed > 0:
		printSuccess("Removed %d casts in %d sweeps", removed, result.Stats.Sweeps)
	default:
		printSuccess("Already optimal after %d sweeps", result.Stats.Sweeps)
	}
	printStats(result.Stats.NodeCount, result.Stats.CastsBefore, result.Stats.CastsAfter,
		result.CacheInfo.OptimizeHit)
	if outputPath != "-" {
		printFile(outputPath)
	}
	return nil
}
