package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knitfamily/knit/pkg/layout"
	"github.com/knitfamily/knit/pkg/pipeline"
)

const layoutSuffix = ".layout.json"

// layoutCommand creates the layout command for computing family tree layouts.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output  string
		space   string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "layout [snapshot]",
		Short: "Compute the family tree layout of a snapshot",
		Long: `Compute the family tree layout of a snapshot.

The snapshot is a JSON or YAML file (or a stored space with --space). The
output is a layout JSON file (same format as 'render -f json') that can be
rendered with the 'visualize' command.

Results are cached for faster subsequent runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFromArgs(args, space)
			if err != nil {
				return err
			}
			return c.runLayout(cmd.Context(), src, opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>"+layoutSuffix+")")
	c.spaceFlag(cmd, &space, "load the snapshot of a stored family space")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	c.layoutFlags(cmd, &opts)

	return cmd
}

func (c *CLI) runLayout(ctx context.Context, src source, opts pipeline.Options, output string, noCache bool) error {
	if err := c.applyConfigDefaults(&opts); err != nil {
		return err
	}
	if err := opts.ValidateForLayout(); err != nil {
		return err
	}

	s, err := c.loadSnapshot(ctx, src)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, nil, src.space, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	l, cacheHit, err := runner.LayoutWithCacheInfo(ctx, s, opts)
	if err != nil {
		return fmt.Errorf("compute layout: %w", err)
	}

	outputPath := output
	if outputPath == "" {
		outputPath = outputBase(src) + layoutSuffix
	}
	if err := layout.WriteLayoutFile(l, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(len(s.People), len(s.Relationships), cacheHit)
	if n := len(l.Leftovers); n > 0 {
		printWarning("%s not connected to any root", plural(n, "person", "people"))
	}
	printNewline()
	printNextStep("Render", appName+" visualize "+outputPath)

	return nil
}

// outputBase derives the output path without extension: the input file
// name minus its extension, or the space id.
func outputBase(src source) string {
	if src.space != "" {
		return src.space
	}
	return strings.TrimSuffix(src.path, filepath.Ext(src.path))
}
