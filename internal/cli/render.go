package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knitfamily/knit/pkg/layout"
	"github.com/knitfamily/knit/pkg/pipeline"
)

// renderFlags registers the flags shared by render and visualize.
func renderFlags(cmd *cobra.Command, opts *pipeline.Options, formats *string) {
	cmd.Flags().StringVarP(formats, "format", "f", "", "output format(s): svg (default), json, dot, png, pdf (comma-separated)")
	cmd.Flags().StringVar(&opts.Renderer, "renderer", pipeline.DefaultRenderer, "renderer: native or graphviz")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "graphviz engine: neato (default) or dot")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "label nodes with status and id (graphviz)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title drawn above the tree (native)")
	cmd.Flags().BoolVar(&opts.BirthDates, "birth-dates", false, "show birth dates on the cards (native)")
	cmd.Flags().Float64Var(&opts.Scale, "scale", pipeline.DefaultScale, "PNG scale factor")
}

// renderCommand creates the render command: snapshot straight to artifacts.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		formats string
		output  string
		space   string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "render [snapshot]",
		Short: "Render a family tree to SVG, DOT, PNG, PDF or layout JSON",
		Long: `Render a family tree to SVG, DOT, PNG, PDF or layout JSON.

This is 'layout' followed by 'visualize' in one step. PNG and PDF need
rsvg-convert on the PATH with the native renderer; the graphviz renderer
produces them itself.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFromArgs(args, space)
			if err != nil {
				return err
			}
			opts.Formats = parseFormats(formats)
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), src, opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	c.spaceFlag(cmd, &space, "load the snapshot of a stored family space")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	c.layoutFlags(cmd, &opts)
	renderFlags(cmd, &opts, &formats)

	return cmd
}

func (c *CLI) runRender(ctx context.Context, src source, opts pipeline.Options, output string, noCache bool) error {
	if err := c.applyConfigDefaults(&opts); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	prog := newProgress(ctx)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", src))
	spinner.Start()

	result, err := c.execute(ctx, src, opts, noCache)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	prog.done("rendered", "source", src.String(), "formats", opts.Formats)

	if err := writeArtifacts(result.Artifacts, opts.Formats, outputBase(src), output); err != nil {
		return err
	}
	printStats(result.Stats.People, result.Stats.Relationships, result.CacheInfo.LayoutHit && result.CacheInfo.RenderHit)
	return nil
}

// execute runs the full pipeline, loading stored spaces through the runner.
func (c *CLI) execute(ctx context.Context, src source, opts pipeline.Options, noCache bool) (*pipeline.Result, error) {
	if src.space == "" {
		s, err := c.loadSnapshot(ctx, src)
		if err != nil {
			return nil, err
		}
		runner, err := c.newRunner(ctx, nil, "", noCache)
		if err != nil {
			return nil, fmt.Errorf("initialize runner: %w", err)
		}
		defer runner.Close()
		return runner.Execute(ctx, s, opts)
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	runner, err := c.newRunner(ctx, st, src.space, noCache)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	return runner.ExecuteSpace(ctx, src.space, opts)
}

// visualizeCommand creates the visualize command for rendering a layout file.
func (c *CLI) visualizeCommand() *cobra.Command {
	var (
		formats string
		output  string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "visualize [layout.json]",
		Short: "Render a computed layout",
		Long: `Render a computed layout.

The visualize command takes a layout JSON file (produced by 'layout') and
renders it. The layout holds every position, so this step only draws.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Formats = parseFormats(formats)
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			return c.runVisualize(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	renderFlags(cmd, &opts, &formats)

	return cmd
}

func (c *CLI) runVisualize(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	l, err := layout.ReadLayoutFile(input)
	if err != nil {
		return fmt.Errorf("load layout %s: %w", input, err)
	}
	opts.Logger = c.Logger

	runner, err := c.newRunner(ctx, nil, l.FamilySpaceID, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Rendering layout...")
	spinner.Start()

	artifacts, cacheHit, err := runner.RenderWithCacheInfo(ctx, l, opts)
	if err != nil {
		spinner.StopWithError("Visualization failed")
		return fmt.Errorf("visualize: %w", err)
	}
	spinner.Stop()

	base := strings.TrimSuffix(input, layoutSuffix)
	if base == input {
		base = strings.TrimSuffix(input, filepath.Ext(input))
	}
	if err := writeArtifacts(artifacts, opts.Formats, base, output); err != nil {
		return err
	}
	printStats(len(l.Nodes), len(l.Edges), cacheHit)
	return nil
}

// writeArtifacts writes one file per format. A single format goes to
// output verbatim when given; otherwise files are named after base, which
// is output minus a known format extension, or defaultBase.
func writeArtifacts(artifacts map[string][]byte, formats []string, defaultBase, output string) error {
	if output != "" && len(formats) == 1 {
		return writeArtifact(output, artifacts[formats[0]])
	}

	base := defaultBase
	if output != "" {
		base = output
		if trimmed := strings.TrimSuffix(output, layoutSuffix); trimmed != output {
			base = trimmed
		} else if ext := filepath.Ext(output); pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
			base = strings.TrimSuffix(output, ext)
		}
	}
	for _, format := range formats {
		if err := writeArtifact(artifactPath(base, format), artifacts[format]); err != nil {
			return err
		}
	}
	return nil
}

// artifactPath names the file for one format. Layout JSON gets its own
// suffix so it never overwrites a JSON snapshot of the same name.
func artifactPath(base, format string) string {
	if format == pipeline.FormatJSON {
		return base + layoutSuffix
	}
	return base + "." + format
}

func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}
	printFile(path)
	return nil
}
