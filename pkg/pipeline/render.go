package pipeline

import (
	"context"
	"fmt"

	kerrors "github.com/knitfamily/knit/pkg/errors"
	"github.com/knitfamily/knit/pkg/layout"
	"github.com/knitfamily/knit/pkg/render"
	"github.com/knitfamily/knit/pkg/render/nodelink"
	"github.com/knitfamily/knit/pkg/render/svg"
)

// RenderFromLayout renders l in every format of opts.Formats.
func RenderFromLayout(ctx context.Context, l layout.Layout, opts Options) (map[string][]byte, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}
	engine, _ := nodelink.ParseEngine(opts.Engine)
	dotOpts := nodelink.Options{Detailed: opts.Detailed, Engine: engine}

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case FormatJSON:
			data, err = layout.MarshalLayout(l)
		case FormatDOT:
			data = []byte(nodelink.ToDOT(l, dotOpts))
		case FormatSVG, FormatPNG, FormatPDF:
			if opts.Renderer == RendererGraphviz {
				data, err = renderGraphviz(ctx, l, format, dotOpts, opts.Scale)
			} else {
				data, err = renderNative(ctx, l, format, opts)
			}
		default:
			return nil, kerrors.New(kerrors.ErrCodeInvalidFormat, "unsupported format: %s", format)
		}
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func renderGraphviz(ctx context.Context, l layout.Layout, format string, opts nodelink.Options, scale float64) ([]byte, error) {
	dot := nodelink.ToDOT(l, opts)
	switch format {
	case FormatPNG:
		return nodelink.RenderPNG(ctx, dot, opts.Engine, scale)
	case FormatPDF:
		return nodelink.RenderPDF(ctx, dot, opts.Engine)
	}
	return nodelink.RenderSVG(ctx, dot, opts.Engine)
}

func renderNative(ctx context.Context, l layout.Layout, format string, opts Options) ([]byte, error) {
	var svgOpts []svg.Option
	if opts.Title != "" {
		svgOpts = append(svgOpts, svg.WithTitle(opts.Title))
	}
	if opts.BirthDates {
		svgOpts = append(svgOpts, svg.WithBirthDates())
	}
	doc := svg.Render(l, svgOpts...)

	switch format {
	case FormatPNG:
		return render.ToPNG(ctx, doc, opts.Scale)
	case FormatPDF:
		return render.ToPDF(ctx, doc)
	}
	return doc, nil
}
