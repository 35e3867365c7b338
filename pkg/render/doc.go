// Package render turns family tree layouts into images.
//
// # Overview
//
// Two renderers consume a [layout.Layout]:
//
//   - [svg]: a native SVG writer that draws person cards at their computed
//     positions. No external tools are needed.
//   - [nodelink]: emits Graphviz DOT with every person pinned to its
//     computed position and renders it in-process with go-graphviz.
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	doc := svg.Render(l)
//	png, err := render.ToPNG(ctx, doc, 2.0)
//
// [layout.Layout]: github.com/knitfamily/knit/pkg/layout.Layout
// [svg]: github.com/knitfamily/knit/pkg/render/svg
// [nodelink]: github.com/knitfamily/knit/pkg/render/nodelink
package render
