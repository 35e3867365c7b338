// Package nodelink renders family tree layouts through Graphviz.
//
// # Usage
//
// Convert a layout to DOT, then render it in-process:
//
//	dot := nodelink.ToDOT(l, nodelink.Options{Engine: nodelink.EngineNeato})
//	svg, err := nodelink.RenderSVG(ctx, dot, nodelink.EngineNeato)
//
// # Engines
//
// With [EngineNeato] every person is pinned at its computed position
// (pos="x,y!" with inputscale=72, y flipped because Graphviz y grows
// upward), so the picture matches the native renderer. [EngineDot]
// ignores the pins and lets Graphviz rank the tree itself, which is useful
// when the greedy layout overlaps.
//
// # Styling
//
// Parent/child links are arrows. Partnerships are undirected dashed lines
// that do not affect ranking. Placeholder and invited people have dashed
// outlines; deceased people are greyed out.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process
// rendering. PNG and PDF conversion goes through [render.ToPNG] and
// [render.ToPDF], which require librsvg.
package nodelink
