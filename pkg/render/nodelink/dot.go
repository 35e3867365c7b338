package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/layout"
	"github.com/knitfamily/knit/pkg/render"
)

// Engine selects the Graphviz layout program.
type Engine string

const (
	// EngineNeato honours pinned positions.
	EngineNeato Engine = "neato"
	// EngineDot recomputes a ranked layout.
	EngineDot Engine = "dot"
)

// ParseEngine validates an engine name. Empty means neato.
func ParseEngine(s string) (Engine, error) {
	switch Engine(strings.ToLower(s)) {
	case "", EngineNeato:
		return EngineNeato, nil
	case EngineDot:
		return EngineDot, nil
	}
	return "", fmt.Errorf("unknown graphviz engine %q (must be neato or dot)", s)
}

func (e Engine) layout() graphviz.Layout {
	if e == EngineDot {
		return graphviz.DOT
	}
	return graphviz.NEATO
}

// Options configures DOT generation.
type Options struct {
	// Detailed adds status, birth date and generation to labels.
	Detailed bool
	// Engine controls whether positions are pinned.
	Engine Engine
}

// ToDOT converts a layout to Graphviz DOT. Edges whose endpoints are not
// nodes of the layout are left out so Graphviz does not invent people.
func ToDOT(l layout.Layout, opts Options) string {
	pinned := opts.Engine != EngineDot

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	if pinned {
		buf.WriteString("  inputscale=72;\n")
		buf.WriteString("  splines=true;\n")
		buf.WriteString("  overlap=true;\n")
	} else {
		buf.WriteString("  rankdir=TB;\n")
		buf.WriteString("  ranksep=0.6;\n")
		buf.WriteString("  nodesep=0.3;\n")
	}
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.15,0.08\"];\n")
	buf.WriteString("\n")

	for _, n := range l.Nodes {
		attrs := fmtAttrs(n, fmtLabel(n, opts.Detailed))
		if pinned {
			attrs = append(attrs, fmt.Sprintf("pos=\"%s,%s!\"", fmtCoord(n.X), fmtCoord(flipY(n.Y))))
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	nodes := l.NodeMap()
	buf.WriteString("\n")
	for _, e := range l.Edges {
		_, okFrom := nodes[e.From]
		_, okTo := nodes[e.To]
		if !okFrom || !okTo {
			continue
		}
		if e.Kind == family.Partnership {
			fmt.Fprintf(&buf, "  %q -> %q [dir=none, style=dashed, constraint=false];\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// flipY converts a downward layout y into Graphviz's upward y.
func flipY(y float64) float64 {
	if y == 0 {
		return 0
	}
	return -y
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fmtLabel(n layout.Node, detailed bool) string {
	if !detailed {
		return n.Label
	}
	parts := []string{n.Label}
	if n.Status != "" {
		parts = append(parts, "status: "+string(n.Status))
	}
	if n.Born != "" {
		parts = append(parts, "born: "+n.Born)
	}
	parts = append(parts, fmt.Sprintf("generation: %d", n.Level))
	return strings.Join(parts, "\n")
}

func fmtAttrs(n layout.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch n.Status {
	case family.StatusPlaceholder, family.StatusInvited:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	case family.StatusDeceased:
		attrs = append(attrs, "fillcolor=\"#e5e5e5\"", "fontcolor=\"#555555\"")
	}
	return attrs
}

// RenderSVG renders DOT to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string, engine Engine) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(engine.layout())

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with a plain
// viewBox so the SVG scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

// RenderPNG renders DOT as PNG via SVG conversion.
func RenderPNG(ctx context.Context, dot string, engine Engine, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot, engine)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}

// RenderPDF renders DOT as PDF via SVG conversion.
func RenderPDF(ctx context.Context, dot string, engine Engine) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot, engine)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}
