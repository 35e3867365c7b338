package svg

import (
	"bytes"
	"fmt"
	"maps"

	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/layout"
)

// DefaultStatusColors are the card fills per status.
var DefaultStatusColors = map[family.Status]string{
	family.StatusActive:      "#dbeafe",
	family.StatusInvited:     "#fef3c7",
	family.StatusPlaceholder: "#f3f4f6",
	family.StatusDeceased:    "#e5e5e5",
}

const (
	strokeColor = "#374151"
	edgeColor   = "#6b7280"
	cardRadius  = 8
)

// Option configures [Render].
type Option func(*renderer)

type renderer struct {
	title  string
	colors map[family.Status]string
	births bool
}

// WithTitle sets the document title, drawn above the tree.
func WithTitle(title string) Option { return func(r *renderer) { r.title = title } }

// WithBirthDates prints birth dates under names.
func WithBirthDates() Option { return func(r *renderer) { r.births = true } }

// WithStatusColors overrides card fills for the given statuses.
func WithStatusColors(colors map[family.Status]string) Option {
	return func(r *renderer) { maps.Copy(r.colors, colors) }
}

type card struct {
	w, h float64
}

// cardSize keeps a couple's cards from touching and leaves room for links
// between generations.
func cardSize(l layout.Layout) card {
	w := l.SpouseOffset * 0.9
	if w <= 0 {
		w = l.HStep * 0.6
	}
	h := l.VStep * 0.4
	if h <= 0 {
		h = 40
	}
	return card{w: w, h: h}
}

// Render writes l as an SVG document.
func Render(l layout.Layout, opts ...Option) []byte {
	r := renderer{colors: maps.Clone(DefaultStatusColors)}
	for _, opt := range opts {
		opt(&r)
	}

	c := cardSize(l)
	titleH := 0.0
	if r.title != "" {
		titleH = 40
	}
	minX, minY := l.MinX, l.MinY-titleH
	width, height := max(l.Width, c.w), max(l.Height, c.h)+titleH

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%.1f %.1f %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		minX, minY, width, height, width, height)
	if r.title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", escapeXML(r.title))
		fmt.Fprintf(&buf, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-family="sans-serif" font-size="20" font-weight="bold">%s</text>`+"\n",
			minX+width/2, minY+titleH*0.7, escapeXML(r.title))
	}

	nodes := l.NodeMap()
	buf.WriteString(`  <g class="edges" fill="none" stroke="` + edgeColor + `" stroke-width="2">` + "\n")
	for _, e := range l.Edges {
		from, okFrom := nodes[e.From]
		to, okTo := nodes[e.To]
		if !okFrom || !okTo || e.From == e.To {
			continue
		}
		if e.Kind == family.Partnership {
			renderPartnership(&buf, e, from, to, c)
			continue
		}
		renderDescent(&buf, e, from, to, c)
	}
	buf.WriteString("  </g>\n")

	buf.WriteString(`  <g class="people" font-family="sans-serif">` + "\n")
	for _, n := range l.Nodes {
		r.renderCard(&buf, n, c)
	}
	buf.WriteString("  </g>\n")

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func renderPartnership(buf *bytes.Buffer, e layout.Edge, a, b layout.Node, c card) {
	if b.X < a.X {
		a, b = b, a
	}
	x1, x2 := a.X+c.w/2, b.X-c.w/2
	if a.Y != b.Y || x2 <= x1 {
		fmt.Fprintf(buf, `    <line id="edge-%s" class="partnership" x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke-dasharray="4 3"/>`+"\n",
			escapeXML(e.RelationshipID), a.X, a.Y, b.X, b.Y)
		return
	}
	fmt.Fprintf(buf, `    <line id="edge-%s" class="partnership" x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>`+"\n",
		escapeXML(e.RelationshipID), x1, a.Y, x2, b.Y)
}

func renderDescent(buf *bytes.Buffer, e layout.Edge, parent, child layout.Node, c card) {
	y1 := parent.Y + c.h/2
	y2 := child.Y - c.h/2
	mid := (y1 + y2) / 2
	fmt.Fprintf(buf, `    <path id="edge-%s" class="descent" d="M %.1f %.1f V %.1f H %.1f V %.1f"/>`+"\n",
		escapeXML(e.RelationshipID), parent.X, y1, mid, child.X, y2)
}

func (r *renderer) renderCard(buf *bytes.Buffer, n layout.Node, c card) {
	fill, ok := r.colors[n.Status]
	if !ok {
		fill = "#ffffff"
	}
	dash := ""
	if n.Status == family.StatusPlaceholder || n.Status == family.StatusInvited {
		dash = ` stroke-dasharray="5 3"`
	}

	x, y := n.X-c.w/2, n.Y-c.h/2
	fmt.Fprintf(buf, `    <g id="person-%s" class="person %s">`+"\n", escapeXML(n.ID), escapeXML(string(n.Status)))
	fmt.Fprintf(buf, `      <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="%d" fill="%s" stroke="%s" stroke-width="1.5"%s/>`+"\n",
		x, y, c.w, c.h, cardRadius, fill, strokeColor, dash)

	lines := []string{n.Label}
	if r.births && n.Born != "" {
		lines = append(lines, n.Born)
	}
	lineH := c.h / float64(len(lines)+1)
	for i, text := range lines {
		size := fontSizeFor(c.w, c.h/float64(len(lines)), len([]rune(text)))
		if i > 0 {
			size = max(fontSizeMin, size*0.8)
		}
		fmt.Fprintf(buf, `      <text x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="middle" font-size="%.1f">%s</text>`+"\n",
			n.X, y+lineH*float64(i+1), size, escapeXML(truncateLabel(text, c.w, size)))
	}
	buf.WriteString("    </g>\n")
}
