package layout

import (
	"math"

	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/kin"
)

const (
	// DefaultHStep is the distance between adjacent slots on a row.
	DefaultHStep = 140.0
	// DefaultVStep is the distance between generations.
	DefaultVStep = 130.0
	// DefaultSpouseOffset is how far right of a person their partner sits.
	DefaultSpouseOffset = 100.0
)

// Position is a layout coordinate. Y grows downward, one VStep per generation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge mirrors one input relationship for rendering.
type Edge struct {
	RelationshipID string              `json:"relationship_id"`
	From           string              `json:"from"`
	To             string              `json:"to"`
	Kind           family.RelationType `json:"kind"`
}

// Result is the output of [Build].
type Result struct {
	// Positions has exactly one entry per distinct person id.
	Positions map[string]Position
	// Levels is the row index of every person (0 for roots).
	Levels map[string]int
	// Order lists person ids in input order with duplicates removed.
	Order []string
	// Edges has one entry per input relationship, in input order.
	Edges []Edge
	// Roots lists the ids placed on row 0 as roots, excluding partners.
	Roots []string
	// Depth is the deepest row reached from the roots.
	Depth int
	// Leftovers lists people not reachable from any root, placed on row Depth+1.
	Leftovers []string

	HStep, VStep, SpouseOffset float64
}

// Option configures [Build].
type Option func(*config)

type config struct {
	hStep, vStep, spouseOffset float64
}

// WithHStep sets the horizontal slot width. Non-positive values are ignored.
func WithHStep(h float64) Option {
	return func(c *config) {
		if h > 0 {
			c.hStep = h
		}
	}
}

// WithVStep sets the distance between generations. Non-positive values are ignored.
func WithVStep(v float64) Option {
	return func(c *config) {
		if v > 0 {
			c.vStep = v
		}
	}
}

// WithSpouseOffset sets the partner offset. It must stay below the slot
// width so a couple reads as one unit; values outside (0, HStep) fall back
// to the default ratio of the slot width.
func WithSpouseOffset(d float64) Option {
	return func(c *config) { c.spouseOffset = d }
}

func newConfig(opts []Option) config {
	c := config{hStep: DefaultHStep, vStep: DefaultVStep, spouseOffset: DefaultSpouseOffset}
	for _, opt := range opts {
		opt(&c)
	}
	if c.spouseOffset <= 0 || c.spouseOffset >= c.hStep {
		c.spouseOffset = c.hStep * DefaultSpouseOffset / DefaultHStep
	}
	return c
}

// Build computes positions for people and one edge per relationship.
// Inputs are not modified.
func Build(people []family.Person, relationships []family.Relationship, opts ...Option) Result {
	cfg := newConfig(opts)
	idx := kin.NewIndex(people, relationships)

	res := Result{
		Positions:    make(map[string]Position, idx.Len()),
		Levels:       make(map[string]int, idx.Len()),
		Order:        make([]string, 0, idx.Len()),
		Edges:        make([]Edge, 0, len(relationships)),
		HStep:        cfg.hStep,
		VStep:        cfg.vStep,
		SpouseOffset: cfg.spouseOffset,
	}
	for _, r := range relationships {
		res.Edges = append(res.Edges, Edge{
			RelationshipID: r.ID,
			From:           r.PersonAID,
			To:             r.PersonBID,
			Kind:           r.Type,
		})
	}

	all := idx.People()
	if len(all) == 0 {
		return res
	}
	for _, p := range all {
		res.Order = append(res.Order, p.ID)
	}

	place := func(id string, x float64, level int) {
		res.Positions[id] = Position{X: x, Y: float64(level) * cfg.vStep}
		res.Levels[id] = level
	}
	placed := func(id string) bool {
		_, ok := res.Positions[id]
		return ok
	}
	// placeWithSpouse puts id at x and its unplaced partner right next to it.
	// It returns the number of slots consumed.
	placeWithSpouse := func(id string, x float64, level int, row *[]string) int {
		place(id, x, level)
		*row = append(*row, id)
		if s := idx.SpouseIDOf(id); s != "" && !placed(s) {
			place(s, x+cfg.spouseOffset, level)
			*row = append(*row, s)
			return 2
		}
		return 1
	}

	roots := idx.Roots()
	if len(roots) == 0 {
		roots = all[:1]
	}

	var generation []string
	slot := 0
	for _, r := range roots {
		if placed(r.ID) {
			continue
		}
		res.Roots = append(res.Roots, r.ID)
		slot += placeWithSpouse(r.ID, float64(slot)*cfg.hStep, 0, &generation)
	}

	type candidate struct {
		id      string
		parentX float64
	}
	for {
		var cands []candidate
		seen := make(map[string]bool)
		for _, id := range generation {
			px := res.Positions[id].X
			for _, c := range idx.ChildIDsOf(id) {
				if placed(c) || seen[c] {
					continue
				}
				seen[c] = true
				cands = append(cands, candidate{id: c, parentX: px})
			}
		}
		if len(cands) == 0 {
			break
		}

		res.Depth++
		var sum float64
		for _, c := range cands {
			sum += c.parentX
		}
		avg := sum / float64(len(cands))
		start := avg - float64(len(cands)-1)*cfg.hStep/2

		var next []string
		col := 0
		for _, c := range cands {
			// An earlier candidate may have pulled this one in as a partner.
			if placed(c.id) {
				continue
			}
			col += placeWithSpouse(c.id, start+float64(col)*cfg.hStep, res.Depth, &next)
		}
		generation = next
	}

	i := 0
	for _, p := range all {
		if placed(p.ID) {
			continue
		}
		place(p.ID, float64(i)*cfg.hStep, res.Depth+1)
		res.Leftovers = append(res.Leftovers, p.ID)
		i++
	}

	return res
}

// Rect is an axis-aligned bounding box over person positions.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns MaxX - MinX.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns MaxY - MinY.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Bounds returns the box around every position. It is the zero Rect for an
// empty result.
func (r Result) Bounds() Rect {
	if len(r.Positions) == 0 {
		return Rect{}
	}
	b := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, p := range r.Positions {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// Rows groups person ids by level, each row in input order.
func (r Result) Rows() map[int][]string {
	rows := make(map[int][]string)
	for _, id := range r.Order {
		lvl := r.Levels[id]
		rows[lvl] = append(rows[lvl], id)
	}
	return rows
}
