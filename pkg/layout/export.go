package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/knitfamily/knit/pkg/family"
)

// VizTypeFamilyTree is the discriminator written into every exported layout.
const VizTypeFamilyTree = "familytree"

// Layout is the serialized form of a family tree layout. It carries the
// labels and statuses renderers need, so a cached Layout can be rendered
// without the snapshot it came from.
type Layout struct {
	VizType       string `json:"viz_type" bson:"viz_type"`
	FamilySpaceID string `json:"family_space_id,omitempty" bson:"family_space_id,omitempty"`

	// Frame around node centres, padded by one slot and one generation.
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
	MinX   float64 `json:"min_x" bson:"min_x"`
	MinY   float64 `json:"min_y" bson:"min_y"`

	HStep        float64 `json:"h_step" bson:"h_step"`
	VStep        float64 `json:"v_step" bson:"v_step"`
	SpouseOffset float64 `json:"spouse_offset" bson:"spouse_offset"`

	Nodes     []Node           `json:"nodes" bson:"nodes"`
	Edges     []Edge           `json:"edges" bson:"edges"`
	Rows      map[int][]string `json:"rows,omitempty" bson:"rows,omitempty"`
	Roots     []string         `json:"roots,omitempty" bson:"roots,omitempty"`
	Leftovers []string         `json:"leftovers,omitempty" bson:"leftovers,omitempty"`
}

// Node is a positioned person.
type Node struct {
	ID     string        `json:"id" bson:"id"`
	Label  string        `json:"label" bson:"label"`
	Status family.Status `json:"status,omitempty" bson:"status,omitempty"`
	X      float64       `json:"x" bson:"x"`
	Y      float64       `json:"y" bson:"y"`
	Level  int           `json:"level" bson:"level"`
	Born   string        `json:"born,omitempty" bson:"born,omitempty"`
}

// Export builds a serializable Layout from r. People supply labels and
// statuses; ids in r without a matching person are labelled with their id.
func Export(r Result, spaceID string, people []family.Person) Layout {
	byID := make(map[string]family.Person, len(people))
	for _, p := range people {
		if _, dup := byID[p.ID]; !dup {
			byID[p.ID] = p
		}
	}

	b := r.Bounds()
	l := Layout{
		VizType:       VizTypeFamilyTree,
		FamilySpaceID: spaceID,
		MinX:          b.MinX - r.HStep/2,
		MinY:          b.MinY - r.VStep/2,
		Width:         b.Width() + r.HStep,
		Height:        b.Height() + r.VStep,
		HStep:         r.HStep,
		VStep:         r.VStep,
		SpouseOffset:  r.SpouseOffset,
		Nodes:         make([]Node, 0, len(r.Order)),
		Edges:         append([]Edge(nil), r.Edges...),
		Rows:          r.Rows(),
		Roots:         r.Roots,
		Leftovers:     r.Leftovers,
	}
	if l.Edges == nil {
		l.Edges = []Edge{}
	}

	for _, id := range r.Order {
		pos := r.Positions[id]
		n := Node{ID: id, Label: id, X: pos.X, Y: pos.Y, Level: r.Levels[id]}
		if p, ok := byID[id]; ok {
			n.Label = p.DisplayName()
			n.Status = p.Status
			if p.BirthDate != nil {
				n.Born = p.BirthDate.String()
			}
		}
		l.Nodes = append(l.Nodes, n)
	}
	return l
}

// Node returns the node with the given id.
func (l *Layout) Node(id string) (Node, bool) {
	for _, n := range l.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodeMap indexes nodes by id.
func (l *Layout) NodeMap() map[string]Node {
	m := make(map[string]Node, len(l.Nodes))
	for _, n := range l.Nodes {
		m[n.ID] = n
	}
	return m
}

// Levels returns the distinct row indexes in ascending order.
func (l *Layout) Levels() []int {
	levels := make([]int, 0, len(l.Rows))
	for lvl := range l.Rows {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	return levels
}

// MarshalLayout serializes a Layout to pretty-printed JSON bytes.
func MarshalLayout(l Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// UnmarshalLayout deserializes JSON bytes into a Layout. Node ids must be
// unique and rows may only reference known nodes. Edges are not checked:
// they mirror relationships, dangling ones included.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	if l.VizType == "" {
		l.VizType = VizTypeFamilyTree
	}
	if l.VizType != VizTypeFamilyTree {
		return Layout{}, fmt.Errorf("unsupported viz_type %q", l.VizType)
	}

	nodes := l.NodeMap()
	if len(nodes) != len(l.Nodes) {
		return Layout{}, fmt.Errorf("layout contains duplicate node ids")
	}
	for lvl, ids := range l.Rows {
		for _, id := range ids {
			if _, ok := nodes[id]; !ok {
				return Layout{}, fmt.Errorf("row %d references unknown node %q", lvl, id)
			}
		}
	}
	return l, nil
}

// WriteLayoutFile writes a Layout to a JSON file.
func WriteLayoutFile(l Layout, path string) error {
	data, err := MarshalLayout(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadLayoutFile reads a Layout from a JSON file.
func ReadLayoutFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalLayout(data)
}
