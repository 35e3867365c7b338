package layout

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/knitfamily/knit/pkg/family"
)

func TestExport(t *testing.T) {
	born := family.Date{Year: 1950, Month: 6, Day: 1}
	ps := []family.Person{
		{ID: "p1", FirstName: "Ada", LastName: "King", Status: family.StatusDeceased, BirthDate: &born},
		{ID: "p2", FirstName: "Byron", Status: family.StatusActive},
		{ID: "p3", Status: family.StatusPlaceholder},
	}
	rels := []family.Relationship{parent("r1", "p1", "p2"), parent("r2", "p1", "p3")}
	res := Build(ps, rels)

	l := Export(res, "space-1", ps)

	if l.VizType != VizTypeFamilyTree || l.FamilySpaceID != "space-1" {
		t.Errorf("header = %q/%q", l.VizType, l.FamilySpaceID)
	}
	if l.Width != 280 || l.Height != 260 {
		t.Errorf("frame = %vx%v, want 280x260", l.Width, l.Height)
	}
	if l.MinX != -140 || l.MinY != -65 {
		t.Errorf("origin = (%v, %v), want (-140, -65)", l.MinX, l.MinY)
	}
	if len(l.Nodes) != 3 || len(l.Edges) != 2 {
		t.Fatalf("nodes=%d edges=%d", len(l.Nodes), len(l.Edges))
	}

	n, ok := l.Node("p1")
	if !ok {
		t.Fatal("p1 missing")
	}
	if n.Label != "Ada King" || n.Status != family.StatusDeceased || n.Born != "1950-06-01" || n.Level != 0 {
		t.Errorf("p1 = %+v", n)
	}
	if n, _ := l.Node("p3"); n.Label != "p3" {
		t.Errorf("p3 label = %q, want id fallback", n.Label)
	}
	if !slices.Equal(l.Levels(), []int{0, 1}) {
		t.Errorf("Levels() = %v", l.Levels())
	}
}

func TestExportUnknownPeople(t *testing.T) {
	res := Build(people("x"), nil)
	l := Export(res, "", nil)
	if len(l.Nodes) != 1 || l.Nodes[0].Label != "x" {
		t.Errorf("Nodes = %+v", l.Nodes)
	}
	if l.Edges == nil {
		t.Error("Edges should serialize as an empty list")
	}
}

func TestLayoutFileRoundTrip(t *testing.T) {
	ps := people("a", "b", "c")
	l := Export(Build(ps, []family.Relationship{partner("r1", "a", "b"), parent("r2", "a", "c")}), "s", ps)

	path := filepath.Join(t.TempDir(), "tree.layout.json")
	if err := WriteLayoutFile(l, path); err != nil {
		t.Fatalf("WriteLayoutFile: %v", err)
	}
	got, err := ReadLayoutFile(path)
	if err != nil {
		t.Fatalf("ReadLayoutFile: %v", err)
	}
	if got.Width != l.Width || len(got.Nodes) != len(l.Nodes) || len(got.Edges) != len(l.Edges) {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !slices.Equal(got.Rows[0], l.Rows[0]) {
		t.Errorf("Rows[0] = %v, want %v", got.Rows[0], l.Rows[0])
	}
}

func TestUnmarshalLayoutErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"BadJSON", `{`, "unmarshal layout"},
		{"WrongType", `{"viz_type":"tower"}`, "unsupported viz_type"},
		{"DuplicateNodes", `{"nodes":[{"id":"a"},{"id":"a"}]}`, "duplicate node"},
		{"UnknownRowNode", `{"nodes":[{"id":"a"}],"rows":{"0":["b"]}}`, "unknown node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalLayout([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("UnmarshalLayout() error = %v, want %q", err, tt.want)
			}
		})
	}

	l, err := UnmarshalLayout([]byte(`{"nodes":[]}`))
	if err != nil || l.VizType != VizTypeFamilyTree {
		t.Errorf("missing viz_type should default: %v, %q", err, l.VizType)
	}
}
