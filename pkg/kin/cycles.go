package kin

import (
	"github.com/knitfamily/knit/pkg/family"
)

// FindCycles returns the parent→child links that close a cycle, as
// [parentID, childID] pairs. A family tree should have none; a non-empty
// result means someone is recorded as their own ancestor.
//
// The search is a depth-first walk with white/gray/black colouring, started
// from roots and then from any person not yet reached, so cycles with no
// root above them are still found.
func FindCycles(idx *Index) [][2]string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, idx.Len())
	var back [][2]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range idx.children[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				back = append(back, [2]string{id, child})
			}
		}
		color[id] = black
	}

	for _, p := range idx.Roots() {
		if color[p.ID] == white {
			dfs(p.ID)
		}
	}
	for _, p := range idx.people {
		if color[p.ID] == white {
			dfs(p.ID)
		}
	}
	return back
}

// Check runs [family.Validate] and adds a warning for every parent/child
// cycle.
func Check(s family.Snapshot) family.Report {
	rep := family.Validate(s)
	idx := NewIndex(s.People, s.Relationships)
	for _, e := range FindCycles(idx) {
		rep.Warn("person "+e[1], "parent/child cycle through %s", e[0])
	}
	return rep
}
