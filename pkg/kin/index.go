package kin

import (
	"slices"

	"github.com/knitfamily/knit/pkg/family"
)

// Index is a read-only adjacency view over one family space.
type Index struct {
	people   []family.Person
	order    map[string]int
	parents  map[string][]string
	children map[string][]string
	spouse   map[string]string
	hasChild map[string]bool // person appears as personBId of a parent_child link
}

// NewIndex builds an index. Duplicate person ids keep their first
// occurrence. Relationships whose endpoints are not in people are ignored
// for queries, except that a parent_child link to an unknown parent still
// marks its child as having a recorded parent.
func NewIndex(people []family.Person, relationships []family.Relationship) *Index {
	idx := &Index{
		people:   make([]family.Person, 0, len(people)),
		order:    make(map[string]int, len(people)),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
		spouse:   make(map[string]string),
		hasChild: make(map[string]bool),
	}
	for _, p := range people {
		if _, dup := idx.order[p.ID]; dup {
			continue
		}
		idx.order[p.ID] = len(idx.people)
		idx.people = append(idx.people, p)
	}

	for _, r := range relationships {
		switch r.Type {
		case family.ParentChild:
			idx.hasChild[r.PersonBID] = true
			if !idx.Has(r.PersonAID) || !idx.Has(r.PersonBID) {
				continue
			}
			idx.children[r.PersonAID] = append(idx.children[r.PersonAID], r.PersonBID)
			idx.parents[r.PersonBID] = append(idx.parents[r.PersonBID], r.PersonAID)
		case family.Partnership:
			if r.PersonAID == r.PersonBID || !idx.Has(r.PersonAID) || !idx.Has(r.PersonBID) {
				continue
			}
			// First match in relationship order wins.
			if _, ok := idx.spouse[r.PersonAID]; !ok {
				idx.spouse[r.PersonAID] = r.PersonBID
			}
			if _, ok := idx.spouse[r.PersonBID]; !ok {
				idx.spouse[r.PersonBID] = r.PersonAID
			}
		}
	}

	for id, ids := range idx.children {
		idx.children[id] = idx.sorted(ids)
	}
	for id, ids := range idx.parents {
		idx.parents[id] = idx.sorted(ids)
	}
	return idx
}

// sorted dedupes ids and orders them by people input order.
func (idx *Index) sorted(ids []string) []string {
	slices.SortFunc(ids, func(a, b string) int { return idx.order[a] - idx.order[b] })
	return slices.Compact(ids)
}

// Len returns the number of distinct people.
func (idx *Index) Len() int { return len(idx.people) }

// People returns the distinct people in input order.
func (idx *Index) People() []family.Person { return slices.Clone(idx.people) }

// Has reports whether id is a known person.
func (idx *Index) Has(id string) bool {
	_, ok := idx.order[id]
	return ok
}

// Person looks up a person by id.
func (idx *Index) Person(id string) (family.Person, bool) {
	i, ok := idx.order[id]
	if !ok {
		return family.Person{}, false
	}
	return idx.people[i], true
}

// ParentsOf returns everyone recorded as a parent of id.
func (idx *Index) ParentsOf(id string) []family.Person {
	return idx.resolve(idx.parents[id])
}

// ChildrenOf returns everyone recorded as a child of id.
func (idx *Index) ChildrenOf(id string) []family.Person {
	return idx.resolve(idx.children[id])
}

// ChildIDsOf is [Index.ChildrenOf] returning ids only.
func (idx *Index) ChildIDsOf(id string) []string {
	return slices.Clone(idx.children[id])
}

// SpouseOf returns the other endpoint of the first partnership involving id.
func (idx *Index) SpouseOf(id string) (family.Person, bool) {
	sid, ok := idx.spouse[id]
	if !ok {
		return family.Person{}, false
	}
	return idx.Person(sid)
}

// SpouseIDOf is [Index.SpouseOf] returning the id only, or "".
func (idx *Index) SpouseIDOf(id string) string {
	return idx.spouse[id]
}

// SiblingsOf returns the children of every parent of id, excluding id.
// People with disjoint parent sets are not siblings.
func (idx *Index) SiblingsOf(id string) []family.Person {
	var ids []string
	for _, p := range idx.parents[id] {
		for _, c := range idx.children[p] {
			if c != id {
				ids = append(ids, c)
			}
		}
	}
	return idx.resolve(idx.sorted(ids))
}

// HasRecordedParent reports whether any parent_child link names id as the
// child, including links whose parent is not a known person.
func (idx *Index) HasRecordedParent(id string) bool {
	return idx.hasChild[id]
}

// Roots returns the people with no recorded parent, in input order.
func (idx *Index) Roots() []family.Person {
	var roots []family.Person
	for _, p := range idx.people {
		if !idx.hasChild[p.ID] {
			roots = append(roots, p)
		}
	}
	return roots
}

// Relatives groups every relationship query for one person.
type Relatives struct {
	Person   family.Person   `json:"person"`
	Parents  []family.Person `json:"parents"`
	Children []family.Person `json:"children"`
	Spouse   *family.Person  `json:"spouse,omitempty"`
	Siblings []family.Person `json:"siblings"`
}

// Relatives returns all relatives of id. The second result is false if id
// is not a known person.
func (idx *Index) Relatives(id string) (Relatives, bool) {
	p, ok := idx.Person(id)
	if !ok {
		return Relatives{}, false
	}
	rel := Relatives{
		Person:   p,
		Parents:  idx.ParentsOf(id),
		Children: idx.ChildrenOf(id),
		Siblings: idx.SiblingsOf(id),
	}
	if s, ok := idx.SpouseOf(id); ok {
		rel.Spouse = &s
	}
	return rel, true
}

func (idx *Index) resolve(ids []string) []family.Person {
	out := make([]family.Person, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.people[idx.order[id]])
	}
	return out
}
