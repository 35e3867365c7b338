// Package kin answers adjacency questions over one family space: who are a
// person's parents, children, partner and siblings.
//
// An [Index] is built once from a people list and a relationship list and is
// read-only afterwards, so it is safe for concurrent use. Every query is
// total: an id that is not in the people list yields an empty result rather
// than an error, and callers that need existence guarantees check [Index.Has].
//
// Results are ordered by the position of each person in the people list
// passed to [NewIndex], never by relationship order. Layout code depends on
// this so that shuffling relationships does not move anybody.
//
//	idx := kin.NewIndex(snapshot.People, snapshot.Relationships)
//	for _, p := range idx.ChildrenOf("p1") {
//	    fmt.Println(p.DisplayName())
//	}
//
// [FindCycles] and [Check] extend snapshot validation with parent/child
// cycle detection. The layout engine never calls them: it stays total on
// cyclic input.
package kin
