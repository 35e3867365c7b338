package kin_test

import (
	"fmt"

	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/kin"
)

func ExampleIndex_SiblingsOf() {
	ps := []family.Person{{ID: "mum"}, {ID: "ann"}, {ID: "ben"}, {ID: "cat"}}
	rels := []family.Relationship{
		{ID: "r1", Type: family.ParentChild, PersonAID: "mum", PersonBID: "ben"},
		{ID: "r2", Type: family.ParentChild, PersonAID: "mum", PersonBID: "ann"},
		{ID: "r3", Type: family.ParentChild, PersonAID: "mum", PersonBID: "cat"},
	}

	idx := kin.NewIndex(ps, rels)
	for _, p := range idx.SiblingsOf("ben") {
		fmt.Println(p.ID)
	}
	// Output:
	// ann
	// cat
}
