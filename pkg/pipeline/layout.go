package pipeline

import (
	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/layout"
)

// ComputeLayout places every person of s and exports the result. It never
// fails: unplaceable people end up on the leftover row.
func ComputeLayout(s family.Snapshot, opts Options) layout.Layout {
	opts.SetLayoutDefaults()
	r := layout.Build(s.People, s.Relationships, opts.LayoutOptions()...)
	return layout.Export(r, s.FamilySpaceID, s.People)
}
