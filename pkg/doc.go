// Package pkg provides the core libraries of knit, a family tree engine.
//
// # Overview
//
// Knit takes a family space (people plus parent/child and partnership
// relationships) and places every person on a grid: one row per
// generation, partners side by side, children centred under their
// parents. The pkg directory is organized into these areas:
//
//  1. [family] - domain types: Person, Relationship, Snapshot, validation
//  2. [kin] - relationship queries (parents, children, spouse, siblings)
//  3. [layout] - the tree layout engine and its serializable output
//  4. [render] - SVG, Graphviz DOT, PNG and PDF output
//  5. [pipeline] - orchestration (snapshot → layout → render) with caching
//  6. [store], [cache] - persistence of family spaces and pipeline results
//  7. [errors], [observability], [buildinfo] - shared infrastructure
//
// # Data Flow
//
//	Snapshot (file, store or HTTP)
//	         ↓
//	    [kin] index (who is related to whom)
//	         ↓
//	    [layout] engine (positions + edges)
//	         ↓
//	    [render] (SVG/DOT/PNG/PDF) or layout JSON
//
// # Quick Start
//
//	import (
//	    "github.com/knitfamily/knit/pkg/family"
//	    "github.com/knitfamily/knit/pkg/layout"
//	    "github.com/knitfamily/knit/pkg/render/svg"
//	)
//
//	s, _ := family.ReadSnapshotFile("family.yaml")
//	res := layout.Build(s.People, s.Relationships)
//	doc := svg.Render(layout.Export(res, s.FamilySpaceID, s.People))
//
// [family]: github.com/knitfamily/knit/pkg/family
// [kin]: github.com/knitfamily/knit/pkg/kin
// [layout]: github.com/knitfamily/knit/pkg/layout
// [render]: github.com/knitfamily/knit/pkg/render
// [pipeline]: github.com/knitfamily/knit/pkg/pipeline
// [store]: github.com/knitfamily/knit/pkg/store
// [cache]: github.com/knitfamily/knit/pkg/cache
// [errors]: github.com/knitfamily/knit/pkg/errors
// [observability]: github.com/knitfamily/knit/pkg/observability
// [buildinfo]: github.com/knitfamily/knit/pkg/buildinfo
package pkg
