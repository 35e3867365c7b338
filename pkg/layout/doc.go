// Package layout assigns 2D coordinates to every person of a family space.
//
// # Algorithm
//
// [Build] is a greedy single-pass level-order placement:
//
//  1. Roots are people no parent_child link names as a child. If there are
//     none (every person has a recorded parent, usually a cycle) the first
//     person becomes the sole root.
//  2. Roots go left to right on row 0. A root's unplaced partner sits to its
//     right at the spouse offset and the cursor skips two slots.
//  3. Each following row collects the unplaced children of the row above,
//     tagged with their parent's x. The row is centred on the average of
//     those x values and children are assigned slots left to right, again
//     pulling in unplaced partners.
//  4. Anyone still unplaced goes on one extra row below the deepest row,
//     in input order starting at x = 0.
//  5. Every relationship becomes exactly one [Edge].
//
// Build is total and deterministic. It never fails: cycles and disconnected
// branches degrade to the fallback rules above, and wide or irregular trees
// may overlap. Positions depend on people order but not on relationship
// order (as long as nobody has more than one partnership).
//
// # Spacing
//
// Spacing is configurable with [WithHStep], [WithVStep] and
// [WithSpouseOffset]. The defaults are [DefaultHStep], [DefaultVStep] and
// [DefaultSpouseOffset].
//
// # Serialization
//
// [Export] turns a [Result] plus the people it was built from into a
// self-contained [Layout] that renderers and caches consume. Use
// [MarshalLayout] and [UnmarshalLayout] or the file helpers to persist it.
package layout
