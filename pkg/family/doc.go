// Package family defines the people and relationships that make up a family
// space, and the snapshot format used to move them between storage,
// files and the layout engine.
//
// # Model
//
// A [Person] belongs to exactly one family space and carries one [Status].
// Placeholder and invited people represent relatives who have not linked an
// account yet; [Person.Activate] performs the transition to active once an
// invite is accepted.
//
// A [Relationship] is either [ParentChild] (PersonA is the parent, PersonB
// the child) or [Partnership] (unordered in meaning, stored in a fixed order).
//
// # Snapshots
//
// A [Snapshot] is the complete set of people and relationships of one family
// space. Snapshots are read and written as JSON or YAML:
//
//	{
//	  "family_space_id": "smith",
//	  "people": [{"id": "p1", "first_name": "Ada", "status": "active"}],
//	  "relationships": [{"id": "r1", "type": "parent_child", "person_a_id": "p1", "person_b_id": "p2"}]
//	}
//
// [ReadSnapshotFile] picks the format from the file extension. [MarshalSnapshot]
// produces canonical JSON used for content hashing.
//
// # Validation
//
// [Validate] reports structural problems as a [Report] of issues. Nothing in
// the layout path requires a valid snapshot: the layout engine degrades to
// total, deterministic output for any input.
package family
