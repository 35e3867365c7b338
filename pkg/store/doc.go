// Package store persists family spaces: their people and relationships.
//
// Three backends implement [Store]:
//
//   - [MemoryStore]: maps guarded by a mutex, for tests and one-shot CLI runs
//   - [SQLiteStore]: embedded SQLite via modernc.org/sqlite (pure Go)
//   - [MongoStore]: MongoDB collections for shared deployments
//
// [Open] picks one from a [Config].
//
// All backends share the same rules. Everything is scoped to a family
// space, and a person or relationship is always stored under its own
// FamilySpaceID. People keep the order in which they were first stored,
// because layout positions depend on people order. There is no API to
// delete a single person; [Store.PutSnapshot] replaces a whole space.
// Snapshots with error-severity validation issues are rejected.
package store
