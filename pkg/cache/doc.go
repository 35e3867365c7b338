// Package cache stores computed layouts and rendered artifacts.
//
// # Backends
//
//   - [NullCache]: never stores anything (caching disabled)
//   - [FileCache]: one JSON file per entry, for the CLI
//   - [RedisCache]: shared cache for the HTTP server
//
// # Keys
//
// A [Keyer] derives keys from content hashes, so an unchanged family
// snapshot always maps to the same layout key:
//
//	k := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "space:smiths:")
//	key := k.LayoutKey(cache.Hash(snapshotJSON), cache.LayoutKeyOpts{HStep: 140, VStep: 130})
package cache
