// Package state holds the persisted-state side of scopesync.
//
// A [Bundle] is the nested, string-keyed mapping every listener reads its
// fragment from and writes its fragment into. A [Store] addresses a root
// bundle by scope path and listener key:
//
//	root bundle
//	└── "<scope path>"          (one bundle per scope)
//	    └── "<listener key>"    (one fragment per listener)
//
// Writes through [Store.PutFragment] merge into the existing scope bundle, so
// saving after a partial restore keeps fragments of untouched scopes.
//
// [FileRepository] persists a root bundle to disk atomically as JSON, YAML or
// TOML, chosen by file extension:
//
//	repo, err := state.NewFileRepository("/var/lib/app/state.json")
//	blob, meta, err := repo.Load(ctx)
//	...
//	meta, err = repo.Save(ctx, blob)
//
// Each save stamps the snapshot with a fresh UUID and timestamp (see [Meta]).
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package state
