// Package corpus models a processed conformance corpus.
//
// A processed corpus is a directory tree with one directory per test group.
// Each group directory holds a JSON manifest named after the group and the
// module binaries the manifest references:
//
//	testsuite-processed/
//	  i32/i32.json
//	  i32/i32.0.wasm
//	  proposals/multi-memory/load/load.json
//
// The package provides:
//   - Discover: enumerate groups in a deterministic order
//   - ParseManifest/LoadManifest: decode a manifest into typed Commands
//   - Value.Matches: the result equality rules of the spectest format
//   - Inspect: per-group inventory and artifact checks
//   - Digest: a formatting-independent fingerprint of the whole tree
package corpus
