// Package manifest owns the persisted package manifest: loading, pure
// merging of new version/hash/URL data, and atomic, deterministic
// persistence. Unknown fields present on disk survive an update verbatim.
package manifest
