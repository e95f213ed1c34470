// Package asset downloads release assets and fingerprints them with a
// streaming SHA-256 digest. Download URLs are constructed deterministically
// from the resolved version and the caller-supplied filename; the package
// never discovers filenames on its own.
package asset
