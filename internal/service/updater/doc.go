// Package updater runs the manifest update pipeline.
//
// It loads the current manifest, resolves the latest upstream release,
// stops early when the version is unchanged, otherwise downloads and hashes
// the asset of every requested architecture, merges the results into the
// manifest and persists it atomically. The commit collaborator is notified
// only after a successful, content-changing persist.
package updater
