// Package vcs notifies the version-control system about a rewritten
// manifest. The pipeline calls it only after a successful persist that
// actually changed content, and never when commits are skipped.
package vcs
