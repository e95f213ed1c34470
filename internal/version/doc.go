// Package version exposes build metadata injected via ldflags and a helper
// to attach a `version` subcommand to cobra CLIs.
package version
