// Package config defines connection settings for the upstream release hosts
// and provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the metadata API host, the asset download host,
// the per-request timeout and the retry budget. All fields have defaults,
// so a settings file is optional.
package config
