// Package release resolves the latest upstream release of a repository
// through the release metadata API and validates its tag against the strict
// v<major>.<minor>.<patch> format.
package release
