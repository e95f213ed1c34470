package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/manifest-updater/internal/manifest"
	"github.com/oshokin/manifest-updater/internal/release"
)

var errTestHash = errors.New("asset hashing broke")

// fakeFetcher returns a fixed release or error.
type fakeFetcher struct {
	info  release.Info
	err   error
	calls int
}

func (f *fakeFetcher) ResolveLatest(context.Context, string) (release.Info, error) {
	f.calls++

	return f.info, f.err
}

// fakeHasher hands out deterministic digests derived from the URL.
type fakeHasher struct {
	err   error
	calls []string
}

func (f *fakeHasher) FetchAndHash(_ context.Context, downloadURL string) (string, error) {
	f.calls = append(f.calls, downloadURL)
	if f.err != nil {
		return "", f.err
	}

	return fmt.Sprintf("SHA256:%064x", len(downloadURL)), nil
}

// fakeCommitter records commit requests.
type fakeCommitter struct {
	err     error
	calls   int
	path    string
	message string
}

func (f *fakeCommitter) Commit(_ context.Context, path, message string) error {
	f.calls++
	f.path = path
	f.message = message

	return f.err
}

const testManifest = `{
  "architecture": {
    "arm64": {
      "url": "https://github.com/acme/widget/releases/download/v1.2.0/widget-arm64.tar.gz",
      "hash": "SHA256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
    }
  },
  "homepage": "https://widget.example.com",
  "version": "1.2.0"
}
`

// newTestRunner builds a runner over a temp manifest with fake collaborators.
func newTestRunner(t *testing.T, fetcher *fakeFetcher, hasher *fakeHasher, committer *fakeCommitter) *runner {
	t.Helper()

	path := filepath.Join(t.TempDir(), "widget.json")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o644))

	return &runner{
		pkg:          "widget",
		repo:         "acme/widget",
		spec:         map[string]string{"amd64": "widget-amd64.tar.gz"},
		releasesHost: "https://github.com",
		store:        manifest.NewStore(path),
		releases:     fetcher,
		assets:       hasher,
		committer:    committer,
	}
}

// readManifest returns the raw manifest bytes.
func readManifest(t *testing.T, r *runner) []byte {
	t.Helper()

	contents, err := os.ReadFile(r.store.Path())
	require.NoError(t, err)

	return contents
}

// TestRun_NoopWhenVersionUnchanged ensures an unchanged upstream version
// downloads nothing, writes nothing and requests no commit.
func TestRun_NoopWhenVersionUnchanged(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{info: release.Info{Tag: "v1.2.0", Version: "1.2.0"}}
	hasher := new(fakeHasher)
	committer := new(fakeCommitter)
	r := newTestRunner(t, fetcher, hasher, committer)

	before := readManifest(t, r)

	outcome, err := r.run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeNoop, outcome)
	require.Empty(t, hasher.calls)
	require.Zero(t, committer.calls)
	require.Equal(t, before, readManifest(t, r))
}

// TestRun_UpdatesAndCommits covers the full happy path: new version, merged
// manifest, preserved fields, commit with the expected message.
func TestRun_UpdatesAndCommits(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{info: release.Info{Tag: "v1.3.0", Version: "1.3.0"}}
	hasher := new(fakeHasher)
	committer := new(fakeCommitter)
	r := newTestRunner(t, fetcher, hasher, committer)

	outcome, err := r.run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, outcome)

	wantURL := "https://github.com/acme/widget/releases/download/v1.3.0/widget-amd64.tar.gz"
	require.Equal(t, []string{wantURL}, hasher.calls)

	require.Equal(t, 1, committer.calls)
	require.Equal(t, r.store.Path(), committer.path)
	require.Equal(t, "auto-update widget to version 1.3.0", committer.message)

	record, err := r.store.Load()
	require.NoError(t, err)
	require.Equal(t, "1.3.0", record.Version)
	require.Equal(t, wantURL, record.Architecture["amd64"].URL)

	// Fields untouched by this run survive.
	require.Contains(t, record.Architecture, "arm64")
}

// TestRun_SecondRunIsNoop ensures re-running with the now-current version
// leaves the manifest byte-identical and makes no further commit calls.
func TestRun_SecondRunIsNoop(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{info: release.Info{Tag: "v1.3.0", Version: "1.3.0"}}
	hasher := new(fakeHasher)
	committer := new(fakeCommitter)
	r := newTestRunner(t, fetcher, hasher, committer)

	outcome, err := r.run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, outcome)

	afterFirst := readManifest(t, r)

	outcome, err = r.run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeNoop, outcome)
	require.Equal(t, afterFirst, readManifest(t, r))
	require.Equal(t, 1, committer.calls)
}

// TestRun_HashFailureAbortsBeforeWrite ensures an asset failure leaves the
// original manifest completely unmodified.
func TestRun_HashFailureAbortsBeforeWrite(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{info: release.Info{Tag: "v1.3.0", Version: "1.3.0"}}
	hasher := &fakeHasher{err: errTestHash}
	committer := new(fakeCommitter)
	r := newTestRunner(t, fetcher, hasher, committer)

	before := readManifest(t, r)

	outcome, err := r.run(context.Background())
	require.ErrorIs(t, err, errTestHash)
	require.Equal(t, OutcomeFailed, outcome)
	require.Zero(t, committer.calls)
	require.Equal(t, before, readManifest(t, r))
}

// TestRun_SkipCommit ensures the flag suppresses the commit collaborator.
func TestRun_SkipCommit(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{info: release.Info{Tag: "v1.3.0", Version: "1.3.0"}}
	hasher := new(fakeHasher)
	committer := new(fakeCommitter)
	r := newTestRunner(t, fetcher, hasher, committer)
	r.skipCommit = true

	outcome, err := r.run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitSkipped, outcome)
	require.Zero(t, committer.calls)
}

// TestRun_FetchFailureAborts ensures a metadata failure touches nothing.
func TestRun_FetchFailureAborts(t *testing.T) {
	t.Parallel()

	wantErr := &release.FormatError{Tag: "release-5"}
	fetcher := &fakeFetcher{err: wantErr}
	hasher := new(fakeHasher)
	committer := new(fakeCommitter)
	r := newTestRunner(t, fetcher, hasher, committer)

	before := readManifest(t, r)

	outcome, err := r.run(context.Background())

	var formatErr *release.FormatError

	require.ErrorAs(t, err, &formatErr)
	require.Equal(t, OutcomeFailed, outcome)
	require.Empty(t, hasher.calls)
	require.Equal(t, before, readManifest(t, r))
}

// TestRun_MultipleArchitecturesInOrder ensures assets resolve strictly in
// sorted key order.
func TestRun_MultipleArchitecturesInOrder(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{info: release.Info{Tag: "v1.3.0", Version: "1.3.0"}}
	hasher := new(fakeHasher)
	committer := new(fakeCommitter)
	r := newTestRunner(t, fetcher, hasher, committer)
	r.spec = map[string]string{
		"arm64": "widget-arm64.tar.gz",
		"amd64": "widget-amd64.tar.gz",
		"386":   "widget-386.tar.gz",
	}

	_, err := r.run(context.Background())
	require.NoError(t, err)

	host := "https://github.com/acme/widget/releases/download/v1.3.0/"
	require.Equal(t, []string{
		host + "widget-386.tar.gz",
		host + "widget-amd64.tar.gz",
		host + "widget-arm64.tar.gz",
	}, hasher.calls)
}

// TestParseAssetSpec validates the asset mapping argument handling.
func TestParseAssetSpec(t *testing.T) {
	t.Parallel()

	spec, err := ParseAssetSpec(`{"amd64": "widget-amd64.tar.gz", "arm64": "widget-arm64.tar.gz"}`)
	require.NoError(t, err)
	require.Len(t, spec, 2)

	_, err = ParseAssetSpec("not json")
	require.ErrorIs(t, err, errInvalidAssetSpec)

	_, err = ParseAssetSpec(`{}`)
	require.ErrorIs(t, err, errEmptyAssetSpec)

	_, err = ParseAssetSpec(`["amd64"]`)
	require.ErrorIs(t, err, errInvalidAssetSpec)
}

// TestOutcomeString covers the outcome names used in logs.
func TestOutcomeString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "no-op", OutcomeNoop.String())
	require.Equal(t, "committed", OutcomeCommitted.String())
	require.Equal(t, "commit skipped", OutcomeCommitSkipped.String())
	require.Equal(t, "failed", OutcomeFailed.String())
}
