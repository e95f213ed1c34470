package updater

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/manifest-updater/internal/asset"
	"github.com/oshokin/manifest-updater/internal/config"
	"github.com/oshokin/manifest-updater/internal/logger"
	"github.com/oshokin/manifest-updater/internal/manifest"
	"github.com/oshokin/manifest-updater/internal/release"
	"github.com/oshokin/manifest-updater/internal/vcs"
)

var errUpdateAlreadyRunning = errors.New("an update is already running")

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to a settings YAML file.
	ConfigPath string
	// Package is the package name, used in messages only.
	Package string
	// Repository is the upstream repository identifier, e.g. "acme/widget".
	Repository string
	// Assets is the architecture-to-filename mapping as a JSON string.
	Assets string
	// ManifestPath is the path to the manifest file to update.
	ManifestPath string
	// SkipCommit disables the final commit step.
	SkipCommit bool
	// Token is the optional bearer token for metadata requests.
	Token string
}

// Outcome is the terminal state of a pipeline execution.
type Outcome int

const (
	// OutcomeFailed means the pipeline aborted with an error.
	OutcomeFailed Outcome = iota
	// OutcomeNoop means the upstream version matched and nothing was touched.
	OutcomeNoop
	// OutcomeCommitted means the manifest was rewritten and handed to the committer.
	OutcomeCommitted
	// OutcomeCommitSkipped means the manifest was rewritten but committing was disabled.
	OutcomeCommitSkipped
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "no-op"
	case OutcomeCommitted:
		return "committed"
	case OutcomeCommitSkipped:
		return "commit skipped"
	default:
		return "failed"
	}
}

// runner holds the collaborators for a single pipeline execution.
// It is intentionally unexported; call Run(ctx, Options) from callers.
// Collaborators are injected so tests can run without network or git.
type runner struct {
	pkg          string            // Package name for messages.
	repo         string            // Upstream repository identifier.
	spec         map[string]string // Architecture key -> asset filename.
	skipCommit   bool              // Whether the commit step is disabled.
	releasesHost string            // Base URL for asset downloads.
	store        *manifest.Store   // Manifest persistence.
	releases     release.Fetcher   // Latest release resolution.
	assets       asset.Hasher      // Asset download and hashing.
	committer    vcs.Committer     // Commit collaborator.
}

// Run executes the update pipeline and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "manifest-updater")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer r.cleanup(ctx)

	outcome, err := r.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Update failed", "package", opts.Package, "error", err)
		return err
	}

	logger.InfoKV(ctx, "Update finished", "package", opts.Package, "outcome", outcome.String())

	return nil
}

// newRunner validates inputs, writes a marker to avoid concurrent runs and
// wires the real collaborators.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	spec, err := ParseAssetSpec(opts.Assets)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if IsUpdateRunningNow(ctx) {
		return nil, errUpdateAlreadyRunning
	}

	updateMarker, err := os.Create(MarkerFilename)
	if err != nil {
		return nil, err
	}

	if err = updateMarker.Close(); err != nil {
		return nil, err
	}

	return &runner{
		pkg:          opts.Package,
		repo:         opts.Repository,
		spec:         spec,
		skipCommit:   opts.SkipCommit,
		releasesHost: cfg.ReleasesHost,
		store:        manifest.NewStore(opts.ManifestPath),
		releases:     release.NewClient(cfg, opts.Token),
		assets:       asset.NewDownloader(cfg),
		committer:    vcs.NewGitCommitter(""),
	}, nil
}

// run executes the pipeline:
// 1) Load the current manifest.
// 2) Resolve the latest upstream version.
// 3) Stop when the version is unchanged.
// 4) Download and hash every requested architecture.
// 5) Merge and persist atomically.
// 6) Notify the commit collaborator unless skipped.
func (r *runner) run(ctx context.Context) (Outcome, error) {
	record, err := r.store.Load()
	if err != nil {
		return OutcomeFailed, fmt.Errorf("load manifest: %w", err)
	}

	logger.InfoKV(ctx, "Current version", "package", r.pkg, "version", record.Version)

	info, err := r.releases.ResolveLatest(ctx, r.repo)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("resolve latest release: %w", err)
	}

	logger.InfoKV(ctx, "Latest upstream version", "package", r.pkg, "version", info.Version)

	if info.Version == record.Version {
		logger.InfoKV(ctx, "No update needed", "package", r.pkg)

		return OutcomeNoop, nil
	}

	// Every requested architecture must resolve before any write happens.
	archResults, err := r.resolveAssets(ctx, info.Version)
	if err != nil {
		return OutcomeFailed, err
	}

	merged := manifest.Merge(record, info.Version, archResults)

	if err = r.store.Persist(merged); err != nil {
		return OutcomeFailed, fmt.Errorf("persist manifest: %w", err)
	}

	if r.skipCommit {
		logger.InfoKV(ctx, "Skipping commit", "package", r.pkg)

		return OutcomeCommitSkipped, nil
	}

	message := fmt.Sprintf("auto-update %s to version %s", r.pkg, info.Version)

	if err = r.committer.Commit(ctx, r.store.Path(), message); err != nil {
		return OutcomeFailed, fmt.Errorf("commit manifest: %w", err)
	}

	return OutcomeCommitted, nil
}

// resolveAssets downloads and hashes the asset of every requested
// architecture, strictly one at a time in stable key order.
func (r *runner) resolveAssets(ctx context.Context, version string) (map[string]manifest.AssetEntry, error) {
	results := make(map[string]manifest.AssetEntry, len(r.spec))

	for _, arch := range sortedKeys(r.spec) {
		downloadURL := asset.DownloadURL(r.releasesHost, r.repo, version, r.spec[arch])

		logger.InfoKV(ctx, "Calculating hash for asset", "architecture", arch, "url", downloadURL)

		hash, err := r.assets.FetchAndHash(ctx, downloadURL)
		if err != nil {
			return nil, fmt.Errorf("hash asset for %s: %w", arch, err)
		}

		logger.InfoKV(ctx, "New hash", "architecture", arch, "hash", hash)

		results[arch] = manifest.AssetEntry{
			URL:  downloadURL,
			Hash: hash,
		}
	}

	return results, nil
}

// cleanup removes the running marker.
func (r *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	logger.Debug(ctx, "The updater has been stopped")
}
