package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/oshokin/manifest-updater/internal/logger"
)

const (
	// botName is the author identity used for unattended commits.
	botName = "github-actions[bot]"
	// botEmail is the author email used for unattended commits.
	botEmail = "github-actions[bot]@users.noreply.github.com"
)

// Committer stages and commits a rewritten manifest file.
// It is invoked only after a successful, content-changing persist.
type Committer interface {
	Commit(ctx context.Context, path, message string) error
}

// GitCommitter commits through the git binary under a fixed bot identity.
type GitCommitter struct {
	// workDir is the directory git commands run in; empty means the current one.
	workDir string
}

// NewGitCommitter creates a committer operating in the provided directory.
func NewGitCommitter(workDir string) *GitCommitter {
	return &GitCommitter{
		workDir: workDir,
	}
}

// Commit configures the bot identity, stages the file and commits it.
// A clean worktree after staging is not an error: there is nothing to commit.
func (g *GitCommitter) Commit(ctx context.Context, path, message string) error {
	steps := [][]string{
		{"config", "user.name", botName},
		{"config", "user.email", botEmail},
		{"add", path},
	}

	for _, args := range steps {
		if err := g.git(ctx, args...); err != nil {
			return err
		}
	}

	status, err := g.gitOutput(ctx, "status", "--porcelain")
	if err != nil {
		return err
	}

	if len(bytes.TrimSpace(status)) == 0 {
		logger.InfoKV(ctx, "No changes to commit", "path", path)

		return nil
	}

	if err := g.git(ctx, "commit", "-m", message); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Committed manifest", "path", path, "message", message)

	return nil
}

// git runs a git command, surfacing its combined output on failure.
func (g *GitCommitter) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, bytes.TrimSpace(output))
	}

	return nil
}

// gitOutput runs a git command and returns its standard output.
func (g *GitCommitter) gitOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}

	return output, nil
}
