// Package git locates the project a local config file belongs to.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const commandTimeout = 5 * time.Second

// Root returns the top-level directory of the work tree containing path.
// Returns an error if git is not installed or path is not inside a repository.
func Root(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("not a git repository or git command failed: %w (stderr: %s)", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("failed to execute git command (is git installed?): %w", err)
	}

	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", fmt.Errorf("git returned an empty work tree root for %s", path)
	}
	return filepath.Clean(root), nil
}

// ProjectRoot returns the repository root containing dir, or dir itself
// when it is not inside a repository.
func ProjectRoot(dir string) string {
	if root, err := Root(dir); err == nil {
		return root
	}
	return dir
}

// IsGitRepo returns true if the given path is within a git repository.
// Returns false on any error (git not installed, not a repo, etc.).
func IsGitRepo(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}
