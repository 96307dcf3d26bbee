package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func assertSamePath(t *testing.T, label, got, want string) {
	t.Helper()

	gotClean := filepath.Clean(got)
	wantClean := filepath.Clean(want)

	gotInfo, gotErr := os.Stat(gotClean)
	wantInfo, wantErr := os.Stat(wantClean)
	if gotErr == nil && wantErr == nil {
		if !os.SameFile(gotInfo, wantInfo) {
			t.Errorf("%s = %q, want same location as %q", label, got, want)
		}
		return
	}

	if runtime.GOOS == "windows" {
		if !strings.EqualFold(gotClean, wantClean) {
			t.Errorf("%s = %q, want %q", label, got, want)
		}
		return
	}

	if gotClean != wantClean {
		t.Errorf("%s = %q, want %q", label, got, want)
	}
}

// setupGitRepo initializes an empty git repo in the given directory.
func setupGitRepo(t *testing.T, path string) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	if err := exec.Command("git", "init", path).Run(); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}
}

func TestRoot_FromSubdirectory(t *testing.T) {
	repoPath := t.TempDir()
	setupGitRepo(t, repoPath)

	sub := filepath.Join(repoPath, "packages", "web")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	root, err := Root(sub)
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	assertSamePath(t, "Root", root, repoPath)
}

func TestRoot_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	if _, err := Root(t.TempDir()); err == nil {
		t.Error("expected error for a directory outside any repository")
	}
}

func TestProjectRoot(t *testing.T) {
	repoPath := t.TempDir()
	setupGitRepo(t, repoPath)

	sub := filepath.Join(repoPath, "src")
	os.MkdirAll(sub, 0755)
	assertSamePath(t, "ProjectRoot(repo)", ProjectRoot(sub), repoPath)

	plain := t.TempDir()
	if got := ProjectRoot(plain); got != plain {
		t.Errorf("ProjectRoot(plain) = %q, want %q", got, plain)
	}
}

func TestIsGitRepo(t *testing.T) {
	repoPath := t.TempDir()
	setupGitRepo(t, repoPath)

	if !IsGitRepo(repoPath) {
		t.Error("IsGitRepo(repo) = false, want true")
	}
	if IsGitRepo(t.TempDir()) {
		t.Error("IsGitRepo(tempdir) = true, want false")
	}
}
