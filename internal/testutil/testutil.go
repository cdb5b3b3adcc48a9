// Package testutil provides testing utilities for regraft tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// SetupTestRepo creates a temporary git repository for testing.
// Returns the path to the repository. The repository is automatically
// cleaned up when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	if err := runGit(dir, "init"); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	// Configure git user for commits
	if err := runGit(dir, "config", "user.email", "test@regraft.dev"); err != nil {
		t.Fatalf("failed to configure git email: %v", err)
	}
	if err := runGit(dir, "config", "user.name", "Regraft Test"); err != nil {
		t.Fatalf("failed to configure git name: %v", err)
	}

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Repository\n"), 0644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Initial commit"); err != nil {
		t.Fatalf("failed to create initial commit: %v", err)
	}

	// Some systems default to master
	if err := runGit(dir, "branch", "-M", "main"); err != nil {
		t.Fatalf("failed to rename branch to main: %v", err)
	}

	return dir
}

// SetupTestRepoWithContent creates a test repository with specified files.
// The files map contains relative paths to file contents.
func SetupTestRepoWithContent(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := SetupTestRepo(t)

	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}

	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Add test files"); err != nil {
		t.Fatalf("failed to commit test files: %v", err)
	}

	return dir
}

// CloneRepo clones srcDir into a fresh temporary directory and configures
// the git user. The clone shares history with srcDir, so merge-base
// queries between the two resolve.
func CloneRepo(t *testing.T, srcDir string) string {
	t.Helper()

	dir := t.TempDir()
	cmd := exec.Command("git", "clone", srcDir, dir)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to clone %s: %v\n%s", srcDir, err, output)
	}

	if err := runGit(dir, "config", "user.email", "test@regraft.dev"); err != nil {
		t.Fatalf("failed to configure git email: %v", err)
	}
	if err := runGit(dir, "config", "user.name", "Regraft Test"); err != nil {
		t.Fatalf("failed to configure git name: %v", err)
	}
	return dir
}

// SetupUpstreamRemote registers a second repository as the "upstream" remote
// of repoDir and fetches it, so upstream/<branch> refs resolve locally.
func SetupUpstreamRemote(t *testing.T, repoDir, upstreamDir string) {
	t.Helper()

	if err := runGit(repoDir, "remote", "add", "upstream", upstreamDir); err != nil {
		t.Fatalf("failed to add upstream remote: %v", err)
	}
	if err := runGit(repoDir, "fetch", "upstream"); err != nil {
		t.Fatalf("failed to fetch upstream: %v", err)
	}
}

// CommitFile creates or updates a file and commits it.
func CommitFile(t *testing.T, repoDir, path, content, message string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	if err := runGit(repoDir, "add", path); err != nil {
		t.Fatalf("failed to stage file %s: %v", path, err)
	}
	if err := runGit(repoDir, "commit", "-m", message); err != nil {
		t.Fatalf("failed to commit file %s: %v", path, err)
	}
}

// WriteFile writes a file into the repository without committing it.
func WriteFile(t *testing.T, repoDir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// ReadFile reads a repository file and fails the test on error.
func ReadFile(t *testing.T, repoDir, path string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(repoDir, path))
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// CheckoutBranch switches to a branch.
func CheckoutBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	if err := runGit(repoDir, "checkout", branch); err != nil {
		t.Fatalf("failed to checkout branch %s: %v", branch, err)
	}
}

// CreateBranch creates a new branch in the repository.
func CreateBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	if err := runGit(repoDir, "branch", branch); err != nil {
		t.Fatalf("failed to create branch %s: %v", branch, err)
	}
}

// GetCurrentBranch returns the current branch name.
func GetCurrentBranch(t *testing.T, repoDir string) string {
	t.Helper()

	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = repoDir
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("failed to get current branch: %v", err)
	}
	return strings.TrimSpace(string(output))
}

// GetHead returns the commit ID HEAD points at.
func GetHead(t *testing.T, repoDir string) string {
	t.Helper()

	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = repoDir
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("failed to resolve HEAD: %v", err)
	}
	return strings.TrimSpace(string(output))
}

// MakePatch produces a unified diff between two committed states of a file by
// committing newContent on a throwaway branch and capturing git diff output.
// The repository is left on its original branch with a clean tree.
func MakePatch(t *testing.T, repoDir, path, newContent string) string {
	t.Helper()

	origBranch := GetCurrentBranch(t, repoDir)
	origHead := GetHead(t, repoDir)

	if err := runGit(repoDir, "checkout", "-b", "patch-scratch"); err != nil {
		t.Fatalf("failed to create scratch branch: %v", err)
	}
	CommitFile(t, repoDir, path, newContent, "scratch change")

	cmd := exec.Command("git", "diff", origHead, "HEAD")
	cmd.Dir = repoDir
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("failed to diff scratch branch: %v", err)
	}

	if err := runGit(repoDir, "checkout", origBranch); err != nil {
		t.Fatalf("failed to return to %s: %v", origBranch, err)
	}
	if err := runGit(repoDir, "branch", "-D", "patch-scratch"); err != nil {
		t.Fatalf("failed to delete scratch branch: %v", err)
	}

	return string(output)
}

// runGit executes a git command in the given directory.
func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	return cmd.Run()
}
