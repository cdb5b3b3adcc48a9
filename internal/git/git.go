// Package git wraps the git CLI operations the rebase pipeline depends on:
// fetch, branch creation, object-store reads, three-way patch application,
// and conflict detection. All commands run through a CommandExecutor so
// tests can substitute a mock without executing git.
package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tallgren/regraft/internal/errors"
)

// -----------------------------------------------------------------------------
// Command Executor
// -----------------------------------------------------------------------------

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command and returns only the error.
	RunQuiet(dir string, name string, args ...string) error
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunQuiet executes a command and returns only the error.
func (e *CLICommandExecutor) RunQuiet(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Run()
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client provides the git operations used by the rebase pipeline.
// All operations run against a single repository directory.
type Client struct {
	repoDir  string
	executor CommandExecutor
}

// NewClient creates a Client for the given repository directory.
func NewClient(repoDir string) *Client {
	return &Client{
		repoDir:  repoDir,
		executor: NewCLICommandExecutor(),
	}
}

// NewClientWithExecutor creates a Client with a custom executor.
// This is primarily useful for testing.
func NewClientWithExecutor(repoDir string, executor CommandExecutor) *Client {
	return &Client{
		repoDir:  repoDir,
		executor: executor,
	}
}

// RepoDir returns the repository directory.
func (c *Client) RepoDir() string {
	return c.repoDir
}

// IsRepository returns true if repoDir is inside a git work tree.
func (c *Client) IsRepository() bool {
	return c.executor.RunQuiet(c.repoDir, "git", "rev-parse", "--is-inside-work-tree") == nil
}

// CurrentBranch returns the branch name HEAD points at.
func (c *Client) CurrentBranch() (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to resolve current branch", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// Head returns the commit ID HEAD points at.
func (c *Client) Head() (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to resolve HEAD", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// Fetch fetches a ref from a remote.
func (c *Client) Fetch(remote, ref string) error {
	output, err := c.executor.Run(c.repoDir, "git", "fetch", remote, ref)
	if err != nil {
		return errors.NewGitError("failed to fetch "+remote+"/"+ref, err).
			WithRepository(c.repoDir).
			WithBranch(ref).
			WithGitOutput(string(output))
	}
	return nil
}

// MergeBase returns the merge-base commit between two refs.
func (c *Client) MergeBase(a, b string) (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "merge-base", a, b)
	if err != nil {
		return "", errors.NewGitError("failed to compute merge-base of "+a+" and "+b, err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// ShowFile reads a file from the object store at the given ref without
// checking it out. Returns the file content.
func (c *Client) ShowFile(ref, path string) (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "show", ref+":"+path)
	if err != nil {
		return "", errors.NewGitError("failed to read "+path+" at "+ref, err).
			WithRepository(c.repoDir).
			WithBranch(ref).
			WithGitOutput(string(output))
	}
	return string(output), nil
}

// CreateBranchAt creates a branch pointing at the given commit without
// switching to it. Fails if the branch already exists.
func (c *Client) CreateBranchAt(branch, commit string) error {
	output, err := c.executor.Run(c.repoDir, "git", "branch", branch, commit)
	if err != nil {
		return errors.NewGitError("failed to create branch "+branch+" at "+commit, err).
			WithRepository(c.repoDir).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// ForceCheckoutBranch creates or resets a branch at the given ref and
// switches to it (git checkout -B). Destructive to any prior content of the
// branch name; callers must record a backup first.
func (c *Client) ForceCheckoutBranch(branch, ref string) error {
	output, err := c.executor.Run(c.repoDir, "git", "checkout", "-B", branch, ref)
	if err != nil {
		return errors.NewGitError("failed to force-checkout branch "+branch+" at "+ref, err).
			WithRepository(c.repoDir).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// Checkout switches to an existing branch.
func (c *Client) Checkout(branch string) error {
	output, err := c.executor.Run(c.repoDir, "git", "checkout", branch)
	if err != nil {
		return errors.NewGitError("failed to checkout "+branch, err).
			WithRepository(c.repoDir).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// ResetHard resets the working tree and index to the given ref.
func (c *Client) ResetHard(ref string) error {
	output, err := c.executor.Run(c.repoDir, "git", "reset", "--hard", ref)
	if err != nil {
		return errors.NewGitError("failed to reset to "+ref, err).
			WithRepository(c.repoDir).
			WithBranch(ref).
			WithGitOutput(string(output))
	}
	return nil
}

// BranchExists returns true if the given branch can be resolved.
func (c *Client) BranchExists(branch string) bool {
	return c.executor.RunQuiet(c.repoDir, "git", "rev-parse", "--verify", branch) == nil
}

// ApplyResult distinguishes a clean apply from a conflicted one.
type ApplyResult struct {
	Clean  bool
	Output string // combined apply output, conflict details included
}

// ApplyThreeWay applies a patch file with three-way merge fallback.
// A conflicted apply is not an error at this level: the caller inspects
// Clean and drives manual resolution. Only malformed invocations (missing
// patch file, corrupt diff) return an error.
func (c *Client) ApplyThreeWay(patchPath string) (ApplyResult, error) {
	output, err := c.executor.Run(c.repoDir, "git", "apply", "--3way", "--verbose", patchPath)
	outputStr := string(output)
	if err != nil {
		if isConflictOutput(outputStr) {
			return ApplyResult{Clean: false, Output: outputStr}, nil
		}
		return ApplyResult{Output: outputStr}, errors.NewGitError("failed to apply "+patchPath, err).
			WithRepository(c.repoDir).
			WithGitOutput(outputStr)
	}
	return ApplyResult{Clean: true, Output: outputStr}, nil
}

// isConflictOutput reports whether apply output indicates three-way conflicts
// rather than a malformed patch.
func isConflictOutput(output string) bool {
	return strings.Contains(output, "with conflicts") ||
		strings.Contains(output, "CONFLICT")
}

// DiffCheck runs the structural consistency check (git diff --check) and
// returns its output. Non-empty output means leftover conflict markers or
// whitespace damage; the command's non-zero exit in that case is not an error.
func (c *Client) DiffCheck() (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "diff", "--check")
	outputStr := strings.TrimSpace(string(output))
	if err != nil && outputStr == "" {
		return "", errors.NewGitError("failed to run diff --check", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return outputStr, nil
}

// ConflictingFiles returns files with unresolved merge conflicts.
func (c *Client) ConflictingFiles() ([]string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, errors.NewGitError("failed to list conflicting files", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}

	lines := strings.TrimSpace(string(output))
	if lines == "" {
		return []string{}, nil
	}
	return strings.Split(lines, "\n"), nil
}

// StatusPorcelain returns the porcelain status output for final reporting.
func (c *Client) StatusPorcelain() (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "status", "--porcelain")
	if err != nil {
		return "", errors.NewGitError("failed to check git status", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return string(output), nil
}

// FileExists reports whether a path exists in the working tree.
// Lives here so callers resolve paths relative to the repository root.
func (c *Client) FileExists(relPath string) bool {
	info, err := os.Stat(c.join(relPath))
	return err == nil && !info.IsDir()
}

// DirExists reports whether a directory exists in the working tree.
func (c *Client) DirExists(relPath string) bool {
	info, err := os.Stat(c.join(relPath))
	return err == nil && info.IsDir()
}

// ReadWorkingFile reads a file from the working tree by repository-relative path.
func (c *Client) ReadWorkingFile(relPath string) (string, error) {
	data, err := os.ReadFile(c.join(relPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) join(relPath string) string {
	return filepath.Join(c.repoDir, filepath.FromSlash(relPath))
}
