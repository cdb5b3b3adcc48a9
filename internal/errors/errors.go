// Package errors provides centralized error definitions for regraft.
// It defines the sentinel errors raised by each pipeline stage, domain error
// types carrying stage context, and classification helpers used by the CLI
// to decide how failures are reported.
//
// Every fatal error aborts the current run at the point of detection; the
// only non-fatal kind is ErrLedgerWrite, which is surfaced at process exit
// without undoing prior work.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers can import only this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for conditions that do not abort the run.
	SeverityWarning Severity = iota
	// SeverityError is for fatal conditions that abort the run.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Preflight sentinel errors
var (
	// ErrMissingPackage indicates the feature package exists at neither
	// candidate location.
	ErrMissingPackage = New("feature package not found")
	// ErrMissingUpstreamAPI indicates the upstream snapshot lacks a required
	// API symbol the patch sequence assumes.
	ErrMissingUpstreamAPI = New("required upstream API symbol missing")
	// ErrNotGitRepository indicates the working directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
)

// Patch sequencer sentinel errors
var (
	// ErrMissingPatchFile indicates a patch unit's file is absent on disk.
	ErrMissingPatchFile = New("patch file missing")
	// ErrConflictUnresolved indicates conflict markers remain in the working
	// tree after manual resolution was confirmed.
	ErrConflictUnresolved = New("conflict markers remain")
	// ErrSyntaxCheckFailed indicates a patched source file fails the
	// syntax-only compile check.
	ErrSyntaxCheckFailed = New("syntax check failed")
)

// Validation and rollback sentinel errors
var (
	// ErrValidationScriptFailed indicates a verification script exited non-zero.
	ErrValidationScriptFailed = New("validation script failed")
	// ErrNoBackupRecorded indicates the ledger holds no backup entries.
	ErrNoBackupRecorded = New("no backup recorded in ledger")
)

// General sentinel errors
var (
	// ErrConfirmationDeclined indicates the operator declined a confirmation
	// prompt; the run aborts immediately.
	ErrConfirmationDeclined = New("confirmation declined")
	// ErrNotInteractive indicates a prompt was required but stdin is not a
	// terminal.
	ErrNotInteractive = New("interactive confirmation required but stdin is not a terminal")
	// ErrLockHeld indicates another regraft run holds the advisory lock.
	ErrLockHeld = New("another run holds the lock")
	// ErrLedgerWrite indicates the run ledger could not be appended. This is
	// the only non-fatal kind: it is logged and surfaced at exit.
	ErrLedgerWrite = New("ledger write failed")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// RegraftError is the base interface for all regraft errors. It extends the
// standard error interface with severity and reporting classification.
type RegraftError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// Stage returns the pipeline stage the error originated from.
	Stage() string
}

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
	stage    string
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// Stage returns the originating pipeline stage.
func (e *baseError) Stage() string {
	return e.stage
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GitError represents errors from git operations.
//
// Example:
//
//	err := errors.NewGitError("failed to fetch upstream", baseErr).
//		WithBranch("gh200-rebase").WithGitOutput(out)
type GitError struct {
	baseError
	Branch     string
	Repository string
	GitOutput  string // Captured git command output
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
			stage:    "git",
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds captured git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PreflightError represents failed preflight preconditions. No mutation has
// occurred when one of these is raised.
type PreflightError struct {
	baseError
	Symbol string // Missing API symbol, if any
	Path   string // Probed file path, if any
}

// NewPreflightError creates a new PreflightError.
func NewPreflightError(message string, cause error) *PreflightError {
	return &PreflightError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
			stage:    "preflight",
		},
	}
}

// WithSymbol records the missing upstream API symbol.
func (e *PreflightError) WithSymbol(symbol string) *PreflightError {
	e.Symbol = symbol
	return e
}

// WithPath records the probed file path.
func (e *PreflightError) WithPath(path string) *PreflightError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *PreflightError) Error() string {
	var parts []string
	if e.Symbol != "" {
		parts = append(parts, fmt.Sprintf("symbol=%s", e.Symbol))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "preflight error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("preflight error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PreflightError) Is(target error) bool {
	if _, ok := target.(*PreflightError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PatchError represents a failure while applying a patch unit.
type PatchError struct {
	baseError
	Unit    string // Patch unit name, e.g. "05-backend-factory"
	Ordinal int    // 1-based position in the sequence, 0 when unset
	LogPath string // Per-unit apply transcript
	File    string // Offending file for syntax failures
}

// NewPatchError creates a new PatchError.
func NewPatchError(message string, cause error) *PatchError {
	return &PatchError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
			stage:    "patch",
		},
	}
}

// WithUnit adds the patch unit name and ordinal to the error context.
func (e *PatchError) WithUnit(name string, ordinal int) *PatchError {
	e.Unit = name
	e.Ordinal = ordinal
	return e
}

// WithLogPath records where the apply transcript was captured.
func (e *PatchError) WithLogPath(path string) *PatchError {
	e.LogPath = path
	return e
}

// WithFile records the offending file.
func (e *PatchError) WithFile(path string) *PatchError {
	e.File = path
	return e
}

// Error returns the formatted error message.
func (e *PatchError) Error() string {
	var parts []string
	if e.Unit != "" {
		parts = append(parts, fmt.Sprintf("unit=%s", e.Unit))
	}
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}

	prefix := "patch error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("patch error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.LogPath != "" {
		msg = fmt.Sprintf("%s\ninspect log: %s", msg, e.LogPath)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *PatchError) Is(target error) bool {
	if _, ok := target.(*PatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationRunError represents a failed external verification script.
type ValidationRunError struct {
	baseError
	Script   string
	ExitCode int
	LogPath  string
}

// NewValidationRunError creates a new ValidationRunError.
func NewValidationRunError(message string, cause error) *ValidationRunError {
	return &ValidationRunError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
			stage:    "validate",
		},
		ExitCode: -1,
	}
}

// WithScript adds the failing script to the error context.
func (e *ValidationRunError) WithScript(script string) *ValidationRunError {
	e.Script = script
	return e
}

// WithExitCode adds the script's exit code to the error context.
func (e *ValidationRunError) WithExitCode(code int) *ValidationRunError {
	e.ExitCode = code
	return e
}

// WithLogPath records where the script transcript was captured.
func (e *ValidationRunError) WithLogPath(path string) *ValidationRunError {
	e.LogPath = path
	return e
}

// Error returns the formatted error message.
func (e *ValidationRunError) Error() string {
	var parts []string
	if e.Script != "" {
		parts = append(parts, fmt.Sprintf("script=%s", e.Script))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.LogPath != "" {
		msg = fmt.Sprintf("%s\ninspect log: %s", msg, e.LogPath)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *ValidationRunError) Is(target error) bool {
	if _, ok := target.(*ValidationRunError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// LedgerError represents a failure writing the run ledger. Completion-append
// failures are warnings; failures before any mutation are fatal.
type LedgerError struct {
	baseError
	Path string
}

// NewLedgerError creates a fatal LedgerError.
func NewLedgerError(message string, cause error) *LedgerError {
	return &LedgerError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
			stage:    "ledger",
		},
	}
}

// NewLedgerWarning creates a non-fatal LedgerError wrapping ErrLedgerWrite.
func NewLedgerWarning(message string, cause error) *LedgerError {
	if cause == nil {
		cause = ErrLedgerWrite
	} else {
		cause = Join(ErrLedgerWrite, cause)
	}
	return &LedgerError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityWarning,
			stage:    "finalize",
		},
	}
}

// WithPath adds the ledger path to the error context.
func (e *LedgerError) WithPath(path string) *LedgerError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *LedgerError) Error() string {
	prefix := "ledger error"
	if e.Path != "" {
		prefix = fmt.Sprintf("ledger error [path=%s]", e.Path)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *LedgerError) Is(target error) bool {
	if _, ok := target.(*LedgerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsFatal returns true if the error must abort the current run. Everything is
// fatal except nil and warning-severity errors (ledger completion appends).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var re RegraftError
	if As(err, &re) {
		return re.Severity() >= SeverityError
	}

	return true
}

// StageOf returns the pipeline stage an error originated from, or "" for
// errors that carry no stage context.
func StageOf(err error) string {
	var re RegraftError
	if As(err, &re) {
		return re.Stage()
	}
	return ""
}

// GetSeverity returns the severity level of the error. Unknown errors default
// to SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityWarning
	}

	var re RegraftError
	if As(err, &re) {
		return re.Severity()
	}

	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
