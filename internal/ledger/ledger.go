// Package ledger maintains the append-only run ledger: the durable record
// of backup references and completed runs. Entries are plain lines appended
// to a checklist artifact; nothing in this package ever rewrites prior
// content.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tallgren/regraft/internal/errors"
)

// Line prefixes. The ledger is a markdown bullet list so it stays readable
// as a checklist artifact.
const (
	backupBranchPrefix = "- backup-branch: "
	backupOriginPrefix = "- backup-origin: "
	completionPrefix   = "- run-complete: "
)

// timeLayout is the timestamp format used in ledger lines.
const timeLayout = time.RFC3339

// BackupReference is an immutable pointer to pre-rebase state: the backup
// branch name plus the branch that was checked out when the run started.
type BackupReference struct {
	Name       string
	FromBranch string
	CreatedAt  time.Time
}

// Ledger appends to and reads from the backing ledger file.
type Ledger struct {
	path string
}

// New creates a Ledger backed by the given file path. The file is created
// lazily on first append.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// AppendBackup records a BackupReference as two appended lines: the backup
// branch name and the originating branch. Failure here is fatal: no reset
// may run without a recorded backup.
func (l *Ledger) AppendBackup(ref BackupReference) error {
	lines := fmt.Sprintf("%s%s at=%s\n%s%s\n",
		backupBranchPrefix, ref.Name, ref.CreatedAt.UTC().Format(timeLayout),
		backupOriginPrefix, ref.FromBranch)

	if err := l.append(lines); err != nil {
		return errors.NewLedgerError("failed to record backup reference", err).
			WithPath(l.path)
	}
	return nil
}

// AppendCompletion records a completed run. This is the Finalizer's only
// write; failure is returned as a non-fatal warning.
func (l *Ledger) AppendCompletion(at time.Time, summary string) error {
	line := fmt.Sprintf("%s%s %s\n", completionPrefix, at.UTC().Format(timeLayout), summary)

	if err := l.append(line); err != nil {
		return errors.NewLedgerWarning("failed to record run completion", err).
			WithPath(l.path)
	}
	return nil
}

// LatestBackup returns the most recently recorded BackupReference.
// Returns ErrNoBackupRecorded when the ledger holds none.
func (l *Ledger) LatestBackup() (BackupReference, error) {
	lines, err := l.readLines()
	if err != nil {
		if os.IsNotExist(err) {
			return BackupReference{}, errors.ErrNoBackupRecorded
		}
		return BackupReference{}, errors.NewLedgerError("failed to read ledger", err).
			WithPath(l.path)
	}

	// Scan from the end for the newest backup-branch line, then pair it
	// with its origin line.
	for i := len(lines) - 1; i >= 0; i-- {
		if !strings.HasPrefix(lines[i], backupBranchPrefix) {
			continue
		}

		ref := parseBackupBranch(lines[i])
		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], backupOriginPrefix) {
			ref.FromBranch = strings.TrimSpace(strings.TrimPrefix(lines[i+1], backupOriginPrefix))
		}
		return ref, nil
	}

	return BackupReference{}, errors.ErrNoBackupRecorded
}

// Backups returns every recorded BackupReference, oldest first.
func (l *Ledger) Backups() ([]BackupReference, error) {
	lines, err := l.readLines()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewLedgerError("failed to read ledger", err).
			WithPath(l.path)
	}

	var refs []BackupReference
	for i, line := range lines {
		if !strings.HasPrefix(line, backupBranchPrefix) {
			continue
		}
		ref := parseBackupBranch(line)
		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], backupOriginPrefix) {
			ref.FromBranch = strings.TrimSpace(strings.TrimPrefix(lines[i+1], backupOriginPrefix))
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Completions returns every run-completion line, oldest first.
func (l *Ledger) Completions() ([]string, error) {
	lines, err := l.readLines()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewLedgerError("failed to read ledger", err).
			WithPath(l.path)
	}

	var completions []string
	for _, line := range lines {
		if strings.HasPrefix(line, completionPrefix) {
			completions = append(completions, strings.TrimPrefix(line, completionPrefix))
		}
	}
	return completions, nil
}

// parseBackupBranch extracts the name and timestamp from a backup-branch line.
func parseBackupBranch(line string) BackupReference {
	rest := strings.TrimPrefix(line, backupBranchPrefix)

	ref := BackupReference{Name: strings.TrimSpace(rest)}
	if idx := strings.Index(rest, " at="); idx >= 0 {
		ref.Name = strings.TrimSpace(rest[:idx])
		if ts, err := time.Parse(timeLayout, strings.TrimSpace(rest[idx+len(" at="):])); err == nil {
			ref.CreatedAt = ts
		}
	}
	return ref
}

// append opens the file in append-only mode and writes the given content.
func (l *Ledger) append(content string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return err
	}
	return f.Sync()
}

// readLines reads the ledger file as individual lines.
func (l *Ledger) readLines() ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
