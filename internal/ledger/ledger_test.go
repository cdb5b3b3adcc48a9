package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tallgren/regraft/internal/errors"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state", "ledger.md"))
}

func TestAppendBackupWritesTwoLines(t *testing.T) {
	l := testLedger(t)

	ref := BackupReference{
		Name:       "backup/gh200-pre-rebase-20260829-101112",
		FromBranch: "feature/audio",
		CreatedAt:  time.Date(2026, 8, 29, 10, 11, 12, 0, time.UTC),
	}
	if err := l.AppendBackup(ref); err != nil {
		t.Fatalf("AppendBackup failed: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("failed to read ledger file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ledger lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], ref.Name) {
		t.Errorf("first line should carry the backup branch name, got %q", lines[0])
	}
	if !strings.Contains(lines[0], "2026-08-29T10:11:12Z") {
		t.Errorf("first line should carry the timestamp, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "feature/audio") {
		t.Errorf("second line should carry the originating branch, got %q", lines[1])
	}
}

func TestLatestBackupRoundTrip(t *testing.T) {
	l := testLedger(t)

	first := BackupReference{
		Name:       "backup/gh200-pre-rebase-20260829-090000",
		FromBranch: "main",
		CreatedAt:  time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
	}
	second := BackupReference{
		Name:       "backup/gh200-pre-rebase-20260829-101112",
		FromBranch: "feature/audio",
		CreatedAt:  time.Date(2026, 8, 29, 10, 11, 12, 0, time.UTC),
	}

	if err := l.AppendBackup(first); err != nil {
		t.Fatalf("AppendBackup failed: %v", err)
	}
	if err := l.AppendBackup(second); err != nil {
		t.Fatalf("AppendBackup failed: %v", err)
	}

	got, err := l.LatestBackup()
	if err != nil {
		t.Fatalf("LatestBackup failed: %v", err)
	}
	if got.Name != second.Name {
		t.Errorf("expected latest backup %q, got %q", second.Name, got.Name)
	}
	if got.FromBranch != second.FromBranch {
		t.Errorf("expected originating branch %q, got %q", second.FromBranch, got.FromBranch)
	}
	if !got.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("expected timestamp %v, got %v", second.CreatedAt, got.CreatedAt)
	}
}

func TestLatestBackupEmptyLedger(t *testing.T) {
	l := testLedger(t)

	_, err := l.LatestBackup()
	if !errors.Is(err, errors.ErrNoBackupRecorded) {
		t.Errorf("expected ErrNoBackupRecorded, got %v", err)
	}
}

func TestLatestBackupNoBackupLines(t *testing.T) {
	l := testLedger(t)

	if err := l.AppendCompletion(time.Now(), "outcome=success units=7"); err != nil {
		t.Fatalf("AppendCompletion failed: %v", err)
	}

	_, err := l.LatestBackup()
	if !errors.Is(err, errors.ErrNoBackupRecorded) {
		t.Errorf("expected ErrNoBackupRecorded, got %v", err)
	}
}

func TestAppendCompletionPreservesPriorContent(t *testing.T) {
	l := testLedger(t)

	ref := BackupReference{
		Name:       "backup/gh200-pre-rebase-20260829-101112",
		FromBranch: "main",
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.AppendBackup(ref); err != nil {
		t.Fatalf("AppendBackup failed: %v", err)
	}
	if err := l.AppendCompletion(time.Now(), "outcome=success units=7"); err != nil {
		t.Fatalf("AppendCompletion failed: %v", err)
	}

	backups, err := l.Backups()
	if err != nil {
		t.Fatalf("Backups failed: %v", err)
	}
	if len(backups) != 1 || backups[0].Name != ref.Name {
		t.Errorf("backup entry lost after completion append: %+v", backups)
	}

	completions, err := l.Completions()
	if err != nil {
		t.Fatalf("Completions failed: %v", err)
	}
	if len(completions) != 1 || !strings.Contains(completions[0], "outcome=success") {
		t.Errorf("unexpected completions: %q", completions)
	}
}

func TestBackupsOrderedOldestFirst(t *testing.T) {
	l := testLedger(t)

	names := []string{
		"backup/gh200-pre-rebase-20260829-090000",
		"backup/gh200-pre-rebase-20260829-100000",
		"backup/gh200-pre-rebase-20260829-110000",
	}
	for _, name := range names {
		ref := BackupReference{Name: name, FromBranch: "main", CreatedAt: time.Now().UTC()}
		if err := l.AppendBackup(ref); err != nil {
			t.Fatalf("AppendBackup failed: %v", err)
		}
	}

	backups, err := l.Backups()
	if err != nil {
		t.Fatalf("Backups failed: %v", err)
	}
	if len(backups) != len(names) {
		t.Fatalf("expected %d backups, got %d", len(names), len(backups))
	}
	for i, name := range names {
		if backups[i].Name != name {
			t.Errorf("backup %d: expected %q, got %q", i, name, backups[i].Name)
		}
	}
}

func TestAppendCompletionFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	// Point the ledger at a path whose parent is a file so the append fails.
	blocking := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocking, []byte("x"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	l := New(filepath.Join(blocking, "ledger.md"))

	err := l.AppendCompletion(time.Now(), "outcome=success")
	if err == nil {
		t.Fatal("expected append to fail")
	}
	if errors.GetSeverity(err) != errors.SeverityWarning {
		t.Errorf("completion append failure should be a warning, got severity %v", errors.GetSeverity(err))
	}
	if !errors.Is(err, errors.ErrLedgerWrite) {
		t.Errorf("expected ErrLedgerWrite in chain, got %v", err)
	}
}

func TestAppendBackupFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocking := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocking, []byte("x"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	l := New(filepath.Join(blocking, "ledger.md"))

	err := l.AppendBackup(BackupReference{Name: "backup/x", FromBranch: "main", CreatedAt: time.Now()})
	if err == nil {
		t.Fatal("expected append to fail")
	}
	if !errors.IsFatal(err) {
		t.Errorf("backup append failure must be fatal, got %v", err)
	}
}
