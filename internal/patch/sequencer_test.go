package patch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tallgren/regraft/internal/config"
	"github.com/tallgren/regraft/internal/confirm"
	"github.com/tallgren/regraft/internal/errors"
	"github.com/tallgren/regraft/internal/git"
	"github.com/tallgren/regraft/internal/logging"
	"github.com/tallgren/regraft/internal/testutil"
)

// fakeExecutor scripts syntax-check subprocess outcomes by file path.
type fakeExecutor struct {
	calls    [][]string
	failures map[string]string // file path -> error output
}

func (f *fakeExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	path := args[len(args)-1]
	if msg, ok := f.failures[path]; ok {
		return []byte(msg), fmt.Errorf("exit status 1")
	}
	return nil, nil
}

func (f *fakeExecutor) RunQuiet(dir string, name string, args ...string) error {
	_, err := f.Run(dir, name, args...)
	return err
}

// checkedFiles returns the py_compile targets in invocation order.
func (f *fakeExecutor) checkedFiles() []string {
	var files []string
	for _, call := range f.calls {
		if len(call) >= 4 && call[2] == "py_compile" {
			files = append(files, call[3])
		}
	}
	return files
}

// resolvingConfirmer edits files before answering, simulating an operator
// hand-porting a conflicted patch.
type resolvingConfirmer struct {
	repoDir string
	fix     map[string]string // path -> resolved content
	answer  bool
	t       *testing.T
}

func (r *resolvingConfirmer) Confirm(prompt string) (bool, error) {
	for path, content := range r.fix {
		testutil.WriteFile(r.t, r.repoDir, path, content)
		cmd := exec.Command("git", "add", path)
		cmd.Dir = r.repoDir
		if err := cmd.Run(); err != nil {
			r.t.Fatalf("failed to stage resolved file: %v", err)
		}
	}
	return r.answer, nil
}

func (r *resolvingConfirmer) Choose(prompt string, options []string) (int, error) {
	return 0, fmt.Errorf("unexpected Choose call")
}

func newSequencer(t *testing.T, repoDir string, confirmer confirm.Confirmer, units []Unit) (*Sequencer, *fakeExecutor) {
	t.Helper()

	executor := &fakeExecutor{failures: map[string]string{}}
	s := NewSequencer(git.NewClient(repoDir), executor, confirmer, config.Default(), logging.NopLogger())
	s.units = units
	return s, executor
}

func writePatch(t *testing.T, repoDir string, unit Unit, content string) {
	t.Helper()
	testutil.WriteFile(t, repoDir, filepath.Join("patches", unit.FileName()), content)
}

func TestUnitsFixedOrder(t *testing.T) {
	units := Units()
	if len(units) != 7 {
		t.Fatalf("expected 7 units, got %d", len(units))
	}

	names := []string{
		"gh200-package", "uvm-env-wiring", "attention-restore",
		"in-memory-backend", "backend-factory", "diagnostic-script",
		"docs-and-launchers",
	}
	for i, unit := range units {
		if unit.Ordinal != i+1 {
			t.Errorf("unit %d has ordinal %d", i, unit.Ordinal)
		}
		if unit.Name != names[i] {
			t.Errorf("unit %d: expected name %q, got %q", i, names[i], unit.Name)
		}
	}

	if got := units[0].FileName(); got != "01-gh200-package.patch" {
		t.Errorf("unexpected patch file name %q", got)
	}
	if got := units[6].LogName(); got != "07-docs-and-launchers.log" {
		t.Errorf("unexpected log file name %q", got)
	}
}

func TestDiffTargets(t *testing.T) {
	diff := `diff --git a/train.py b/train.py
--- a/train.py
+++ b/train.py
@@ -1 +1 @@
-old
+new
diff --git a/gone.py b/gone.py
--- a/gone.py
+++ /dev/null
@@ -1 +0,0 @@
-removed
diff --git a/docs/GH200.md b/docs/GH200.md
--- /dev/null
+++ b/docs/GH200.md
@@ -0,0 +1 @@
+added
`
	targets := DiffTargets(diff)
	want := []string{"train.py", "docs/GH200.md"}
	if len(targets) != len(want) {
		t.Fatalf("expected %v, got %v", want, targets)
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Errorf("target %d: expected %q, got %q", i, want[i], targets[i])
		}
	}
}

func TestHasConflictMarkers(t *testing.T) {
	if !HasConflictMarkers("a\n<<<<<<< ours\nb\n=======\nc\n>>>>>>> theirs\n") {
		t.Error("marker block should be detected")
	}
	if HasConflictMarkers("a = '======= decorative'\nb\n") {
		t.Error("inline text should not be detected")
	}
}

func TestApplyCleanSequence(t *testing.T) {
	repoDir := testutil.SetupTestRepoWithContent(t, map[string]string{
		"train.py":                "print('one')\n",
		"helpers/training/env.py": "ENV = {}\n",
	})

	unit1 := Unit{Ordinal: 1, Name: "first", Targets: []string{"train.py"}}
	unit2 := Unit{Ordinal: 2, Name: "second", Targets: []string{"helpers/training/env.py"}}
	writePatch(t, repoDir, unit1, testutil.MakePatch(t, repoDir, "train.py", "print('two')\n"))
	writePatch(t, repoDir, unit2, testutil.MakePatch(t, repoDir, "helpers/training/env.py", "ENV = {'uvm': 1}\n"))

	s, executor := newSequencer(t, repoDir, &confirm.Scripted{}, []Unit{unit1, unit2})
	results, err := s.Apply()
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, result := range results {
		if result.Status != StatusCleanApply {
			t.Errorf("unit %d: expected clean apply, got %s", i, result.Status)
		}
		if _, statErr := os.Stat(result.LogPath); statErr != nil {
			t.Errorf("unit %d: apply log missing at %s", i, result.LogPath)
		}
	}

	if got := testutil.ReadFile(t, repoDir, "train.py"); got != "print('two')\n" {
		t.Errorf("patch content not applied, got %q", got)
	}

	checked := executor.checkedFiles()
	if len(checked) != 2 || checked[0] != "train.py" || checked[1] != "helpers/training/env.py" {
		t.Errorf("expected both .py targets syntax-checked in order, got %v", checked)
	}
}

func TestApplyMissingPatchFile(t *testing.T) {
	repoDir := testutil.SetupTestRepo(t)

	unit := Unit{Ordinal: 1, Name: "first", Targets: []string{"train.py"}}
	s, _ := newSequencer(t, repoDir, &confirm.Scripted{}, []Unit{unit})

	results, err := s.Apply()
	if !errors.Is(err, errors.ErrMissingPatchFile) {
		t.Fatalf("expected ErrMissingPatchFile, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("no results expected, got %d", len(results))
	}
}

// setupConflict builds a repository where applying the returned unit's
// patch produces a three-way conflict on train.py.
func setupConflict(t *testing.T) (string, Unit) {
	t.Helper()

	repoDir := testutil.SetupTestRepoWithContent(t, map[string]string{
		"train.py": "line1\nline2\nline3\n",
	})

	unit := Unit{Ordinal: 1, Name: "first", Targets: []string{"train.py"}}
	writePatch(t, repoDir, unit, testutil.MakePatch(t, repoDir, "train.py", "line1\npatched\nline3\n"))

	// Diverge so the patch no longer applies cleanly.
	testutil.CommitFile(t, repoDir, "train.py", "line1\ndiverged\nline3\n", "Diverge")

	return repoDir, unit
}

func TestMarkerGateBlocksEvenOnConfirm(t *testing.T) {
	repoDir, unit := setupConflict(t)

	// The operator confirms without actually resolving anything.
	s, _ := newSequencer(t, repoDir, &confirm.Scripted{Answers: []bool{true}}, []Unit{unit})
	results, err := s.Apply()
	if !errors.Is(err, errors.ErrConflictUnresolved) {
		t.Fatalf("expected ErrConflictUnresolved, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("no unit may complete with markers present, got %d results", len(results))
	}
}

func TestConflictResolvedManually(t *testing.T) {
	repoDir, unit := setupConflict(t)

	confirmer := &resolvingConfirmer{
		repoDir: repoDir,
		fix:     map[string]string{"train.py": "line1\npatched\nline3\n"},
		answer:  true,
		t:       t,
	}
	s, _ := newSequencer(t, repoDir, confirmer, []Unit{unit})

	results, err := s.Apply()
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusConflictResolved {
		t.Fatalf("expected conflict-manually-resolved result, got %+v", results)
	}
}

func TestConflictDeclinedAborts(t *testing.T) {
	repoDir, unit := setupConflict(t)
	unit2 := Unit{Ordinal: 2, Name: "second", Targets: []string{"other.py"}}
	writePatch(t, repoDir, unit2, "unused")

	s, _ := newSequencer(t, repoDir, &confirm.Scripted{Answers: []bool{false}}, []Unit{unit, unit2})
	results, err := s.Apply()
	if !errors.Is(err, errors.ErrConfirmationDeclined) {
		t.Fatalf("expected ErrConfirmationDeclined, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("declined unit must not complete, got %d results", len(results))
	}
}

func TestSyntaxGateFailureHaltsRun(t *testing.T) {
	repoDir := testutil.SetupTestRepoWithContent(t, map[string]string{
		"helpers/data_backend/factory.py": "class DataBackendFactory:\n    pass\n",
		"gh200_diagnostic.py":             "print('diag')\n",
	})

	unit5 := Unit{Ordinal: 5, Name: "backend-factory", Targets: []string{"helpers/data_backend/factory.py"}}
	unit6 := Unit{Ordinal: 6, Name: "diagnostic-script", Targets: []string{"gh200_diagnostic.py"}}
	writePatch(t, repoDir, unit5, testutil.MakePatch(t, repoDir, "helpers/data_backend/factory.py",
		"class DataBackendFactory:\n    def register_builder(self):\n        pass\n"))
	writePatch(t, repoDir, unit6, testutil.MakePatch(t, repoDir, "gh200_diagnostic.py", "print('diag v2')\n"))

	s, executor := newSequencer(t, repoDir, &confirm.Scripted{}, []Unit{unit5, unit6})
	executor.failures["helpers/data_backend/factory.py"] = "SyntaxError: invalid syntax"

	results, err := s.Apply()
	if !errors.Is(err, errors.ErrSyntaxCheckFailed) {
		t.Fatalf("expected ErrSyntaxCheckFailed, got %v", err)
	}

	var patchErr *errors.PatchError
	if !errors.As(err, &patchErr) {
		t.Fatalf("expected PatchError, got %T", err)
	}
	if patchErr.Unit != "backend-factory" {
		t.Errorf("error should name the failing unit, got %q", patchErr.Unit)
	}

	// The failing unit applied cleanly but must not be recorded; the next
	// unit must never be attempted.
	if len(results) != 0 {
		t.Errorf("expected no completed results, got %d", len(results))
	}
	for _, call := range executor.calls {
		if call[len(call)-1] == "gh200_diagnostic.py" {
			t.Error("later units must not be attempted after a syntax failure")
		}
	}

	// The apply transcript for the failing unit is preserved.
	logPath := filepath.Join(repoDir, ".regraft", "logs", "05-backend-factory.log")
	data, readErr := os.ReadFile(logPath)
	if readErr != nil {
		t.Fatalf("apply log missing: %v", readErr)
	}
	if !strings.Contains(string(data), "05-backend-factory.patch") {
		t.Errorf("apply log should reference the patch file, got %q", string(data))
	}
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	repoDir := testutil.SetupTestRepoWithContent(t, map[string]string{
		"train.py": "print('one')\n",
	})

	unit1 := Unit{Ordinal: 1, Name: "first", Targets: []string{"train.py"}}
	unit2 := Unit{Ordinal: 2, Name: "second", Targets: []string{"other.py"}}
	writePatch(t, repoDir, unit1, testutil.MakePatch(t, repoDir, "train.py", "print('two')\n"))
	// unit2 has no patch file on disk.

	s, _ := newSequencer(t, repoDir, &confirm.Scripted{}, []Unit{unit1, unit2})
	results, err := s.Apply()
	if !errors.Is(err, errors.ErrMissingPatchFile) {
		t.Fatalf("expected ErrMissingPatchFile, got %v", err)
	}
	if len(results) != 1 || results[0].Unit.Name != "first" {
		t.Errorf("expected exactly the first unit completed, got %+v", results)
	}
}
