package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tallgren/regraft/internal/config"
	"github.com/tallgren/regraft/internal/confirm"
	"github.com/tallgren/regraft/internal/errors"
	"github.com/tallgren/regraft/internal/git"
	"github.com/tallgren/regraft/internal/logging"
)

// Status classifies how a unit landed.
type Status string

const (
	// StatusCleanApply means the three-way apply succeeded without conflicts.
	StatusCleanApply Status = "clean-apply"
	// StatusConflictResolved means the apply conflicted and the operator
	// hand-ported the patch's intent, verified by the marker scan.
	StatusConflictResolved Status = "conflict-manually-resolved"
)

// UnitResult records the outcome of one applied unit.
type UnitResult struct {
	Unit        Unit
	Status      Status
	LogPath     string
	SyntaxFiles []string // .py files that passed the post-apply syntax gate
}

// ResolutionWatcher observes target files during the manual-resolution
// pause and reports remaining conflict-marker counts. Purely advisory.
type ResolutionWatcher interface {
	// Watch starts observing paths under dir. onScan receives the number
	// of files still carrying markers after each rescan. The returned stop
	// function ends observation.
	Watch(dir string, paths []string, onScan func(remaining int)) (stop func(), err error)
}

// Sequencer applies the fixed unit sequence against the reset baseline.
// Strictly sequential: each unit's preconditions depend on the working-tree
// state left by its predecessor.
type Sequencer struct {
	git       *git.Client
	executor  git.CommandExecutor
	confirmer confirm.Confirmer
	cfg       *config.Config
	logger    *logging.Logger
	watcher   ResolutionWatcher // may be nil

	units []Unit
}

// NewSequencer creates a Sequencer over the given repository.
func NewSequencer(gitClient *git.Client, executor git.CommandExecutor, confirmer confirm.Confirmer, cfg *config.Config, logger *logging.Logger) *Sequencer {
	return &Sequencer{
		git:       gitClient,
		executor:  executor,
		confirmer: confirmer,
		cfg:       cfg,
		logger:    logger.WithStage("patch"),
		units:     Units(),
	}
}

// WithWatcher attaches an advisory resolution watcher used during
// manual-conflict pauses.
func (s *Sequencer) WithWatcher(w ResolutionWatcher) *Sequencer {
	s.watcher = w
	return s
}

// Apply runs every unit in ascending ordinal order. The first unresolved
// failure halts the run; completed results up to that point are returned
// alongside the error. No automatic rollback is performed.
func (s *Sequencer) Apply() ([]UnitResult, error) {
	logsDir := s.cfg.Paths.LogsDir(s.git.RepoDir())
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create patch log directory")
	}

	var results []UnitResult
	for _, unit := range s.units {
		result, err := s.applyUnit(unit, logsDir)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// applyUnit drives a single unit through apply, conflict gate, and syntax
// gate.
func (s *Sequencer) applyUnit(unit Unit, logsDir string) (UnitResult, error) {
	log := s.logger.WithUnit(unit.Label())
	logPath := filepath.Join(logsDir, unit.LogName())

	patchPath := filepath.Join(s.cfg.Paths.ResolvePatchDir(s.git.RepoDir()), unit.FileName())
	patchContent, err := os.ReadFile(patchPath)
	if err != nil {
		return UnitResult{}, errors.NewPatchError("patch file missing", errors.Join(errors.ErrMissingPatchFile, err)).
			WithUnit(unit.Name, unit.Ordinal).
			WithFile(patchPath)
	}

	log.Info("applying patch", "file", patchPath)
	applied, applyErr := s.git.ApplyThreeWay(patchPath)
	if writeErr := writeApplyLog(logPath, patchPath, applied.Output); writeErr != nil {
		log.Warn("failed to write apply log", "path", logPath, "error", writeErr.Error())
	}
	if applyErr != nil {
		var patchErr *errors.PatchError
		if errors.As(applyErr, &patchErr) {
			return UnitResult{}, applyErr
		}
		return UnitResult{}, errors.NewPatchError("apply failed", applyErr).
			WithUnit(unit.Name, unit.Ordinal).
			WithLogPath(logPath)
	}

	result := UnitResult{Unit: unit, Status: StatusCleanApply, LogPath: logPath}
	if !applied.Clean {
		if err := s.resolveConflict(unit, logPath, log); err != nil {
			return UnitResult{}, err
		}
		result.Status = StatusConflictResolved
	}

	checked, err := s.syntaxGate(unit, string(patchContent), logPath, log)
	if err != nil {
		return UnitResult{}, err
	}
	result.SyntaxFiles = checked

	log.Info("unit applied", "status", string(result.Status))
	return result, nil
}

// resolveConflict pauses for manual resolution, then independently verifies
// that no conflict markers remain. The marker scan blocks progression even
// when the operator confirms.
func (s *Sequencer) resolveConflict(unit Unit, logPath string, log *logging.Logger) error {
	log.Warn("patch conflicted, manual resolution required", "log", logPath)

	stop := s.startWatcher(unit, log)
	prompt := fmt.Sprintf("Patch %s conflicted (transcript: %s).\nHand-port the patch's intent, then confirm to continue.", unit.Label(), logPath)
	ok, err := s.confirmer.Confirm(prompt)
	if stop != nil {
		stop()
	}
	if err != nil {
		return errors.NewPatchError("conflict confirmation failed", err).
			WithUnit(unit.Name, unit.Ordinal).
			WithLogPath(logPath)
	}
	if !ok {
		return errors.NewPatchError("operator declined to continue", errors.ErrConfirmationDeclined).
			WithUnit(unit.Name, unit.Ordinal).
			WithLogPath(logPath)
	}

	remaining, err := s.scanMarkers(unit)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return errors.NewPatchError(
			fmt.Sprintf("conflict markers remain in %s", strings.Join(remaining, ", ")),
			errors.ErrConflictUnresolved).
			WithUnit(unit.Name, unit.Ordinal).
			WithLogPath(logPath)
	}
	return nil
}

// startWatcher begins the advisory resolution watch, if one is configured.
func (s *Sequencer) startWatcher(unit Unit, log *logging.Logger) func() {
	if s.watcher == nil {
		return nil
	}
	stop, err := s.watcher.Watch(s.git.RepoDir(), unit.Targets, func(remaining int) {
		log.Info("resolution progress", "files_with_markers", remaining)
	})
	if err != nil {
		log.Debug("resolution watcher unavailable", "error", err.Error())
		return nil
	}
	return stop
}

// scanMarkers returns every file that still carries conflict markers:
// unmerged index entries, diff --check complaints, and a direct text scan
// of the unit's targets.
func (s *Sequencer) scanMarkers(unit Unit) ([]string, error) {
	found := map[string]bool{}

	unmerged, err := s.git.ConflictingFiles()
	if err != nil {
		return nil, err
	}
	for _, f := range unmerged {
		found[f] = true
	}

	checkOutput, err := s.git.DiffCheck()
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(checkOutput, "\n") {
		if !strings.Contains(line, "leftover conflict marker") {
			continue
		}
		if path, _, ok := strings.Cut(line, ":"); ok {
			found[path] = true
		}
	}

	for _, target := range unit.Targets {
		content, err := s.git.ReadWorkingFile(target)
		if err != nil {
			continue
		}
		if HasConflictMarkers(content) {
			found[target] = true
		}
	}

	var files []string
	for f := range found {
		files = append(files, f)
	}
	return files, nil
}

// HasConflictMarkers reports whether content carries merge conflict markers.
func HasConflictMarkers(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "<<<<<<<") ||
			strings.HasPrefix(line, ">>>>>>>") ||
			line == "=======" {
			return true
		}
	}
	return false
}

// syntaxGate compile-checks every Python file the patch's diff headers name
// that still exists on disk. A failure is fatal even after a clean apply;
// it catches apply-but-broken states.
func (s *Sequencer) syntaxGate(unit Unit, patchContent, logPath string, log *logging.Logger) ([]string, error) {
	python := s.cfg.Python.Resolve()

	var checked []string
	for _, path := range DiffTargets(patchContent) {
		if !strings.HasSuffix(path, ".py") || !s.git.FileExists(path) {
			continue
		}

		output, err := s.executor.Run(s.git.RepoDir(), python, "-m", "py_compile", path)
		if err != nil {
			return nil, errors.NewPatchError(
				fmt.Sprintf("syntax check failed: %s", strings.TrimSpace(string(output))),
				errors.Join(errors.ErrSyntaxCheckFailed, err)).
				WithUnit(unit.Name, unit.Ordinal).
				WithFile(path).
				WithLogPath(logPath)
		}
		checked = append(checked, path)
		log.Debug("syntax check passed", "file", path)
	}
	return checked, nil
}

// DiffTargets extracts the post-image file paths from a unified diff's
// headers. Deleted files (+++ /dev/null) are skipped.
func DiffTargets(patchContent string) []string {
	var paths []string
	seen := map[string]bool{}
	for _, line := range strings.Split(patchContent, "\n") {
		rest, ok := strings.CutPrefix(line, "+++ ")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if rest == "/dev/null" {
			continue
		}
		rest = strings.TrimPrefix(rest, "b/")
		if path, _, cut := strings.Cut(rest, "\t"); cut {
			rest = path
		}
		if rest != "" && !seen[rest] {
			seen[rest] = true
			paths = append(paths, rest)
		}
	}
	return paths
}

// writeApplyLog persists the apply transcript for one unit.
func writeApplyLog(logPath, patchPath, output string) error {
	content := fmt.Sprintf("$ git apply --3way --verbose %s\n%s", patchPath, output)
	return os.WriteFile(logPath, []byte(content), 0644)
}
