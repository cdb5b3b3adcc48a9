// Package pipeline wires the six stages into a single strictly sequential
// run: preflight verification, backup, baseline reset, patch sequencing,
// validation, and finalization. An advisory lock guards the whole run.
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/tallgren/regraft/internal/backup"
	"github.com/tallgren/regraft/internal/config"
	"github.com/tallgren/regraft/internal/confirm"
	"github.com/tallgren/regraft/internal/conflict"
	"github.com/tallgren/regraft/internal/display"
	"github.com/tallgren/regraft/internal/errors"
	"github.com/tallgren/regraft/internal/git"
	"github.com/tallgren/regraft/internal/ledger"
	"github.com/tallgren/regraft/internal/lockfile"
	"github.com/tallgren/regraft/internal/logging"
	"github.com/tallgren/regraft/internal/patch"
	"github.com/tallgren/regraft/internal/preflight"
	"github.com/tallgren/regraft/internal/validate"
)

// Options control a single run.
type Options struct {
	// SkipTests skips the validation stage. The skip is logged, not silent.
	SkipTests bool
}

// Pipeline orchestrates one run against one repository.
type Pipeline struct {
	repoDir   string
	cfg       *config.Config
	logger    *logging.Logger
	confirmer confirm.Confirmer
	display   *display.Display

	git    *git.Client
	ledger *ledger.Ledger

	// Test seams; production wiring uses the real implementations.
	syntaxExecutor git.CommandExecutor
	scriptExecutor validate.ScriptExecutor
	watcher        patch.ResolutionWatcher
	now            func() time.Time
}

// New creates a Pipeline for the repository at repoDir, writing
// user-facing output to out.
func New(repoDir string, cfg *config.Config, logger *logging.Logger, confirmer confirm.Confirmer, out io.Writer) *Pipeline {
	return &Pipeline{
		repoDir:        repoDir,
		cfg:            cfg,
		logger:         logger,
		confirmer:      confirmer,
		display:        display.New(out),
		git:            git.NewClient(repoDir),
		ledger:         ledger.New(cfg.Paths.LedgerPath(repoDir)),
		syntaxExecutor: git.NewCLICommandExecutor(),
		scriptExecutor: validate.ExecScriptExecutor{},
		watcher:        conflict.NewWatcher(),
		now:            time.Now,
	}
}

// Run executes stages 1 through 6. The first fatal error halts the run;
// the working tree is left exactly as it was at the point of failure.
func (p *Pipeline) Run(opts Options) error {
	lock, err := lockfile.Acquire(p.cfg.Paths.LockPath(p.repoDir))
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			p.logger.Warn("failed to release run lock", "error", releaseErr.Error())
		}
	}()

	startedAt := p.now()

	p.display.Stage(1, "Preflight Verifier")
	record, err := preflight.NewVerifier(p.git, p.confirmer, p.cfg, p.logger).Run()
	if err != nil {
		return p.fail(record, nil, opts, startedAt, err)
	}
	p.display.Info("package %s (%s)", record.PackageDir, record.ImportPath)
	p.display.Info("merge base %s", record.MergeBase)
	p.display.Muted("report: %s", p.cfg.Paths.ReportPath(p.repoDir))

	p.display.Stage(2, "Backup Manager")
	backupMgr := backup.NewManager(p.git, p.ledger, p.cfg, p.logger)
	ref, err := backupMgr.CreateBackup()
	if err != nil {
		return p.fail(record, nil, opts, startedAt, err)
	}
	p.display.Info("backup branch %s (from %s)", ref.Name, ref.FromBranch)

	p.display.Stage(3, "Baseline Resetter")
	if err := p.resetBaseline(); err != nil {
		return p.fail(record, nil, opts, startedAt, err)
	}
	p.display.Info("work branch %s reset to %s", p.cfg.Branch.Work, p.cfg.Upstream.FullRef())

	p.display.Stage(4, "Patch Sequencer")
	sequencer := patch.NewSequencer(p.git, p.syntaxExecutor, p.confirmer, p.cfg, p.logger).
		WithWatcher(p.watcher)
	results, err := sequencer.Apply()
	for _, result := range results {
		p.display.UnitResult(result)
	}
	if err != nil {
		return p.fail(record, results, opts, startedAt, err)
	}

	p.display.Stage(5, "Validation Runner")
	if opts.SkipTests {
		p.logger.WithStage("validate").Warn("validation skipped by operator flag")
		p.display.Warn("validation skipped (--skip-tests)")
	} else {
		runner := validate.NewRunner(p.repoDir, record, p.cfg, p.logger).
			WithExecutor(p.scriptExecutor)
		if err := runner.Run(); err != nil {
			return p.fail(record, results, opts, startedAt, err)
		}
		p.display.Info("all validation scripts passed")
	}

	p.display.Stage(6, "Finalizer")
	p.finalize(record, results, opts, startedAt)
	return nil
}

// resetBaseline fetches the upstream ref and force-creates the work branch
// on it. Destructive to prior branch content; only runs after a backup is
// recorded.
func (p *Pipeline) resetBaseline() error {
	if err := p.git.Fetch(p.cfg.Upstream.Remote, p.cfg.Upstream.Ref); err != nil {
		return err
	}
	return p.git.ForceCheckoutBranch(p.cfg.Branch.Work, p.cfg.Upstream.FullRef())
}

// finalize appends the completion line best-effort and reports final state.
// Reaching this stage means the run succeeded.
func (p *Pipeline) finalize(record *preflight.VerificationRecord, results []patch.UnitResult, opts Options, startedAt time.Time) {
	summary := fmt.Sprintf("run_id=%s outcome=success units=%d validation_skipped=%t",
		record.RunID, len(results), opts.SkipTests)
	if err := p.ledger.AppendCompletion(p.now(), summary); err != nil {
		p.logger.Warn("completion ledger append failed", "error", err.Error())
		p.display.Warn("could not record completion in ledger: %v", err)
	}

	p.writeSummary(record, results, opts, startedAt, "success", "")

	lines := []string{
		"outcome: success",
		fmt.Sprintf("run id: %s", record.RunID),
		fmt.Sprintf("units applied: %d", len(results)),
	}
	if opts.SkipTests {
		lines = append(lines, "validation: skipped")
	} else {
		lines = append(lines, "validation: passed")
	}
	if status, err := p.git.StatusPorcelain(); err == nil {
		if status == "" {
			lines = append(lines, "working tree: clean")
		} else {
			lines = append(lines, "working tree: modified (see git status)")
		}
	}
	p.display.Summary(lines)
}

// fail records the failed run summary and passes the error through.
func (p *Pipeline) fail(record *preflight.VerificationRecord, results []patch.UnitResult, opts Options, startedAt time.Time, err error) error {
	p.writeSummary(record, results, opts, startedAt, "failure", errors.StageOf(err))
	return err
}

// Rollback restores the most recent backup. Alternate entry point; never
// touches the patch sequence or verification artifacts.
func (p *Pipeline) Rollback() error {
	lock, err := lockfile.Acquire(p.cfg.Paths.LockPath(p.repoDir))
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			p.logger.Warn("failed to release run lock", "error", releaseErr.Error())
		}
	}()

	backupMgr := backup.NewManager(p.git, p.ledger, p.cfg, p.logger)
	if err := backupMgr.Rollback(p.confirmer); err != nil {
		return err
	}

	p.display.Summary([]string{"outcome: rolled back"})
	return nil
}
