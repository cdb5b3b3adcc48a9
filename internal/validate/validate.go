// Package validate executes the external verification scripts in fixed
// order: upstream-only checks, feature checks, combined-interaction checks.
// Each script is an opaque boundary; zero exit means pass.
package validate

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/tallgren/regraft/internal/config"
	"github.com/tallgren/regraft/internal/errors"
	"github.com/tallgren/regraft/internal/logging"
	"github.com/tallgren/regraft/internal/preflight"
)

// ScriptExecutor runs one validation script. A non-zero exit code is
// reported through exitCode, not err; err covers spawn failures.
type ScriptExecutor interface {
	Run(dir string, env []string, name string, args ...string) (output []byte, exitCode int, err error)
}

// ExecScriptExecutor runs scripts as real subprocesses.
type ExecScriptExecutor struct{}

// Run executes the command with the given environment and captures
// combined output.
func (ExecScriptExecutor) Run(dir string, env []string, name string, args ...string) ([]byte, int, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = env

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, exitErr.ExitCode(), nil
		}
		return output, -1, err
	}
	return output, 0, nil
}

// Runner invokes the configured scripts with the verification record's
// derived environment values exported to each.
type Runner struct {
	repoDir  string
	record   *preflight.VerificationRecord
	cfg      *config.Config
	logger   *logging.Logger
	executor ScriptExecutor
}

// NewRunner creates a validation Runner.
func NewRunner(repoDir string, record *preflight.VerificationRecord, cfg *config.Config, logger *logging.Logger) *Runner {
	return &Runner{
		repoDir:  repoDir,
		record:   record,
		cfg:      cfg,
		logger:   logger.WithStage("validate"),
		executor: ExecScriptExecutor{},
	}
}

// WithExecutor overrides the script executor.
func (r *Runner) WithExecutor(executor ScriptExecutor) *Runner {
	r.executor = executor
	return r
}

// Run executes every configured script in order. The first non-zero exit
// fails the whole run; later scripts are never invoked.
func (r *Runner) Run() error {
	python := r.cfg.Python.Resolve()
	env := r.scriptEnv()

	for _, script := range r.cfg.Validation.Scripts {
		r.logger.Info("running validation script", "script", script, "interpreter", python)

		output, exitCode, err := r.executor.Run(r.repoDir, env, python, script)
		if err != nil {
			return errors.NewValidationRunError("failed to start validation script", err).
				WithScript(script)
		}
		if exitCode != 0 {
			return errors.NewValidationRunError(
				fmt.Sprintf("script failed: %s", strings.TrimSpace(string(output))),
				errors.ErrValidationScriptFailed).
				WithScript(script).
				WithExitCode(exitCode)
		}

		r.logger.Info("validation script passed", "script", script)
	}
	return nil
}

// scriptEnv is the process environment plus the record's derived values.
// GH200 UVM and memory-tuning variables pass through opaquely with the
// rest of the environment.
func (r *Runner) scriptEnv() []string {
	env := os.Environ()
	for _, pair := range r.record.EnvPairs() {
		env = append(env, pair[0]+"="+pair[1])
	}
	return env
}
