package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallgren/regraft/internal/config"
	"github.com/tallgren/regraft/internal/errors"
	"github.com/tallgren/regraft/internal/logging"
	"github.com/tallgren/regraft/internal/preflight"
)

// fakeScriptExecutor records invocations and scripts per-script exit codes.
type fakeScriptExecutor struct {
	invoked   []string
	env       []string
	exitCodes map[string]int
}

func (f *fakeScriptExecutor) Run(dir string, env []string, name string, args ...string) ([]byte, int, error) {
	script := args[len(args)-1]
	f.invoked = append(f.invoked, script)
	f.env = env
	if code, ok := f.exitCodes[script]; ok {
		return []byte("check failed"), code, nil
	}
	return []byte("ok"), 0, nil
}

func testRecord() *preflight.VerificationRecord {
	return &preflight.VerificationRecord{
		RunID:       "run-1",
		ImportPath:  "simpletuner.gh200",
		PackageDir:  "simpletuner/gh200",
		UpstreamRef: "upstream/main",
		MergeBase:   "abc123",
		Audio:       preflight.AudioDefer,
		GeneratedAt: time.Now(),
	}
}

func newRunner(t *testing.T, executor ScriptExecutor) *Runner {
	t.Helper()
	return NewRunner(t.TempDir(), testRecord(), config.Default(), logging.NopLogger()).
		WithExecutor(executor)
}

func TestRunAllScriptsInOrder(t *testing.T) {
	executor := &fakeScriptExecutor{}
	r := newRunner(t, executor)

	require.NoError(t, r.Run())

	assert.Equal(t, []string{
		"tests/gh200/verify_upstream.py",
		"tests/gh200/verify_gh200.py",
		"tests/gh200/verify_combined.py",
	}, executor.invoked)
}

func TestRunExportsRecordEnv(t *testing.T) {
	executor := &fakeScriptExecutor{}
	r := newRunner(t, executor)

	require.NoError(t, r.Run())

	env := strings.Join(executor.env, "\n")
	assert.Contains(t, env, "GH200_IMPORT_PATH=simpletuner.gh200")
	assert.Contains(t, env, "UPSTREAM_MERGE_BASE=abc123")
	assert.Contains(t, env, "AUDIO_INTEGRATION=defer")
	assert.Contains(t, env, "REGRAFT_RUN_ID=run-1")
}

func TestUpstreamFailureShortCircuits(t *testing.T) {
	executor := &fakeScriptExecutor{
		exitCodes: map[string]int{"tests/gh200/verify_upstream.py": 2},
	}
	r := newRunner(t, executor)

	err := r.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidationScriptFailed))

	var valErr *errors.ValidationRunError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "tests/gh200/verify_upstream.py", valErr.Script)
	assert.Equal(t, 2, valErr.ExitCode)

	// Feature and combined checks must never run after an upstream failure.
	assert.Equal(t, []string{"tests/gh200/verify_upstream.py"}, executor.invoked)
}

func TestFeatureFailureSkipsCombined(t *testing.T) {
	executor := &fakeScriptExecutor{
		exitCodes: map[string]int{"tests/gh200/verify_gh200.py": 1},
	}
	r := newRunner(t, executor)

	err := r.Run()
	require.Error(t, err)
	assert.Equal(t, []string{
		"tests/gh200/verify_upstream.py",
		"tests/gh200/verify_gh200.py",
	}, executor.invoked)
}
