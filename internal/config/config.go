package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete regraft configuration
type Config struct {
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Branch     BranchConfig     `mapstructure:"branch"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Python     PythonConfig     `mapstructure:"python"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// UpstreamConfig names the upstream the fork is rebased onto
type UpstreamConfig struct {
	// Remote is the git remote carrying the upstream repository (default: "upstream")
	Remote string `mapstructure:"remote"`
	// Ref is the branch on that remote to rebase onto (default: "main")
	Ref string `mapstructure:"ref"`
}

// FullRef returns the remote-qualified upstream ref, e.g. "upstream/main".
func (u *UpstreamConfig) FullRef() string {
	return u.Remote + "/" + u.Ref
}

// BranchConfig controls branch naming
type BranchConfig struct {
	// Work is the fixed-name working branch the reset stage force-creates
	// (default: "gh200-rebase"). Destructive to any prior branch of this name.
	Work string `mapstructure:"work"`
	// BackupPrefix prefixes timestamp-named backup branches
	// (default: "backup/gh200-pre-rebase")
	BackupPrefix string `mapstructure:"backup_prefix"`
}

// PathsConfig controls where regraft reads patches and writes state
type PathsConfig struct {
	// StateDir holds run artifacts: report, env file, ledger, logs, lock
	// (default: ".regraft", relative to the repository root)
	StateDir string `mapstructure:"state_dir"`
	// PatchDir holds the ordered patch files (default: "patches")
	PatchDir string `mapstructure:"patch_dir"`
	// Manifest is the regenerated patch-manifest document
	// (default: "PATCH_MANIFEST.md", relative to the repository root)
	Manifest string `mapstructure:"manifest"`
}

// PythonConfig selects the interpreter used for syntax checks and
// validation scripts
type PythonConfig struct {
	// Interpreter overrides interpreter resolution. When empty, the
	// REGRAFT_PYTHON environment variable is consulted, then "python3".
	Interpreter string `mapstructure:"interpreter"`
}

// Resolve returns the interpreter to invoke.
func (p *PythonConfig) Resolve() string {
	if p.Interpreter != "" {
		return p.Interpreter
	}
	if env := os.Getenv("REGRAFT_PYTHON"); env != "" {
		return env
	}
	return "python3"
}

// ValidationConfig lists the external verification scripts.
// Order is significant: upstream-only checks run first, feature checks
// second, combined-interaction checks last.
type ValidationConfig struct {
	Scripts []string `mapstructure:"scripts"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// ResolveStateDir returns the state directory resolved against the
// repository root.
func (p *PathsConfig) ResolveStateDir(repoDir string) string {
	return resolve(repoDir, p.StateDir)
}

// ResolvePatchDir returns the patch directory resolved against the
// repository root.
func (p *PathsConfig) ResolvePatchDir(repoDir string) string {
	return resolve(repoDir, p.PatchDir)
}

// ResolveManifest returns the manifest path resolved against the
// repository root.
func (p *PathsConfig) ResolveManifest(repoDir string) string {
	return resolve(repoDir, p.Manifest)
}

// LedgerPath returns the run ledger path inside the state directory.
func (p *PathsConfig) LedgerPath(repoDir string) string {
	return filepath.Join(p.ResolveStateDir(repoDir), "ledger.md")
}

// ReportPath returns the human-readable verification report path.
func (p *PathsConfig) ReportPath(repoDir string) string {
	return filepath.Join(p.ResolveStateDir(repoDir), "verify-report.txt")
}

// EnvFilePath returns the machine-readable environment file path.
func (p *PathsConfig) EnvFilePath(repoDir string) string {
	return filepath.Join(p.ResolveStateDir(repoDir), "verify.env")
}

// LogsDir returns the per-unit apply log directory.
func (p *PathsConfig) LogsDir(repoDir string) string {
	return filepath.Join(p.ResolveStateDir(repoDir), "logs")
}

// LockPath returns the advisory run-lock path.
func (p *PathsConfig) LockPath(repoDir string) string {
	return filepath.Join(p.ResolveStateDir(repoDir), "regraft.lock")
}

// SummaryPath returns the per-run summary artifact path.
func (p *PathsConfig) SummaryPath(repoDir string) string {
	return filepath.Join(p.ResolveStateDir(repoDir), "last-run.yaml")
}

func resolve(repoDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoDir, path)
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			Remote: "upstream",
			Ref:    "main",
		},
		Branch: BranchConfig{
			Work:         "gh200-rebase",
			BackupPrefix: "backup/gh200-pre-rebase",
		},
		Paths: PathsConfig{
			StateDir: ".regraft",
			PatchDir: "patches",
			Manifest: "PATCH_MANIFEST.md",
		},
		Python: PythonConfig{
			Interpreter: "",
		},
		Validation: ValidationConfig{
			Scripts: []string{
				"tests/gh200/verify_upstream.py",
				"tests/gh200/verify_gh200.py",
				"tests/gh200/verify_combined.py",
			},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("upstream.remote", defaults.Upstream.Remote)
	viper.SetDefault("upstream.ref", defaults.Upstream.Ref)

	viper.SetDefault("branch.work", defaults.Branch.Work)
	viper.SetDefault("branch.backup_prefix", defaults.Branch.BackupPrefix)

	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
	viper.SetDefault("paths.patch_dir", defaults.Paths.PatchDir)
	viper.SetDefault("paths.manifest", defaults.Paths.Manifest)

	viper.SetDefault("python.interpreter", defaults.Python.Interpreter)

	viper.SetDefault("validation.scripts", defaults.Validation.Scripts)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "regraft")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".regraft"
	}
	return filepath.Join(home, ".config", "regraft")
}

// ConfigFile returns the path to the user-level config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnvKeyReplacer maps nested config keys to environment variable names,
// e.g. REGRAFT_UPSTREAM_REF for upstream.ref.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
