package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "branch.work")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchNameRegex validates branch name characters. Slashes are allowed for
// hierarchical names like backup/gh200-pre-rebase.
var branchNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_/.-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateUpstream()...)
	errors = append(errors, c.validateBranch()...)
	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateValidation()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateUpstream validates the UpstreamConfig
func (c *Config) validateUpstream() []ValidationError {
	var errors []ValidationError

	if c.Upstream.Remote == "" {
		errors = append(errors, ValidationError{
			Field:   "upstream.remote",
			Value:   c.Upstream.Remote,
			Message: "must not be empty",
		})
	}
	if c.Upstream.Ref == "" {
		errors = append(errors, ValidationError{
			Field:   "upstream.ref",
			Value:   c.Upstream.Ref,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateBranch validates the BranchConfig
func (c *Config) validateBranch() []ValidationError {
	var errors []ValidationError

	if c.Branch.Work == "" || !branchNameRegex.MatchString(c.Branch.Work) {
		errors = append(errors, ValidationError{
			Field:   "branch.work",
			Value:   c.Branch.Work,
			Message: "must be a valid branch name",
		})
	}
	if c.Branch.BackupPrefix == "" || !branchNameRegex.MatchString(c.Branch.BackupPrefix) {
		errors = append(errors, ValidationError{
			Field:   "branch.backup_prefix",
			Value:   c.Branch.BackupPrefix,
			Message: "must be a valid branch name prefix",
		})
	}

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if c.Paths.StateDir == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.state_dir",
			Value:   c.Paths.StateDir,
			Message: "must not be empty",
		})
	}
	if c.Paths.PatchDir == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.patch_dir",
			Value:   c.Paths.PatchDir,
			Message: "must not be empty",
		})
	}
	if c.Paths.Manifest == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.manifest",
			Value:   c.Paths.Manifest,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateValidation validates the ValidationConfig
func (c *Config) validateValidation() []ValidationError {
	var errors []ValidationError

	if len(c.Validation.Scripts) == 0 {
		errors = append(errors, ValidationError{
			Field:   "validation.scripts",
			Value:   c.Validation.Scripts,
			Message: "must list at least one script (order is significant)",
		})
	}
	for i, script := range c.Validation.Scripts {
		if script == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("validation.scripts[%d]", i),
				Value:   script,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
