// Package preflight verifies environment preconditions before any mutation
// and produces the VerificationRecord the later stages read from. It is the
// only stage permitted to prompt interactively.
package preflight

import "time"

// AudioDecision is the operator's choice for optional audio-hint
// integration. It gates a downstream script parameter, not a pipeline stage.
type AudioDecision string

const (
	// AudioPreIntegrate runs audio-hint integration as part of this pipeline.
	AudioPreIntegrate AudioDecision = "pre-integrate"
	// AudioDefer leaves audio-hint integration to a later run.
	AudioDefer AudioDecision = "defer"
)

// VerificationRecord is the immutable output of preflight verification.
// Once produced it is the single source of truth for later stages: the
// sequencer and validation runner read these values instead of re-deriving
// them.
type VerificationRecord struct {
	// RunID uniquely identifies this pipeline run.
	RunID string
	// ImportPath is the resolved Python import path of the feature package.
	ImportPath string
	// PackageDir is the repository-relative directory backing ImportPath.
	PackageDir string
	// UpstreamRef is the remote-qualified upstream reference verified against.
	UpstreamRef string
	// MergeBase is the merge-base commit between HEAD and UpstreamRef.
	MergeBase string
	// Audio is the operator's audio-hint integration decision.
	Audio AudioDecision
	// DiagHasSkipAllocation and DiagHasOversubscriptionScale record whether
	// the diagnostics entry point advertises the corresponding optional
	// flags. Best-effort: absence is recorded, never fatal.
	DiagHasSkipAllocation        bool
	DiagHasOversubscriptionScale bool
	// GeneratedAt is the record's generation timestamp.
	GeneratedAt time.Time
}

// envBool renders a presence flag for the environment file.
func envBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// EnvPairs returns the record as ordered key/value pairs, the form consumed
// by validation scripts. Order is fixed so the rendered file is stable.
func (r *VerificationRecord) EnvPairs() [][2]string {
	return [][2]string{
		{"GH200_IMPORT_PATH", r.ImportPath},
		{"GH200_PACKAGE_DIR", r.PackageDir},
		{"UPSTREAM_REF", r.UpstreamRef},
		{"UPSTREAM_MERGE_BASE", r.MergeBase},
		{"AUDIO_INTEGRATION", string(r.Audio)},
		{"DIAG_HAS_SKIP_ALLOCATION", envBool(r.DiagHasSkipAllocation)},
		{"DIAG_HAS_OVERSUBSCRIPTION_SCALE", envBool(r.DiagHasOversubscriptionScale)},
		{"REGRAFT_RUN_ID", r.RunID},
		{"GENERATED_AT", r.GeneratedAt.UTC().Format(time.RFC3339)},
	}
}
