package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tallgren/regraft/internal/patch"
	"github.com/tallgren/regraft/internal/preflight"
)

// runSummary is the per-run record written to last-run.yaml. Best-effort:
// a write failure is logged, never fatal.
type runSummary struct {
	RunID             string        `yaml:"run_id"`
	Outcome           string        `yaml:"outcome"`
	FailedStage       string        `yaml:"failed_stage,omitempty"`
	StartedAt         time.Time     `yaml:"started_at"`
	FinishedAt        time.Time     `yaml:"finished_at"`
	UpstreamRef       string        `yaml:"upstream_ref,omitempty"`
	MergeBase         string        `yaml:"merge_base,omitempty"`
	ValidationSkipped bool          `yaml:"validation_skipped"`
	Units             []unitSummary `yaml:"units,omitempty"`
}

type unitSummary struct {
	Unit    string `yaml:"unit"`
	Status  string `yaml:"status"`
	LogPath string `yaml:"log,omitempty"`
}

// writeSummary persists the run summary. record may be nil when preflight
// itself failed.
func (p *Pipeline) writeSummary(record *preflight.VerificationRecord, results []patch.UnitResult, opts Options, startedAt time.Time, outcome, failedStage string) {
	summary := runSummary{
		Outcome:           outcome,
		FailedStage:       failedStage,
		StartedAt:         startedAt.UTC(),
		FinishedAt:        p.now().UTC(),
		ValidationSkipped: opts.SkipTests,
	}
	if record != nil {
		summary.RunID = record.RunID
		summary.UpstreamRef = record.UpstreamRef
		summary.MergeBase = record.MergeBase
	}
	for _, result := range results {
		summary.Units = append(summary.Units, unitSummary{
			Unit:    result.Unit.Label(),
			Status:  string(result.Status),
			LogPath: result.LogPath,
		})
	}

	data, err := yaml.Marshal(&summary)
	if err != nil {
		p.logger.Warn("failed to marshal run summary", "error", err.Error())
		return
	}

	path := p.cfg.Paths.SummaryPath(p.repoDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		p.logger.Warn("failed to create state directory", "error", err.Error())
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		p.logger.Warn("failed to write run summary", "path", path, "error", err.Error())
	}
}
