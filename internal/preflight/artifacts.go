package preflight

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/tallgren/regraft/internal/errors"
	"github.com/tallgren/regraft/internal/patch"
)

//go:embed manifest.tmpl
var manifestTemplate string

// RenderReport renders the human-readable verification report.
func RenderReport(record *VerificationRecord) string {
	var b strings.Builder
	b.WriteString("regraft verification report\n")
	b.WriteString("===========================\n\n")

	write := func(key, value string) {
		fmt.Fprintf(&b, "%-32s %s\n", key+":", value)
	}
	write("run id", record.RunID)
	write("feature package", record.PackageDir)
	write("import path", record.ImportPath)
	write("upstream ref", record.UpstreamRef)
	write("merge base", record.MergeBase)
	write("audio integration", string(record.Audio))
	write("diag --skip-allocation", presence(record.DiagHasSkipAllocation))
	write("diag --oversubscription-scale", presence(record.DiagHasOversubscriptionScale))
	write("generated", record.GeneratedAt.UTC().Format(time.RFC3339))
	return b.String()
}

func presence(v bool) string {
	if v {
		return "present"
	}
	return "absent"
}

// RenderEnvFile renders the shell-sourceable environment file consumed by
// the validation scripts.
func RenderEnvFile(record *VerificationRecord) string {
	var b strings.Builder
	b.WriteString("# generated by regraft; sourced by validation scripts\n")
	for _, pair := range record.EnvPairs() {
		fmt.Fprintf(&b, "%s=%q\n", pair[0], pair[1])
	}
	return b.String()
}

// RenderManifest regenerates the patch manifest from the static template
// plus the record's merge base and timestamp.
func RenderManifest(record *VerificationRecord) (string, error) {
	tmpl, err := template.New("manifest").Parse(manifestTemplate)
	if err != nil {
		return "", errors.Wrap(err, "manifest template is invalid")
	}

	data := struct {
		MergeBase   string
		GeneratedAt string
		Units       []patch.Unit
	}{
		MergeBase:   record.MergeBase,
		GeneratedAt: record.GeneratedAt.UTC().Format(time.RFC3339),
		Units:       patch.Units(),
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", errors.Wrap(err, "manifest rendering failed")
	}
	return b.String(), nil
}

// persist writes the report, environment file, and regenerated manifest.
func (v *Verifier) persist(record *VerificationRecord) error {
	repoDir := v.git.RepoDir()

	stateDir := v.cfg.Paths.ResolveStateDir(repoDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}

	reportPath := v.cfg.Paths.ReportPath(repoDir)
	if err := writeFile(reportPath, RenderReport(record)); err != nil {
		return errors.Wrapf(err, "failed to write verification report %s", reportPath)
	}

	envPath := v.cfg.Paths.EnvFilePath(repoDir)
	if err := writeFile(envPath, RenderEnvFile(record)); err != nil {
		return errors.Wrapf(err, "failed to write environment file %s", envPath)
	}

	manifest, err := RenderManifest(record)
	if err != nil {
		return err
	}
	manifestPath := v.cfg.Paths.ResolveManifest(repoDir)
	if err := writeFile(manifestPath, manifest); err != nil {
		return errors.Wrapf(err, "failed to write patch manifest %s", manifestPath)
	}

	v.logger.Debug("verification artifacts written",
		"report", reportPath, "env", envPath, "manifest", manifestPath)
	return nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
