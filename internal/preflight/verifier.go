package preflight

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallgren/regraft/internal/config"
	"github.com/tallgren/regraft/internal/confirm"
	"github.com/tallgren/regraft/internal/errors"
	"github.com/tallgren/regraft/internal/git"
	"github.com/tallgren/regraft/internal/logging"
)

// packageCandidate is one possible location of the feature package.
type packageCandidate struct {
	Dir        string
	ImportPath string
}

// packageCandidates are checked in priority order; the first directory that
// exists wins.
var packageCandidates = []packageCandidate{
	{Dir: "simpletuner/gh200", ImportPath: "simpletuner.gh200"},
	{Dir: "helpers/gh200", ImportPath: "helpers.gh200"},
}

// apiRequirement names methods that must exist on a class in an upstream
// source file. The probe reads the upstream ref's version of the file from
// the object store without checking it out.
type apiRequirement struct {
	Path    string
	Class   string
	Methods []string
}

var upstreamAPI = []apiRequirement{
	{
		Path:    "helpers/training/attention_backend.py",
		Class:   "AttentionBackendController",
		Methods: []string{"apply_backend", "restore_default"},
	},
	{
		Path:    "helpers/data_backend/factory.py",
		Class:   "DataBackendFactory",
		Methods: []string{"register_builder", "build_backend"},
	},
}

// diagnosticsFile is the diagnostics entry point probed for optional flags.
const diagnosticsFile = "gh200_diagnostic.py"

// Optional diagnostics capabilities, probed by string search.
const (
	flagSkipAllocation        = "--skip-allocation"
	flagOversubscriptionScale = "--oversubscription-scale"
)

// audioPrompt is the interactive audio-integration decision.
const audioPrompt = "Run audio-hint integration as part of this pipeline?"

// Verifier checks preconditions and produces the VerificationRecord.
type Verifier struct {
	git       *git.Client
	confirmer confirm.Confirmer
	cfg       *config.Config
	logger    *logging.Logger

	now      func() time.Time
	newRunID func() string
}

// NewVerifier creates a Verifier over the given repository client.
func NewVerifier(gitClient *git.Client, confirmer confirm.Confirmer, cfg *config.Config, logger *logging.Logger) *Verifier {
	return &Verifier{
		git:       gitClient,
		confirmer: confirmer,
		cfg:       cfg,
		logger:    logger.WithStage("preflight"),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// Run verifies all preconditions and persists the resulting record. Any
// missing required precondition fails before the repository is mutated.
func (v *Verifier) Run() (*VerificationRecord, error) {
	if !v.git.IsRepository() {
		return nil, errors.NewPreflightError("working tree is not a git repository", errors.ErrNotGitRepository).
			WithPath(v.git.RepoDir())
	}

	pkg, err := v.resolvePackage()
	if err != nil {
		return nil, err
	}
	v.logger.Info("feature package resolved", "dir", pkg.Dir, "import_path", pkg.ImportPath)

	upstreamRef := v.cfg.Upstream.FullRef()
	if err := v.git.Fetch(v.cfg.Upstream.Remote, v.cfg.Upstream.Ref); err != nil {
		return nil, err
	}

	if err := v.probeUpstreamAPI(upstreamRef); err != nil {
		return nil, err
	}
	v.logger.Info("upstream API symbols verified", "ref", upstreamRef)

	hasSkip, hasScale := v.probeDiagnostics()

	audio, err := v.decideAudio()
	if err != nil {
		return nil, err
	}

	head, err := v.git.Head()
	if err != nil {
		return nil, err
	}
	mergeBase, err := v.git.MergeBase(head, upstreamRef)
	if err != nil {
		return nil, err
	}

	record := &VerificationRecord{
		RunID:                        v.newRunID(),
		ImportPath:                   pkg.ImportPath,
		PackageDir:                   pkg.Dir,
		UpstreamRef:                  upstreamRef,
		MergeBase:                    mergeBase,
		Audio:                        audio,
		DiagHasSkipAllocation:        hasSkip,
		DiagHasOversubscriptionScale: hasScale,
		GeneratedAt:                  v.now(),
	}

	if err := v.persist(record); err != nil {
		return nil, err
	}

	v.logger.Info("verification record produced",
		"run_id", record.RunID,
		"merge_base", record.MergeBase,
		"audio", string(record.Audio))
	return record, nil
}

// resolvePackage finds the feature package in the working tree.
func (v *Verifier) resolvePackage() (packageCandidate, error) {
	for _, candidate := range packageCandidates {
		if v.git.DirExists(candidate.Dir) {
			return candidate, nil
		}
	}

	tried := make([]string, len(packageCandidates))
	for i, c := range packageCandidates {
		tried[i] = c.Dir
	}
	return packageCandidate{}, errors.NewPreflightError(
		fmt.Sprintf("feature package not found in any candidate location %v", tried),
		errors.ErrMissingPackage)
}

// probeUpstreamAPI statically inspects the upstream versions of the required
// source files for the class methods the patches assume.
func (v *Verifier) probeUpstreamAPI(upstreamRef string) error {
	for _, req := range upstreamAPI {
		source, err := v.git.ShowFile(upstreamRef, req.Path)
		if err != nil {
			return errors.NewPreflightError(
				fmt.Sprintf("upstream %s has no %s", upstreamRef, req.Path),
				errors.Join(errors.ErrMissingUpstreamAPI, err)).
				WithSymbol(req.Class).
				WithPath(req.Path)
		}

		for _, method := range req.Methods {
			if !classHasMethod(source, req.Class, method) {
				return errors.NewPreflightError(
					fmt.Sprintf("upstream %s lacks %s.%s", upstreamRef, req.Class, method),
					errors.ErrMissingUpstreamAPI).
					WithSymbol(method).
					WithPath(req.Path)
			}
		}
	}
	return nil
}

// probeDiagnostics records which optional flags the diagnostics entry point
// advertises. A missing file records both as absent.
func (v *Verifier) probeDiagnostics() (hasSkip, hasScale bool) {
	source, err := v.git.ReadWorkingFile(diagnosticsFile)
	if err != nil {
		v.logger.Debug("diagnostics entry point not readable", "file", diagnosticsFile, "error", err.Error())
		return false, false
	}
	return containsFlag(source, flagSkipAllocation), containsFlag(source, flagOversubscriptionScale)
}

// decideAudio asks the operator whether to pre-integrate audio-hint support.
func (v *Verifier) decideAudio() (AudioDecision, error) {
	choice, err := v.confirmer.Choose(audioPrompt, []string{
		"pre-integrate now",
		"defer to a later run",
	})
	if err != nil {
		return "", errors.Wrap(err, "audio integration decision failed")
	}
	if choice == 0 {
		return AudioPreIntegrate, nil
	}
	return AudioDefer, nil
}
