// Package backup captures pre-rebase state reversibly and provides the
// rollback path that restores it.
package backup

import (
	"fmt"
	"time"

	"github.com/tallgren/regraft/internal/config"
	"github.com/tallgren/regraft/internal/confirm"
	"github.com/tallgren/regraft/internal/errors"
	"github.com/tallgren/regraft/internal/git"
	"github.com/tallgren/regraft/internal/ledger"
	"github.com/tallgren/regraft/internal/logging"
)

// timestampLayout names backup branches down to the second. Sub-second
// reruns collide; that risk is accepted.
const timestampLayout = "20060102-150405"

// Manager creates backup branches and restores them.
type Manager struct {
	git    *git.Client
	ledger *ledger.Ledger
	cfg    *config.Config
	logger *logging.Logger

	now func() time.Time
}

// NewManager creates a backup Manager.
func NewManager(gitClient *git.Client, runLedger *ledger.Ledger, cfg *config.Config, logger *logging.Logger) *Manager {
	return &Manager{
		git:    gitClient,
		ledger: runLedger,
		cfg:    cfg,
		logger: logger.WithStage("backup"),
		now:    time.Now,
	}
}

// CreateBackup records the current HEAD under a timestamp-named backup
// branch and appends the reference to the run ledger. The working tree is
// not altered. Failure aborts before any reset can run.
func (m *Manager) CreateBackup() (ledger.BackupReference, error) {
	branch, err := m.git.CurrentBranch()
	if err != nil {
		return ledger.BackupReference{}, err
	}
	head, err := m.git.Head()
	if err != nil {
		return ledger.BackupReference{}, err
	}

	ref := ledger.BackupReference{
		Name:       fmt.Sprintf("%s-%s", m.cfg.Branch.BackupPrefix, m.now().UTC().Format(timestampLayout)),
		FromBranch: branch,
		CreatedAt:  m.now(),
	}

	if err := m.git.CreateBranchAt(ref.Name, head); err != nil {
		return ledger.BackupReference{}, err
	}
	if err := m.ledger.AppendBackup(ref); err != nil {
		return ledger.BackupReference{}, err
	}

	m.logger.Info("backup recorded", "branch", ref.Name, "from", ref.FromBranch, "head", head)
	return ref, nil
}

// Rollback restores the most recently recorded backup after interactive
// confirmation. It never touches the patch sequence or the verification
// artifacts.
func (m *Manager) Rollback(confirmer confirm.Confirmer) error {
	ref, err := m.ledger.LatestBackup()
	if err != nil {
		return err
	}

	if !m.git.BranchExists(ref.Name) {
		return errors.NewGitError("recorded backup branch no longer exists", nil).
			WithBranch(ref.Name)
	}

	prompt := fmt.Sprintf("Reset working tree to backup %s (recorded from %s)?", ref.Name, ref.FromBranch)
	ok, err := confirmer.Confirm(prompt)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrConfirmationDeclined
	}

	// Clear any in-progress apply state before switching branches, then
	// land exactly on the backup commit.
	if err := m.git.ResetHard("HEAD"); err != nil {
		return err
	}
	if err := m.git.Checkout(ref.Name); err != nil {
		return err
	}
	if err := m.git.ResetHard(ref.Name); err != nil {
		return err
	}

	m.logger.Info("rollback complete", "branch", ref.Name)
	return nil
}
