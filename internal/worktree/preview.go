package worktree

import (
	"fmt"
	"strings"

	"github.com/forgeman/controlplane/internal/git"
	"github.com/forgeman/controlplane/internal/merge"
	"github.com/forgeman/controlplane/pkg/models"
)

// Status reports whether a task's worktree has uncommitted changes.
func (m *Manager) Status(path string) (dirty bool, err error) {
	runner := git.NewRunner(path)
	has, err := runner.HasChanges()
	if err != nil {
		return false, fmt.Errorf("check status: %w", err)
	}
	return has, nil
}

// Diff returns the unstaged-and-staged diff against baseBranch.
func (m *Manager) Diff(path, baseBranch string) (string, error) {
	runner := git.NewRunner(path)
	diff, err := runner.Diff(baseBranch)
	if err != nil {
		return "", fmt.Errorf("diff against %s: %w", baseBranch, err)
	}
	return diff, nil
}

// DiffStat returns the total line additions and deletions in path's
// checked-out branch relative to baseBranch.
func (m *Manager) DiffStat(path, baseBranch string) (additions, deletions int, err error) {
	runner := git.NewRunner(path)
	additions, deletions, err = runner.DiffNumstat(baseBranch, "HEAD")
	if err != nil {
		return 0, 0, fmt.Errorf("diff stat against %s: %w", baseBranch, err)
	}
	return additions, deletions, nil
}

// Divergence reports how many commits path's checked-out branch is
// ahead of and behind baseBranch.
func (m *Manager) Divergence(path, baseBranch string) (ahead, behind int, err error) {
	runner := git.NewRunner(path)
	branch, err := runner.CurrentBranch()
	if err != nil {
		return 0, 0, fmt.Errorf("current branch: %w", err)
	}
	return divergence(runner, baseBranch, branch)
}

// Summary assembles a task worktree's full status: dirty flag, changed
// file count, line additions/deletions, and commits ahead of baseBranch.
func (m *Manager) Summary(taskID, path, baseBranch string) (*models.WorktreeStatus, error) {
	dirty, err := m.Status(path)
	if err != nil {
		return nil, err
	}

	changed, err := m.ChangedFiles(taskID, path, baseBranch)
	if err != nil {
		return nil, err
	}

	additions, deletions, err := m.DiffStat(path, baseBranch)
	if err != nil {
		return nil, err
	}

	ahead, _, err := m.Divergence(path, baseBranch)
	if err != nil {
		return nil, err
	}

	return &models.WorktreeStatus{
		Exists:       true,
		Path:         path,
		Branch:       branchFor(taskID),
		BaseBranch:   baseBranch,
		Dirty:        dirty,
		FilesChanged: len(changed),
		Additions:    additions,
		Deletions:    deletions,
		CommitCount:  ahead,
	}, nil
}

// ChangedFiles lists the paths a task's branch touches relative to
// baseBranch, without the trial-merge conflict check MergePreview does.
func (m *Manager) ChangedFiles(taskID, path, baseBranch string) ([]string, error) {
	runner := git.NewRunner(path)
	changed, err := runner.ChangedFilesBetween(baseBranch, branchFor(taskID))
	if err != nil {
		return nil, fmt.Errorf("changed files: %w", err)
	}
	return changed, nil
}

// MergePreview computes what merging a task's branch into baseBranch
// would look like, without mutating either branch: divergence counts,
// changed files, and a conflict/severity estimate based on a trial merge
// performed in a detached, discarded state.
func (m *Manager) MergePreview(taskID, path, baseBranch string) (*models.MergePreview, error) {
	runner := git.NewRunner(path)
	branch := branchFor(taskID)

	changed, err := runner.ChangedFilesBetween(baseBranch, branch)
	if err != nil {
		return nil, fmt.Errorf("changed files: %w", err)
	}

	ahead, behind, err := divergence(runner, baseBranch, branch)
	if err != nil {
		return nil, fmt.Errorf("divergence: %w", err)
	}

	preview := &models.MergePreview{
		TaskID: taskID,
		Clean:  true,
		Divergence: models.DivergenceDescriptor{
			AheadCommits:  ahead,
			BehindCommits: behind,
			ChangedFiles:  changed,
		},
	}

	conflicted, err := trialMergeConflicts(runner, baseBranch, branch)
	if err != nil {
		return nil, fmt.Errorf("trial merge: %w", err)
	}

	if len(conflicted) == 0 {
		return preview, nil
	}

	preview.Clean = false
	for _, file := range conflicted {
		preview.Conflicts = append(preview.Conflicts, models.Conflict{
			Path:     file,
			Severity: classifySeverity(file),
			Critical: merge.IsCriticalFile(file),
		})
	}

	return preview, nil
}

func divergence(runner *git.ExecRunner, baseBranch, branch string) (ahead, behind int, err error) {
	aheadOut, err := runner.Run("rev-list", "--count", baseBranch+".."+branch)
	if err != nil {
		return 0, 0, err
	}
	behindOut, err := runner.Run("rev-list", "--count", branch+".."+baseBranch)
	if err != nil {
		return 0, 0, err
	}
	ahead = parseCount(aheadOut)
	behind = parseCount(behindOut)
	return ahead, behind, nil
}

func parseCount(s string) int {
	var n int
	fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	return n
}

// trialMergeConflicts attempts the merge, collects any conflicted paths,
// then unconditionally aborts so the repository is left untouched.
func trialMergeConflicts(runner *git.ExecRunner, baseBranch, branch string) ([]string, error) {
	if _, err := runner.Run("checkout", "--detach", baseBranch); err != nil {
		return nil, fmt.Errorf("checkout %s: %w", baseBranch, err)
	}
	defer runner.Run("checkout", branch)

	mergeErr := runner.Merge(branch)
	if mergeErr == nil {
		if _, err := runner.Run("reset", "--hard", "HEAD~1"); err != nil {
			return nil, fmt.Errorf("undo trial merge: %w", err)
		}
		return nil, nil
	}

	conflicted, err := runner.ConflictedFiles()
	if err != nil {
		_ = runner.MergeAbort()
		return nil, err
	}

	if err := runner.MergeAbort(); err != nil {
		return nil, fmt.Errorf("abort trial merge: %w", err)
	}

	return conflicted, nil
}

// classifySeverity estimates conflict severity from the file's role.
// Critical package-manager files are high severity by default; lock
// files that should simply be regenerated are medium; everything else
// is low until a real merge surfaces actual overlapping hunks.
func classifySeverity(path string) models.Severity {
	switch {
	case merge.IsLockFile(path):
		return models.SeverityMedium
	case merge.IsCriticalFile(path):
		return models.SeverityHigh
	default:
		return models.SeverityLow
	}
}
