package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgeman/controlplane/internal/git"
	"github.com/forgeman/controlplane/internal/merge"
	"github.com/forgeman/controlplane/internal/mergeai"
)

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Merged    bool
	Conflicts []string
	// NeedsSemanticMerge is set when a normal merge and a rebase retry
	// both failed, so only AI-assisted resolution (ResolveConflicts) can
	// proceed.
	NeedsSemanticMerge bool
	// Staged is set instead of the merge being committed when the caller
	// requested stageOnly: the resolved tree was copied into the project
	// directory and added to the index, but nothing was committed.
	Staged bool
}

// Merge integrates a task's branch into baseBranch. With stageOnly=false
// it merges directly into the main repository: a plain merge first, then
// (for conflicts touching a critical or lock file) a format-aware smart
// merge, then a rebase-and-retry; if all three fail the merge is aborted
// and NeedsSemanticMerge is set so the caller can route the listed
// conflict files to ResolveConflicts. With stageOnly=true the same
// resolution runs inside the task's own worktree instead, and the
// resulting tree is copied back into the project directory and staged,
// never committed, before the worktree is destroyed.
//
// Before attempting the merge, a checkpoint tag is recorded so a bad
// merge can be rolled back with Rollback.
func (m *Manager) Merge(taskID, baseBranch, message string, stageOnly bool) (MergeResult, error) {
	if err := m.checkpoints(baseBranch).CreateCheckpoint(taskID, taskID); err != nil {
		return MergeResult{}, fmt.Errorf("create checkpoint: %w", err)
	}

	if stageOnly {
		return m.mergeStageOnly(taskID, baseBranch)
	}

	branch := branchFor(taskID)
	handler := merge.NewHandlerWithRunner(baseBranch, m.repoPath, m.git)
	result, err := handler.MergeWithSmartFallback(branch)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge %s: %w", branch, err)
	}

	if !result.Success {
		_ = m.checkpoints(baseBranch).MarkBad(taskID)
		return MergeResult{
			Merged:             false,
			Conflicts:          result.ConflictFiles,
			NeedsSemanticMerge: result.NeedsSemanticMerge,
		}, nil
	}

	_ = m.checkpoints(baseBranch).MarkGood(taskID)
	return MergeResult{Merged: true}, nil
}

// mergeStageOnly resolves baseBranch into the task's own worktree
// (leaving the main repository's branch and history untouched), then
// copies every file that differs from baseBranch back into the project
// directory and stages it there, and finally destroys the worktree.
func (m *Manager) mergeStageOnly(taskID, baseBranch string) (MergeResult, error) {
	branch := branchFor(taskID)
	wtPath := filepath.Join(m.baseDir, taskID)
	wtRunner := git.NewRunner(wtPath)

	handler := merge.NewHandlerWithRunner(branch, wtPath, wtRunner)
	result, err := handler.MergeWithSmartFallback(baseBranch)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge %s into %s for staging: %w", baseBranch, branch, err)
	}

	if !result.Success {
		_ = m.checkpoints(baseBranch).MarkBad(taskID)
		return MergeResult{
			Merged:             false,
			Conflicts:          result.ConflictFiles,
			NeedsSemanticMerge: result.NeedsSemanticMerge,
		}, nil
	}

	changed, err := wtRunner.ChangedFilesBetween(baseBranch, branch)
	if err != nil {
		return MergeResult{}, fmt.Errorf("list resolved files: %w", err)
	}

	for _, rel := range changed {
		if rel == "" {
			continue
		}
		if err := m.copyResolvedFile(wtPath, rel); err != nil {
			return MergeResult{}, err
		}
	}

	_ = m.checkpoints(baseBranch).MarkGood(taskID)

	if err := m.Discard(taskID); err != nil {
		return MergeResult{}, fmt.Errorf("destroy worktree after staging: %w", err)
	}

	return MergeResult{Merged: true, Staged: true}, nil
}

// copyResolvedFile copies rel from the resolved worktree at wtPath into
// the project directory and stages it there, handling a deletion (rel
// present in baseBranch but removed by the resolved merge) the same way.
func (m *Manager) copyResolvedFile(wtPath, rel string) error {
	src := filepath.Join(wtPath, rel)
	dst := filepath.Join(m.repoPath, rel)

	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		if rmErr := os.Remove(dst); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("remove deleted file %s: %w", rel, rmErr)
		}
		if err := m.git.Add(dst); err != nil {
			return fmt.Errorf("stage deletion of %s: %w", rel, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read resolved file %s: %w", rel, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write staged file %s: %w", rel, err)
	}
	if err := m.git.Add(dst); err != nil {
		return fmt.Errorf("stage %s: %w", rel, err)
	}
	return nil
}

// ResolveConflicts asks an AI merge agent to propose content for every
// file Merge reported under NeedsSemanticMerge, and applies and commits
// the result. taskID identifies the checkpoint Rollback would target if
// the caller rejects the outcome.
func (m *Manager) ResolveConflicts(ctx context.Context, resolver *mergeai.Resolver, baseBranch, taskID string, conflictFiles []string) error {
	branch := branchFor(taskID)

	resolutions, err := resolver.ResolveConflicts(ctx, m.repoPath, m.git, baseBranch, branch, taskID, conflictFiles)
	if err != nil {
		return fmt.Errorf("resolve conflicts: %w", err)
	}

	if _, err := m.git.Run("checkout", baseBranch); err != nil {
		return fmt.Errorf("checkout %s: %w", baseBranch, err)
	}
	// The merge is expected to stop on the same conflicts ResolveConflicts
	// was given; its error is not fatal, the loop below overwrites them.
	_ = m.git.MergeNoFFMessage(branch, fmt.Sprintf("AI-assisted merge for %s", taskID))

	for _, res := range resolutions {
		full := filepath.Join(m.repoPath, res.Path)
		if err := os.WriteFile(full, []byte(res.Content), 0644); err != nil {
			return fmt.Errorf("write resolution for %s: %w", res.Path, err)
		}
		if err := m.git.Add(full); err != nil {
			return fmt.Errorf("stage %s: %w", res.Path, err)
		}
	}

	if err := m.git.Commit(fmt.Sprintf("Merge %s via AI-assisted resolution", branch)); err != nil {
		return fmt.Errorf("commit resolved merge: %w", err)
	}

	_ = m.checkpoints(baseBranch).MarkGood(taskID)
	return nil
}

// Rollback resets baseBranch back to the checkpoint recorded for taskID
// (or the last known-good checkpoint when taskID is empty), undoing a
// merge the caller decided not to keep.
func (m *Manager) Rollback(baseBranch, taskID string, hard bool) (*merge.RollbackResult, error) {
	rm := merge.NewRollbackManager(m.git, m.checkpoints(baseBranch))
	if taskID == "" {
		return rm.RollbackToLastGood(hard)
	}
	return rm.RollbackToCheckpoint(taskID, hard)
}

// AbortMerge aborts an in-progress conflicted merge started by Merge.
func (m *Manager) AbortMerge() error {
	runner := git.NewRunner(m.repoPath)
	if err := runner.MergeAbort(); err != nil {
		return fmt.Errorf("abort merge: %w", err)
	}
	return nil
}

// checkpoints returns the checkpoint manager for baseBranch, creating it
// on first use. One session's worth of checkpoints lives as long as the
// Manager; Discard and a clean exit both leave the tags for Cleanup.
func (m *Manager) checkpoints(baseBranch string) *merge.CheckpointManager {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionCheckpoints == nil {
		m.sessionCheckpoints = make(map[string]*merge.CheckpointManager)
	}
	cm, ok := m.sessionCheckpoints[baseBranch]
	if !ok {
		cm = merge.NewCheckpointManager(baseBranch, m.git)
		m.sessionCheckpoints[baseBranch] = cm
	}
	return cm
}

// Discard removes a task's worktree and its branch without merging,
// permanently losing any uncommitted or unmerged work in it. Safe to
// call when the worktree, the branch, or both are already gone.
func (m *Manager) Discard(taskID string) error {
	m.mu.Lock()
	path := filepath.Join(m.baseDir, taskID)
	m.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		if err := m.Remove(path, true); err != nil {
			return fmt.Errorf("remove worktree: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat worktree path: %w", err)
	}

	runner := git.NewRunner(m.repoPath)
	exists, err := runner.BranchExists(branchFor(taskID))
	if err != nil {
		return fmt.Errorf("check branch exists: %w", err)
	}
	if exists {
		if err := runner.DeleteBranch(branchFor(taskID)); err != nil {
			return fmt.Errorf("delete branch: %w", err)
		}
	}
	return nil
}
