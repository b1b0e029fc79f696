package api

import (
	"github.com/forgeman/controlplane/internal/worktree"
	"github.com/forgeman/controlplane/pkg/models"
)

// WorktreeStatus reports whether a task has a worktree and, if so, its
// location and change summary relative to its base branch.
func (s *Surface) WorktreeStatus(taskID string) (*models.WorktreeStatus, *Error) {
	status, err := s.orch.WorktreeStatus(taskID)
	if err != nil {
		return nil, newError(KindNotFound, "worktree status", err)
	}
	return status, nil
}

// WorktreeDiff returns a task's worktree diff against its base branch.
func (s *Surface) WorktreeDiff(taskID string) (string, *Error) {
	diff, err := s.orch.WorktreeDiff(taskID)
	if err != nil {
		return "", newError(KindNotFound, "worktree diff", err)
	}
	return diff, nil
}

// WorktreeMergePreview classifies the conflicts merging a task's
// worktree branch would produce, without mutating either branch.
func (s *Surface) WorktreeMergePreview(taskID string) (*models.MergePreview, *Error) {
	preview, err := s.orch.WorktreeMergePreview(taskID)
	if err != nil {
		return nil, newError(KindNotFound, "worktree merge preview", err)
	}
	return preview, nil
}

// WorktreeMerge executes the merge protocol for a task's worktree
// branch. stageOnly stages the resolved changes in the project directory
// without committing, per the merge protocol's staged-merge mode.
func (s *Surface) WorktreeMerge(taskID string, stageOnly bool) (worktree.MergeResult, *Error) {
	result, err := s.orch.WorktreeMerge(taskID, stageOnly)
	if err != nil {
		return worktree.MergeResult{}, newError(KindInvalidRequest, "worktree merge", err)
	}
	return result, nil
}

// WorktreeDiscard removes a task's worktree and its branch. Safe to call
// when the worktree is already gone.
func (s *Surface) WorktreeDiscard(taskID string) *Error {
	if err := s.orch.WorktreeDiscard(taskID); err != nil {
		return newError(KindInvalidRequest, "worktree discard", err)
	}
	return nil
}
