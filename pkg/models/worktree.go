package models

import "time"

// WorktreeRecord describes the isolated git worktree created for a task's
// agent invocations.
type WorktreeRecord struct {
	// TaskID is the owning task.
	TaskID string `json:"task_id"`
	// Path is the absolute path to the worktree directory.
	Path string `json:"path"`
	// Branch is the branch checked out in the worktree.
	Branch string `json:"branch"`
	// BaseBranch is the branch the worktree's branch was created from.
	BaseBranch string `json:"base_branch"`
	// CreatedAt is when the worktree was added.
	CreatedAt time.Time `json:"created_at"`
}

// WorktreeStatus is the cheap, read-only summary of a task's worktree:
// whether it exists, and if so, its location and its change summary
// relative to its base branch.
type WorktreeStatus struct {
	Exists       bool   `json:"exists"`
	Path         string `json:"path,omitempty"`
	Branch       string `json:"branch,omitempty"`
	BaseBranch   string `json:"base_branch,omitempty"`
	Dirty        bool   `json:"dirty"`
	FilesChanged int    `json:"files_changed"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	CommitCount  int    `json:"commit_count"`
}
