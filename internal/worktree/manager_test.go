package worktree

import (
	"testing"

	"github.com/forgeman/controlplane/pkg/models"
)

func TestBranchFor(t *testing.T) {
	tests := []struct {
		taskID string
		want   string
	}{
		{"abc123", "forgeman/abc123"},
		{"uuid-like-id", "forgeman/uuid-like-id"},
		{"simple", "forgeman/simple"},
	}

	for _, tt := range tests {
		t.Run(tt.taskID, func(t *testing.T) {
			if got := branchFor(tt.taskID); got != tt.want {
				t.Errorf("branchFor(%q) = %q, want %q", tt.taskID, got, tt.want)
			}
		})
	}
}

func TestParseWorktreeList(t *testing.T) {
	output := `worktree /home/user/project
branch refs/heads/main

worktree /home/user/.cache/forgeman/worktrees/abc123
branch refs/heads/forgeman/abc123

worktree /home/user/.cache/forgeman/worktrees/def456
branch refs/heads/forgeman/def456
`

	worktrees, err := parseWorktreeList(output)
	if err != nil {
		t.Fatalf("parseWorktreeList() error = %v", err)
	}
	if len(worktrees) != 3 {
		t.Fatalf("len(worktrees) = %d, want 3", len(worktrees))
	}

	if worktrees[0].TaskID != "" {
		t.Errorf("worktrees[0].TaskID = %q, want empty (main checkout)", worktrees[0].TaskID)
	}
	if worktrees[1].TaskID != "abc123" {
		t.Errorf("worktrees[1].TaskID = %q, want abc123", worktrees[1].TaskID)
	}
	if worktrees[2].TaskID != "def456" {
		t.Errorf("worktrees[2].TaskID = %q, want def456", worktrees[2].TaskID)
	}
}

func TestIsForgemanWorktree(t *testing.T) {
	if got := isForgemanWorktree(&models.WorktreeRecord{Branch: "forgeman/abc123"}); !got {
		t.Error("isForgemanWorktree(forgeman/abc123) = false, want true")
	}
	if got := isForgemanWorktree(&models.WorktreeRecord{Branch: "main"}); got {
		t.Error("isForgemanWorktree(main) = true, want false")
	}
}
