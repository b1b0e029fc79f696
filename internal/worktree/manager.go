// Package worktree implements the Worktree Manager: per-task git worktree
// lifecycle (create/list/remove/prune/orphan-cleanup) plus the
// status/diff/mergePreview/merge/discard operations layered on top in
// preview.go and merge.go.
package worktree

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/forgeman/controlplane/internal/git"
	"github.com/forgeman/controlplane/internal/merge"
	"github.com/forgeman/controlplane/pkg/models"
)

// branchPrefix names every branch the manager creates, so orphan
// detection can tell a task worktree from an unrelated branch.
const branchPrefix = "forgeman/"

// Manager handles git worktree operations for per-task isolation.
type Manager struct {
	baseDir  string
	repoPath string
	git      git.Runner
	mu       sync.Mutex

	// sessionCheckpoints holds one checkpoint manager per base branch
	// merges have been attempted against, lazily built in merge.go.
	sessionCheckpoints map[string]*merge.CheckpointManager
}

// New creates a Manager. baseDir defaults to ~/.cache/forgeman/worktrees
// when empty. repoPath is the main repository's working directory.
func New(baseDir, repoPath string) (*Manager, error) {
	return newManager(baseDir, repoPath, git.NewRunner(repoPath))
}

// NewWithRunner is like New but accepts a git.Runner, for tests.
func NewWithRunner(baseDir, repoPath string, runner git.Runner) (*Manager, error) {
	return newManager(baseDir, repoPath, runner)
}

func newManager(baseDir, repoPath string, runner git.Runner) (*Manager, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".cache", "forgeman", "worktrees")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create worktree base directory: %w", err)
	}

	return &Manager{baseDir: baseDir, repoPath: repoPath, git: runner}, nil
}

func branchFor(taskID string) string {
	return branchPrefix + taskID
}

// Create adds a new worktree and branch for taskID, based on baseBranch
// (the project's current HEAD branch when empty means the git default).
func (m *Manager) Create(taskID, baseBranch string) (*models.WorktreeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	branch := branchFor(taskID)
	path := filepath.Join(m.baseDir, taskID)

	if baseBranch == "" {
		current, err := m.git.CurrentBranch()
		if err != nil {
			return nil, fmt.Errorf("resolve base branch: %w", err)
		}
		baseBranch = current
	}

	if _, err := m.git.Run("worktree", "add", path, "-b", branch, baseBranch); err != nil {
		return nil, fmt.Errorf("create worktree: %w", err)
	}

	return &models.WorktreeRecord{
		TaskID:     taskID,
		Path:       path,
		Branch:     branch,
		BaseBranch: baseBranch,
		CreatedAt:  time.Now(),
	}, nil
}

// Remove removes the worktree at path. If force is true it is removed
// even with uncommitted changes.
func (m *Manager) Remove(path string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreeRemoveOptionalForce(path, force); err != nil {
		return fmt.Errorf("remove worktree: %w", err)
	}
	return nil
}

// List returns every worktree git currently tracks for this repository.
func (m *Manager) List() ([]*models.WorktreeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	output, err := m.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	return parseWorktreeList(output)
}

func parseWorktreeList(output string) ([]*models.WorktreeRecord, error) {
	var worktrees []*models.WorktreeRecord
	var current *models.WorktreeRecord

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if current != nil {
				worktrees = append(worktrees, current)
				current = nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "worktree "):
			current = &models.WorktreeRecord{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch ") && current != nil:
			branchRef := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(branchRef, "refs/heads/")
			if strings.HasPrefix(current.Branch, branchPrefix) {
				current.TaskID = strings.TrimPrefix(current.Branch, branchPrefix)
			}
		}
	}

	if current != nil {
		worktrees = append(worktrees, current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse worktree list: %w", err)
	}
	return worktrees, nil
}

// Prune removes git's references to worktrees that no longer exist.
func (m *Manager) Prune() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreePruneExpireNow(); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}
	return nil
}

func isForgemanWorktree(wt *models.WorktreeRecord) bool {
	return strings.HasPrefix(wt.Branch, branchPrefix)
}

// ListOrphans returns worktrees whose task id is not in activeTasks.
func (m *Manager) ListOrphans(activeTasks []string) ([]*models.WorktreeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	output, err := m.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	worktrees, err := parseWorktreeList(output)
	if err != nil {
		return nil, err
	}

	active := make(map[string]bool, len(activeTasks))
	for _, id := range activeTasks {
		active[id] = true
	}

	var orphans []*models.WorktreeRecord
	for _, wt := range worktrees {
		if !isForgemanWorktree(wt) || wt.Path == m.repoPath {
			continue
		}
		if wt.TaskID != "" && active[wt.TaskID] {
			continue
		}
		orphans = append(orphans, wt)
	}
	return orphans, nil
}

// CleanupOrphans removes every orphaned worktree (per ListOrphans),
// invoking verbose for each one removed, and returns the count removed.
func (m *Manager) CleanupOrphans(activeTasks []string, verbose func(path string)) (int, error) {
	orphans, err := m.ListOrphans(activeTasks)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, wt := range orphans {
		if err := m.git.WorktreeRemove(wt.Path); err != nil {
			if err := os.RemoveAll(wt.Path); err != nil {
				continue
			}
		}
		if verbose != nil {
			verbose(wt.Path)
		}
		removed++
	}

	_ = m.git.WorktreePruneExpireNow()
	return removed, nil
}

// StartupCleanup recovers orphaned worktrees left behind by a crash.
func (m *Manager) StartupCleanup(activeTasks []string) (int, error) {
	return m.CleanupOrphans(activeTasks, nil)
}

// BaseDir returns the directory worktrees are created under.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// RepoPath returns the main repository's working directory.
func (m *Manager) RepoPath() string {
	return m.repoPath
}
