// Package models defines the persisted and in-memory record types shared
// across the control plane: projects, tasks, implementation plans,
// worktrees, merges, terminals, and artifacts.
package models

import (
	"path/filepath"
	"time"
)

// MemoryBackend selects where an agent's learning episodes are stored.
type MemoryBackend string

const (
	// MemoryBackendFile stores learning episodes as JSON files under the
	// project's spec directories.
	MemoryBackendFile MemoryBackend = "file"
	// MemoryBackendGraph stores learning episodes in an external graph
	// database, configured via the project's .env file.
	MemoryBackendGraph MemoryBackend = "graph"
)

// Valid returns true if the backend is a known value.
func (m MemoryBackend) Valid() bool {
	switch m {
	case MemoryBackendFile, MemoryBackendGraph:
		return true
	default:
		return false
	}
}

// NotificationFlags toggles per-event notifications. The set of keys is
// open-ended (event kind -> enabled); unknown keys are preserved but
// ignored by the core.
type NotificationFlags map[string]bool

// ProjectSettings holds the per-project configuration recognized by the
// control plane.
type ProjectSettings struct {
	// ParallelismEnabled allows more than one worker to run concurrently
	// for a project's tasks.
	ParallelismEnabled bool `json:"parallelism_enabled"`
	// MaxWorkers bounds concurrent workers when parallelism is enabled.
	// Must be >= 1.
	MaxWorkers int `json:"max_workers"`
	// PreferredModel is a free-form model tag forwarded to agent
	// invocations (e.g. "sonnet", "opus").
	PreferredModel string `json:"preferred_model,omitempty"`
	// MemBackend selects the learning-episode storage backend.
	MemBackend MemoryBackend `json:"memory_backend"`
	// IssueTrackerSyncEnabled turns on issue-tracker synchronization.
	IssueTrackerSyncEnabled bool `json:"issue_tracker_sync_enabled"`
	// Notifications holds per-event-kind notification toggles.
	Notifications NotificationFlags `json:"notifications,omitempty"`
}

// Valid reports whether the settings satisfy the documented constraints.
func (s ProjectSettings) Valid() bool {
	if s.MaxWorkers < 1 {
		return false
	}
	if s.MemBackend != "" && !s.MemBackend.Valid() {
		return false
	}
	return true
}

// DefaultProjectSettings returns the settings applied to a newly
// registered project.
func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		ParallelismEnabled: false,
		MaxWorkers:         1,
		MemBackend:         MemoryBackendFile,
	}
}

// Project is a persisted record in the Project Registry.
type Project struct {
	// ID is the stable identifier assigned at registration.
	ID string `json:"id"`
	// Name is a human-readable label for the project.
	Name string `json:"name"`
	// Dir is the absolute path to the project directory. Unique across
	// the registry.
	Dir string `json:"dir"`
	// FrameworkPath is the path (relative to Dir) to the installed agent
	// framework directory, or empty if not yet installed.
	FrameworkPath string `json:"framework_path,omitempty"`
	// Settings holds the project's configuration.
	Settings ProjectSettings `json:"settings"`
	// CreatedAt is when the project was registered.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the project record was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasFramework reports whether a framework install path has been recorded.
func (p *Project) HasFramework() bool {
	return p.FrameworkPath != ""
}

// SpecRoot returns the absolute path to the project's specs directory,
// given the framework directory's conventional "specs" subdirectory.
func (p *Project) SpecRoot() string {
	if !p.HasFramework() {
		return ""
	}
	return filepath.Join(p.Dir, p.FrameworkPath, "specs")
}
