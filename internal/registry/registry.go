// Package registry persists the control plane's project registry:
// the set of project directories the daemon and CLI know about, each
// identified by a stable ID independent of its filesystem path.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgeman/controlplane/pkg/models"
)

// fileVersion is bumped if the on-disk schema changes incompatibly.
const fileVersion = 1

type file struct {
	Version  int               `json:"version"`
	Projects []*models.Project `json:"projects"`
}

// Registry is a file-backed, in-memory-cached project store. It
// satisfies internal/orchestrator.ProjectStore.
type Registry struct {
	path string

	mu       sync.RWMutex
	projects map[string]*models.Project
}

// New loads (or initializes) the registry at path.
func New(path string) (*Registry, error) {
	r := &Registry{path: path, projects: make(map[string]*models.Project)}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultPath returns the registry's conventional location under the
// user's XDG data directory.
func DefaultPath() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "forgeman", "projects.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "forgeman", "projects.json")
	}
	return filepath.Join(home, ".local", "share", "forgeman", "projects.json")
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read registry: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse registry: %w", err)
	}

	for _, p := range f.Projects {
		r.projects[p.ID] = p
	}
	return nil
}

// save writes the registry to disk via write-temp-then-rename, so a
// crash mid-write never leaves a truncated projects.json behind.
func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	f := file{Version: fileVersion, Projects: make([]*models.Project, 0, len(r.projects))}
	for _, p := range r.projects {
		f.Projects = append(f.Projects, p)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename registry: %w", err)
	}
	return nil
}

// Get retrieves a project by ID. Satisfies orchestrator.ProjectStore.
func (r *Registry) Get(projectID string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s not registered", projectID)
	}
	return p, nil
}

// List returns every registered project.
func (r *Registry) List() []*models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out
}

// GetByDir returns the project registered at dir, if any.
func (r *Registry) GetByDir(dir string) (*models.Project, error) {
	clean, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.projects {
		if p.Dir == clean {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no project registered at %s", dir)
}

// Add registers a new project rooted at dir. Fails if dir is already
// registered.
func (r *Registry) Add(dir, name string) (*models.Project, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	absDir = filepath.Clean(absDir)

	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absDir)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.projects {
		if p.Dir == absDir {
			return nil, fmt.Errorf("%s is already registered as project %s", absDir, p.ID)
		}
	}

	if name == "" {
		name = filepath.Base(absDir)
	}

	now := time.Now()
	project := &models.Project{
		ID:        uuid.New().String(),
		Name:      name,
		Dir:       absDir,
		Settings:  models.DefaultProjectSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if fw := findFrameworkDir(absDir); fw != "" {
		project.FrameworkPath = fw
	}

	r.projects[project.ID] = project
	if err := r.save(); err != nil {
		delete(r.projects, project.ID)
		return nil, err
	}
	return project, nil
}

// Remove unregisters a project. It does not touch the project's
// filesystem contents.
func (r *Registry) Remove(projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[projectID]; !ok {
		return fmt.Errorf("project %s not registered", projectID)
	}

	removed := r.projects[projectID]
	delete(r.projects, projectID)
	if err := r.save(); err != nil {
		r.projects[projectID] = removed
		return err
	}
	return nil
}

// Update persists changes to settings/framework path for an already
// registered project.
func (r *Registry) Update(project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[project.ID]; !ok {
		return fmt.Errorf("project %s not registered", project.ID)
	}

	project.UpdatedAt = time.Now()
	r.projects[project.ID] = project
	return r.save()
}

// findFrameworkDir mirrors orchestrator.FindFrameworkDir without
// importing the orchestrator package, to avoid a registry<->orchestrator
// import cycle (the orchestrator depends on registry through the
// ProjectStore interface, not the reverse).
func findFrameworkDir(dir string) string {
	for _, name := range []string{".forge", "forge"} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && info.IsDir() {
			return name
		}
	}
	return ""
}
