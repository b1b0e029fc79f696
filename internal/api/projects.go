package api

import "github.com/forgeman/controlplane/pkg/models"

// AddProject registers dir as a project, named name.
func (s *Surface) AddProject(dir, name string) (*models.Project, *Error) {
	project, err := s.reg.Add(dir, name)
	if err != nil {
		return nil, newError(KindInvalidRequest, "add project", err)
	}
	return project, nil
}

// ListProjects returns every registered project.
func (s *Surface) ListProjects() []*models.Project {
	return s.reg.List()
}

// GetProject returns one project by id.
func (s *Surface) GetProject(projectID string) (*models.Project, *Error) {
	project, err := s.reg.Get(projectID)
	if err != nil {
		return nil, newError(KindNotFound, "get project", err)
	}
	return project, nil
}

// RemoveProject forgets a registered project. It does not touch the
// project's directory, spec files, or worktrees.
func (s *Surface) RemoveProject(projectID string) *Error {
	if err := s.reg.Remove(projectID); err != nil {
		return newError(KindNotFound, "remove project", err)
	}
	return nil
}
