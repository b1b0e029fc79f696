package api

import (
	"errors"

	"github.com/forgeman/controlplane/internal/orchestrator"
	"github.com/forgeman/controlplane/pkg/models"
)

// CreateTask creates a task under projectID and starts spec creation.
func (s *Surface) CreateTask(projectID, title, description string) (*models.Task, *Error) {
	task, err := s.orch.CreateTask(projectID, title, description)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidRequest) {
			return nil, newError(KindInvalidRequest, "create task", err)
		}
		return nil, newError(KindNotFound, "create task", err)
	}
	return task, nil
}

// ListTasks lists a project's tasks.
func (s *Surface) ListTasks(projectID string) ([]*models.Task, *Error) {
	tasks, err := s.orch.ListTasks(projectID)
	if err != nil {
		return nil, newError(KindNotFound, "list tasks", err)
	}
	return tasks, nil
}

// GetTask returns one task by id.
func (s *Surface) GetTask(taskID string) (*models.Task, *Error) {
	task, err := s.orch.GetTask(taskID)
	if err != nil {
		return nil, newError(KindNotFound, "get task", err)
	}
	return task, nil
}

// StartTask starts the implementation agent for a task.
func (s *Surface) StartTask(taskID string, workers int, model string) *Error {
	if err := s.orch.StartTask(taskID, workers, model); err != nil {
		return newError(KindInvalidRequest, "start task", err)
	}
	return nil
}

// StopTask stops a running task's agent, resetting it to backlog.
func (s *Surface) StopTask(taskID string) *Error {
	if err := s.orch.StopTask(taskID); err != nil {
		return newError(KindInvalidRequest, "stop task", err)
	}
	return nil
}

// ReviewTask records a human review verdict for a task awaiting review.
func (s *Surface) ReviewTask(taskID string, approved bool, feedback string) *Error {
	if err := s.orch.ReviewTask(taskID, approved, feedback); err != nil {
		return newError(KindInvalidRequest, "review task", err)
	}
	return nil
}

// UpdateTask partially updates a task's title and/or description.
func (s *Surface) UpdateTask(taskID string, title, description *string) *Error {
	if err := s.orch.UpdateTask(taskID, title, description); err != nil {
		return newError(KindInvalidRequest, "update task", err)
	}
	return nil
}

// DeleteTask deletes a task, its spec directory, and its worktree.
func (s *Surface) DeleteTask(taskID string) *Error {
	if err := s.orch.DeleteTask(taskID); err != nil {
		return newError(KindInvalidRequest, "delete task", err)
	}
	return nil
}
