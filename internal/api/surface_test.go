package api

import (
	"path/filepath"
	"testing"

	"github.com/forgeman/controlplane/internal/orchestrator"
	"github.com/forgeman/controlplane/internal/registry"
)

func newTestSurface(t *testing.T) (*Surface, string) {
	t.Helper()
	dir := t.TempDir()

	reg, err := registry.New(filepath.Join(dir, "projects.json"))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	orch := orchestrator.New(orchestrator.Options{
		Projects:  reg,
		Framework: orchestrator.DefaultFrameworkResolver{},
	})
	t.Cleanup(orch.Close)

	return New(orch, reg, ""), dir
}

func TestAddProject_ThenGetProject(t *testing.T) {
	s, dir := newTestSurface(t)

	added, aerr := s.AddProject(dir, "demo")
	if aerr != nil {
		t.Fatalf("AddProject: %v", aerr)
	}

	got, aerr := s.GetProject(added.ID)
	if aerr != nil {
		t.Fatalf("GetProject: %v", aerr)
	}
	if got.ID != added.ID {
		t.Errorf("GetProject returned id %q, want %q", got.ID, added.ID)
	}
}

func TestGetProject_Unknown(t *testing.T) {
	s, _ := newTestSurface(t)

	_, aerr := s.GetProject("does-not-exist")
	if aerr == nil {
		t.Fatal("expected an error for an unknown project")
	}
	if aerr.Kind != KindNotFound {
		t.Errorf("Kind = %q, want %q", aerr.Kind, KindNotFound)
	}
}

func TestCreateTask_UnknownProject(t *testing.T) {
	s, _ := newTestSurface(t)

	_, aerr := s.CreateTask("does-not-exist", "title", "description")
	if aerr == nil {
		t.Fatal("expected an error for an unknown project")
	}
	if aerr.Kind != KindNotFound {
		t.Errorf("Kind = %q, want %q", aerr.Kind, KindNotFound)
	}
}

func TestCreateTask_ThenListTasks(t *testing.T) {
	s, dir := newTestSurface(t)

	project, aerr := s.AddProject(dir, "demo")
	if aerr != nil {
		t.Fatalf("AddProject: %v", aerr)
	}

	project.FrameworkPath = ".forge"
	if err := s.reg.Update(project); err != nil {
		t.Fatalf("Update: %v", err)
	}

	task, aerr := s.CreateTask(project.ID, "title", "description")
	if aerr != nil {
		t.Fatalf("CreateTask: %v", aerr)
	}

	tasks, aerr := s.ListTasks(project.ID)
	if aerr != nil {
		t.Fatalf("ListTasks: %v", aerr)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Errorf("ListTasks = %v, want one task with id %q", tasks, task.ID)
	}
}

func TestCreateTask_NoFrameworkInvalidRequest(t *testing.T) {
	s, dir := newTestSurface(t)

	project, aerr := s.AddProject(dir, "demo")
	if aerr != nil {
		t.Fatalf("AddProject: %v", aerr)
	}

	_, aerr = s.CreateTask(project.ID, "title", "description")
	if aerr == nil {
		t.Fatal("expected an error for a project with no framework installed")
	}
	if aerr.Kind != KindInvalidRequest {
		t.Errorf("Kind = %q, want %q", aerr.Kind, KindInvalidRequest)
	}
}
