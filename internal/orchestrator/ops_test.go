package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forgeman/controlplane/internal/exec"
	"github.com/forgeman/controlplane/pkg/models"
)

type stubProjects struct {
	projects map[string]*models.Project
}

func (s *stubProjects) Get(projectID string) (*models.Project, error) {
	p, ok := s.projects[projectID]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

// stubResolver never finds an executable, so CreateTask/StartTask exercise
// their no-framework error path without spawning a real subprocess.
type stubResolver struct{}

func (stubResolver) Executable(project *models.Project, kind models.AgentKind) (string, error) {
	return "", errors.New("no framework installed")
}

func newTestOrchestrator(projects map[string]*models.Project) *Orchestrator {
	return New(Options{
		Projects:  &stubProjects{projects: projects},
		Framework: stubResolver{},
	})
}

func testProject(id string) *models.Project {
	now := time.Now()
	return &models.Project{
		ID:            id,
		Name:          "demo",
		Dir:           "/tmp/demo-" + id,
		FrameworkPath: ".forge",
		Settings:      models.DefaultProjectSettings(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestCreateTask_UnknownProject(t *testing.T) {
	o := newTestOrchestrator(nil)
	if _, err := o.CreateTask("missing", "Title", "desc"); err == nil {
		t.Error("CreateTask() error = nil, want error for unknown project")
	}
}

func TestCreateTask_NoFrameworkFailsInvalidRequest(t *testing.T) {
	proj := testProject("p1")
	proj.FrameworkPath = ""
	o := newTestOrchestrator(map[string]*models.Project{"p1": proj})

	task, err := o.CreateTask("p1", "Add logging", "Add structured logging")
	if err == nil {
		t.Fatalf("CreateTask() error = nil, want ErrInvalidRequest for missing framework")
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("CreateTask() error = %v, want ErrInvalidRequest", err)
	}
	if task != nil {
		t.Errorf("CreateTask() task = %v, want nil", task)
	}
}

func TestCreateTask_EmptyDescriptionFailsInvalidRequest(t *testing.T) {
	proj := testProject("p1")
	o := newTestOrchestrator(map[string]*models.Project{"p1": proj})

	task, err := o.CreateTask("p1", "Add logging", "   ")
	if err == nil {
		t.Fatalf("CreateTask() error = nil, want ErrInvalidRequest for empty description")
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("CreateTask() error = %v, want ErrInvalidRequest", err)
	}
	if task != nil {
		t.Errorf("CreateTask() task = %v, want nil", task)
	}
}

func TestListTasks_IncludesUnspecdTasks(t *testing.T) {
	proj := testProject("p1")
	o := newTestOrchestrator(map[string]*models.Project{"p1": proj})

	task, err := o.CreateTask("p1", "Add logging", "desc")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	tasks, err := o.ListTasks("p1")
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}

	found := false
	for _, tk := range tasks {
		if tk.ID == task.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("ListTasks() = %+v, want it to include task %s", tasks, task.ID)
	}
}

func TestStartTask_NoSpecYet(t *testing.T) {
	proj := testProject("p1")
	o := newTestOrchestrator(map[string]*models.Project{"p1": proj})

	task, err := o.CreateTask("p1", "Add logging", "desc")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := o.StartTask(task.ID, 1, ""); err == nil {
		t.Error("StartTask() error = nil, want error since no spec exists yet")
	}
}

func TestStopTask_ResetsToBacklog(t *testing.T) {
	proj := testProject("p1")
	o := newTestOrchestrator(map[string]*models.Project{"p1": proj})

	task, err := o.CreateTask("p1", "Add logging", "desc")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := o.StopTask(task.ID); err != nil {
		t.Fatalf("StopTask() error = %v", err)
	}
	if task.Status != models.TaskStatusBacklog {
		t.Errorf("task.Status = %v, want backlog", task.Status)
	}
}

func TestUpdateTask_PartialUpdate(t *testing.T) {
	proj := testProject("p1")
	o := newTestOrchestrator(map[string]*models.Project{"p1": proj})

	task, err := o.CreateTask("p1", "Original", "original desc")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	newTitle := "Renamed"
	if err := o.UpdateTask(task.ID, &newTitle, nil); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if task.Title != "Renamed" {
		t.Errorf("task.Title = %q, want %q", task.Title, "Renamed")
	}
	if task.Description != "original desc" {
		t.Errorf("task.Description = %q, want unchanged", task.Description)
	}
}

func TestDeleteTask_ForgetsTask(t *testing.T) {
	proj := testProject("p1")
	o := newTestOrchestrator(map[string]*models.Project{"p1": proj})

	task, err := o.CreateTask("p1", "Add logging", "desc")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := o.DeleteTask(task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}

	if _, _, err := o.lookup(task.ID); err == nil {
		t.Error("lookup() error = nil after delete, want unknown task error")
	}
}

// recordingRunner stands in for exec.CommandRunner in tests, capturing
// every RunShell call instead of touching a real shell.
type recordingRunner struct {
	calls []recordedCall
	fail  map[string]bool
}

type recordedCall struct {
	workDir string
	command string
}

func (r *recordingRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	return nil, errors.New("recordingRunner.Run not used in these tests")
}

func (r *recordingRunner) RunShell(ctx context.Context, workDir, command string) ([]byte, error) {
	r.calls = append(r.calls, recordedCall{workDir: workDir, command: command})
	if r.fail[command] {
		return nil, errors.New("exit status 1")
	}
	return nil, nil
}

func (r *recordingRunner) Exists(ctx context.Context, workDir, path string) bool {
	return false
}

func planWithChunks(chunks ...models.Chunk) *models.ImplementationPlan {
	return &models.ImplementationPlan{Phases: []models.Phase{{ID: "phase-1", Title: "Phase 1", Chunks: chunks}}}
}

func TestVerifyChunksAt_RunsCompletedChunksWithCommands(t *testing.T) {
	o := New(Options{Projects: &stubProjects{}, Framework: stubResolver{}})
	runner := &recordingRunner{}
	o.runner = runner

	plan := planWithChunks(
		models.Chunk{ID: "c1", Status: models.ChunkStatusCompleted, Verification: models.VerificationDescriptor{Command: "go test ./..."}},
		models.Chunk{ID: "c2", Status: models.ChunkStatusCompleted, Verification: models.VerificationDescriptor{Manual: "eyeball it"}},
		models.Chunk{ID: "c3", Status: models.ChunkStatusInProgress, Verification: models.VerificationDescriptor{Command: "go test ./..."}},
	)
	task := &models.Task{ID: "t1"}

	o.verifyChunksAt("/repo/worktrees/t1", task, plan)

	if len(runner.calls) != 1 {
		t.Fatalf("runner.calls = %+v, want exactly one call (only c1 is done with a command)", runner.calls)
	}
	if runner.calls[0].workDir != "/repo/worktrees/t1" || runner.calls[0].command != "go test ./..." {
		t.Errorf("runner.calls[0] = %+v, want workDir /repo/worktrees/t1 and command %q", runner.calls[0], "go test ./...")
	}
}

func TestVerifyChunksAt_FailingCommandDoesNotPanic(t *testing.T) {
	o := New(Options{Projects: &stubProjects{}, Framework: stubResolver{}})
	runner := &recordingRunner{fail: map[string]bool{"make verify": true}}
	o.runner = runner

	plan := planWithChunks(models.Chunk{ID: "c1", Status: models.ChunkStatusCompleted, Verification: models.VerificationDescriptor{Command: "make verify"}})
	task := &models.Task{ID: "t1"}

	o.verifyChunksAt("/repo/worktrees/t1", task, plan)

	if len(runner.calls) != 1 {
		t.Fatalf("runner.calls = %+v, want exactly one call even though it failed", runner.calls)
	}
}

func TestVerifyChunks_NilRunnerSkipsResolution(t *testing.T) {
	o := New(Options{Projects: &stubProjects{}, Framework: stubResolver{}})
	o.runner = nil

	// A nil runner must short-circuit before taskWorktree ever runs a git
	// command against a project directory that doesn't exist on disk.
	o.verifyChunks(testProject("p1"), &models.Task{ID: "t1", ProjectID: "p1"}, planWithChunks(
		models.Chunk{ID: "c1", Status: models.ChunkStatusCompleted, Verification: models.VerificationDescriptor{Command: "echo hi"}},
	))
}

func TestVerifyChunks_NilPlanSkipsResolution(t *testing.T) {
	o := New(Options{Projects: &stubProjects{}, Framework: stubResolver{}})
	o.runner = &recordingRunner{}

	o.verifyChunks(testProject("p1"), &models.Task{ID: "t1", ProjectID: "p1"}, nil)
}

func TestNew_DefaultsRunnerToExecRunner(t *testing.T) {
	o := New(Options{Projects: &stubProjects{}, Framework: stubResolver{}})

	if _, ok := o.runner.(*exec.ExecRunner); !ok {
		t.Errorf("o.runner = %T, want *exec.ExecRunner when Options.Runner is unset", o.runner)
	}
}

func TestNew_HonorsProvidedRunner(t *testing.T) {
	runner := &recordingRunner{}
	o := New(Options{Projects: &stubProjects{}, Framework: stubResolver{}, Runner: runner})

	if o.runner != runner {
		t.Error("o.runner != provided Options.Runner")
	}
}
