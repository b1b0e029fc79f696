package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgeman/controlplane/internal/agentkind"
	"github.com/forgeman/controlplane/internal/events"
	"github.com/forgeman/controlplane/internal/exec"
	"github.com/forgeman/controlplane/internal/learning"
	"github.com/forgeman/controlplane/internal/state"
	"github.com/forgeman/controlplane/internal/watcher"
	"github.com/forgeman/controlplane/pkg/models"
)

// ProjectStore is the subset of the Project Registry the orchestrator
// needs: looking up a project by id.
type ProjectStore interface {
	Get(projectID string) (*models.Project, error)
}

// FrameworkResolver locates the external executable backing one agent
// kind inside a project's installed framework directory.
type FrameworkResolver interface {
	Executable(project *models.Project, kind models.AgentKind) (string, error)
}

// supervised tracks one live agent-kind subprocess.
type supervised struct {
	kind      models.AgentKind
	cancel    context.CancelFunc
	startedAt time.Time
	done      chan struct{}
}

// Orchestrator owns task records, subprocess supervision, and the
// derived task-status algorithm. One Orchestrator serves every project
// registered with the control plane.
type Orchestrator struct {
	projects   ProjectStore
	framework  FrameworkResolver
	supervisor *agentkind.Supervisor
	emitter    *EventEmitter
	logger     *DebugLogger
	pause      *PauseController
	claude     *agentkind.ClaudeClient
	cache      *state.DB
	bus        *events.Bus
	watcher    *watcher.Watcher
	runner     exec.CommandRunner

	mu      sync.Mutex
	tasks   map[string]*models.Task
	running map[string]*supervised

	learningMu      sync.Mutex
	learningSystems map[string]*learning.LearningSystem
	usedLearnings   map[string][]string
}

// Options configures a new Orchestrator.
type Options struct {
	Projects     ProjectStore
	Framework    FrameworkResolver
	Timeout      time.Duration
	GracefulKill time.Duration
	Logger       *DebugLogger
	// Claude is the direct-API fallback ReviewTask's merge step hands
	// conflicts to when a project has no merge-agent executable
	// installed. Nil disables the fallback; semantic merges then fail
	// outright and leave the task in human_review.
	Claude *agentkind.ClaudeClient
	// Cache is an optional crash-recovery mirror of task and agent
	// state. The in-memory task map remains the source of truth;
	// writes to Cache are best-effort and never block or fail an
	// operation. Nil disables caching entirely.
	Cache *state.DB
	// Bus is an optional general event bus every status/progress/error
	// event is additionally republished onto, alongside the dedicated
	// Events() stream. Nil disables republishing.
	Bus *events.Bus
	// Runner executes completed chunks' verification commands after a
	// successful implementation run. Nil (the usual case) defaults to
	// exec.NewRunner(); set only in tests that need to stub out command
	// execution.
	Runner exec.CommandRunner
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger()
	}
	o := &Orchestrator{
		projects:  opts.Projects,
		framework: opts.Framework,
		supervisor: &agentkind.Supervisor{
			Timeout:      opts.Timeout,
			GracefulKill: opts.GracefulKill,
		},
		emitter: NewEventEmitter(256),
		logger:  logger,
		pause:   NewPauseController(),
		claude:  opts.Claude,
		cache:   opts.Cache,
		bus:     opts.Bus,
		runner:  opts.Runner,
		tasks:   make(map[string]*models.Task),
		running: make(map[string]*supervised),

		learningSystems: make(map[string]*learning.LearningSystem),
		usedLearnings:   make(map[string][]string),
	}
	if o.runner == nil {
		o.runner = exec.NewRunner()
	}

	// The Artifact Watcher observes each in-flight task's spec directory
	// so an implementation plan rewritten mid-run is reflected in the
	// task snapshot without waiting for the agent-kind subprocess to
	// exit. A failure to construct the underlying fsnotify handle (rare;
	// platform/fd-limit dependent) degrades to exit-time-only plan
	// refreshes rather than blocking orchestrator construction.
	if w, err := watcher.New(o.onArtifact, o.onArtifactParseError); err == nil {
		o.watcher = w
		go w.Run()
	} else {
		logger.Log("artifact watcher disabled: %v", err)
	}

	return o
}

// Events returns the orchestrator's event stream.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Close stops accepting new work and closes the event stream.
func (o *Orchestrator) Close() {
	o.pause.Stop()
	o.emitter.Close()
	if o.bus != nil {
		o.bus.Close()
	}
	if o.watcher != nil {
		o.watcher.Close()
	}

	o.learningMu.Lock()
	for _, ls := range o.learningSystems {
		ls.Close()
	}
	o.learningMu.Unlock()
}

// onArtifact is the Artifact Watcher's callback for a settled file
// change. Only plan changes currently update live state: QA report/fix
// request artifacts are read synchronously by onAgentExit once the
// agent-kind subprocess exits, and task logs/memory episodes have no
// in-memory mirror to refresh. A spec directory's name equals its
// task's id (see models.Task's doc comment), so ev.SpecID is a direct
// task-map key.
func (o *Orchestrator) onArtifact(ev models.ArtifactEvent) {
	if ev.Kind != models.ArtifactKindPlan {
		return
	}
	plan, ok := ev.Payload.(*models.ImplementationPlan)
	if !ok {
		return
	}

	o.mu.Lock()
	task, known := o.tasks[ev.SpecID]
	var progress models.Progress
	if known {
		task.Plan = plan
		progress = task.Progress
	}
	o.mu.Unlock()
	if !known {
		return
	}

	o.publish(Event{Type: EventTaskProgress, TaskID: ev.SpecID, Progress: progress, Timestamp: ev.ObservedAt})
}

// onArtifactParseError logs a watched file's parse failure without
// breaking the watcher.
func (o *Orchestrator) onArtifactParseError(projectID, specID, path string, err error) {
	o.logger.Log("artifact watcher: parse %s (project %s, spec %s): %v", path, projectID, specID, err)
}

// publish emits ev on the dedicated Events() stream and, if a general
// bus is configured, republishes it there too, keyed by task id.
func (o *Orchestrator) publish(ev Event) {
	o.emitter.Emit(ev)

	if o.bus == nil {
		return
	}
	if kind, ok := busKind(ev.Type); ok {
		o.bus.Publish(kind, ev.TaskID, ev)
	}
}

// busKind maps an orchestrator-local EventType to its general-bus Kind.
// EventTaskStuck has no bus kind of its own; spec.md's event-kind list
// covers it implicitly through task.status transitions.
func busKind(t EventType) (events.Kind, bool) {
	switch t {
	case EventTaskStatus:
		return events.KindTaskStatus, true
	case EventTaskProgress:
		return events.KindTaskProgress, true
	case EventError:
		return events.KindTaskError, true
	default:
		return "", false
	}
}

// Cache returns the crash-recovery cache database backing this
// Orchestrator, or nil if none was configured.
func (o *Orchestrator) Cache() *state.DB {
	return o.cache
}

// Bus returns the general event bus backing this Orchestrator, or nil
// if none was configured.
func (o *Orchestrator) Bus() *events.Bus {
	return o.bus
}

func newTaskID() string {
	return uuid.New().String()
}

// isLive reports whether a supervised subprocess is currently running
// for taskID.
func (o *Orchestrator) isLive(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[taskID]
	return ok
}

// spawn kills any existing supervised process for taskID, then launches
// kind against prompt in workDir, forwarding progress and completion
// events asynchronously. It never blocks on the subprocess.
func (o *Orchestrator) spawn(project *models.Project, task *models.Task, kind models.AgentKind, prompt, workDir, model string) error {
	if o.pause.IsStopped() || o.pause.IsPaused() {
		return fmt.Errorf("orchestrator is paused or stopped; not spawning %s", kind)
	}
	o.killSupervised(task.ID)

	executable, err := o.framework.Executable(project, kind)
	if err != nil {
		o.publish(Event{Type: EventError, TaskID: task.ID, Err: fmt.Errorf("resolve %s executable: %w", kind, err), Timestamp: time.Now()})
		return fmt.Errorf("resolve %s executable: %w", kind, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup := &supervised{kind: kind, cancel: cancel, startedAt: time.Now(), done: make(chan struct{})}

	o.mu.Lock()
	o.running[task.ID] = sup
	o.mu.Unlock()

	o.setStatus(task.ID, models.TaskStatusInProgress)
	o.cacheAgent(task.ID, kind, state.AgentRunning, 0, workDir)

	if o.watcher != nil && task.SpecID != "" {
		if err := o.watcher.WatchTask(project.ID, task.SpecID, specDir(project, task.SpecID)); err != nil {
			o.logger.Log("watch spec dir for task %s: %v", task.ID, err)
		}
	}

	onProgress := o.progressReporter(project, task, kind)

	go func() {
		defer close(sup.done)

		result := o.supervisor.Run(ctx, prompt, agentkind.StartOptions{
			Executable: executable,
			Model:      model,
			WorkDir:    workDir,
		}, onProgress)

		o.mu.Lock()
		delete(o.running, task.ID)
		o.mu.Unlock()

		if result.Success {
			o.cacheAgent(task.ID, kind, state.AgentDone, result.PID, workDir)
			o.onAgentExit(project, task.ID, kind, true, result.Output)
		} else {
			o.logger.Log("agent kind %s for task %s failed: %s", kind, task.ID, result.Error)
			o.cacheAgent(task.ID, kind, state.AgentFailed, result.PID, workDir)
			o.onAgentExit(project, task.ID, kind, false, result.Error)
		}
	}()

	return nil
}

// killSupervised terminates any subprocess running for taskID, waiting
// briefly for a graceful exit before the caller proceeds.
func (o *Orchestrator) killSupervised(taskID string) {
	o.mu.Lock()
	sup, ok := o.running[taskID]
	if ok {
		delete(o.running, taskID)
	}
	o.mu.Unlock()

	if !ok {
		return
	}

	sup.cancel()
	select {
	case <-sup.done:
	case <-time.After(5 * time.Second):
	}
}

// progressReporter builds the onProgress callback passed to the
// supervisor for one invocation. Roadmap and ideation kinds narrate
// their own phase/percent through stdout markers (see internal/agentkind),
// so their snapshots are forwarded unchanged. Implementation and QA
// kinds work chunk by chunk against a plan file the agent itself
// rewrites, which is a more reliable progress source than anything they
// print, so their snapshots are replaced with one computed from the
// plan's completion ratio.
func (o *Orchestrator) progressReporter(project *models.Project, task *models.Task, kind models.AgentKind) agentkind.OnProgress {
	switch kind {
	case models.AgentKindImplementation, models.AgentKindQA:
		phase := "coding"
		if kind == models.AgentKindQA {
			phase = "verifying"
		}
		return func(p models.Progress) {
			plan, _ := readPlan(specDir(project, task.SpecID))
			percent := p.Percent
			if total := plan.TotalChunks(); total > 0 {
				percent = plan.DoneChunks() * 100 / total
			}
			o.recordProgress(task.ID, models.Progress{Phase: phase, Percent: percent, Message: p.Message})
		}
	default:
		return func(p models.Progress) {
			o.recordProgress(task.ID, p)
		}
	}
}

func (o *Orchestrator) recordProgress(taskID string, p models.Progress) {
	o.mu.Lock()
	task, ok := o.tasks[taskID]
	if ok {
		task.Progress = p
		task.UpdatedAt = time.Now()
	}
	o.mu.Unlock()

	o.publish(Event{Type: EventTaskProgress, TaskID: taskID, Progress: p, Timestamp: time.Now()})
}

func (o *Orchestrator) setStatus(taskID string, status models.TaskStatus) {
	o.mu.Lock()
	task, ok := o.tasks[taskID]
	if ok {
		task.Status = status
		task.UpdatedAt = time.Now()
	}
	o.mu.Unlock()

	if ok {
		o.cacheTask(task)
	}

	o.publish(Event{Type: EventTaskStatus, TaskID: taskID, Status: string(status), Timestamp: time.Now()})
}

// cacheTask mirrors task to the crash-recovery cache. A no-op when no
// cache is configured; failures are logged and otherwise ignored, since
// the in-memory task map remains authoritative for live status.
func (o *Orchestrator) cacheTask(task *models.Task) {
	if o.cache == nil {
		return
	}
	err := o.cache.UpsertTask(&state.Task{
		ID:          task.ID,
		ProjectID:   task.ProjectID,
		SpecID:      task.SpecID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	})
	if err != nil {
		o.logger.Log("cache task %s: %v", task.ID, err)
	}
}

// cacheAgent mirrors one agent-kind invocation's lifecycle to the
// crash-recovery cache. pid is 0 until the subprocess exits, since the
// supervisor only reports it synchronously on Run's return.
func (o *Orchestrator) cacheAgent(taskID string, kind models.AgentKind, status state.AgentStatus, pid int, workDir string) {
	if o.cache == nil {
		return
	}
	now := time.Now()
	agent := &state.Agent{
		ID:           taskID + ":" + string(kind),
		TaskID:       taskID,
		Kind:         string(kind),
		Status:       status,
		WorktreePath: workDir,
		PID:          pid,
		StartedAt:    &now,
	}
	existing, err := o.cache.GetAgent(agent.ID)
	if err != nil {
		o.logger.Log("cache agent %s: %v", agent.ID, err)
		return
	}
	if existing == nil {
		err = o.cache.CreateAgent(agent)
	} else {
		err = o.cache.UpdateAgent(agent)
	}
	if err != nil {
		o.logger.Log("cache agent %s: %v", agent.ID, err)
	}
}
