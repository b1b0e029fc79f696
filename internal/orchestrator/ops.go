package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forgeman/controlplane/internal/framework"
	"github.com/forgeman/controlplane/internal/learning"
	"github.com/forgeman/controlplane/internal/mergeai"
	"github.com/forgeman/controlplane/internal/protect"
	"github.com/forgeman/controlplane/internal/worktree"
	"github.com/forgeman/controlplane/pkg/models"
)

// protectedAreaConfigName is the per-project override file a detector
// layers on top of its built-in patterns, keywords, and file types.
const protectedAreaConfigName = ".forgeman.yaml"

// ErrInvalidRequest wraps a CreateTask failure caused by the caller's
// input rather than an unknown project, so api.Surface can distinguish
// the two and report KindInvalidRequest instead of KindNotFound.
var ErrInvalidRequest = errors.New("invalid task request")

// verifyChunks resolves the task's worktree and runs every completed
// chunk's verification command there, if any. Manual-only descriptors
// and chunks with no descriptor at all are skipped; there's nothing to
// run. Failures to resolve a worktree are ignored — there is no
// verification to do without one.
func (o *Orchestrator) verifyChunks(project *models.Project, task *models.Task, plan *models.ImplementationPlan) {
	if o.runner == nil || plan == nil {
		return
	}
	wt, err := o.taskWorktree(project, task)
	if err != nil {
		return
	}
	o.verifyChunksAt(wt.Path, task, plan)
}

// verifyChunksAt runs each completed chunk's verification command, if
// any, in workDir, and logs (without failing the task) any chunk whose
// command exits non-zero — a claimed completion the chunk's own author
// couldn't actually substantiate.
func (o *Orchestrator) verifyChunksAt(workDir string, task *models.Task, plan *models.ImplementationPlan) {
	ctx := context.Background()
	for _, phase := range plan.Phases {
		for _, chunk := range phase.Chunks {
			if !chunk.Done() || chunk.Verification.Command == "" {
				continue
			}
			if _, err := o.runner.RunShell(ctx, workDir, chunk.Verification.Command); err != nil {
				o.logger.Log("chunk %s (task %s) claims completed but verification failed: %v", chunk.ID, task.ID, err)
			}
		}
	}
}

// CreateTask allocates a task in status backlog and launches the spec
// creation agent kind against its description. Fails with ErrInvalidRequest,
// without allocating a task or spec directory, if the description is
// empty or the project has no framework installed; fails plainly if the
// project is unknown.
func (o *Orchestrator) CreateTask(projectID, title, description string) (*models.Task, error) {
	project, err := o.projects.Get(projectID)
	if err != nil {
		return nil, fmt.Errorf("unknown project %s: %w", projectID, err)
	}

	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidRequest)
	}

	if !project.HasFramework() {
		want := filepath.Join(project.Dir, framework.DirName)
		return nil, fmt.Errorf("%w: framework not installed in %s (expected at %s)", ErrInvalidRequest, project.Dir, want)
	}

	now := time.Now()
	task := &models.Task{
		ID:          newTaskID(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      models.TaskStatusBacklog,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	o.mu.Lock()
	o.tasks[task.ID] = task
	o.mu.Unlock()
	o.cacheTask(task)

	prompt := description
	if project.Settings.MemBackend == models.MemoryBackendFile {
		if ls, lerr := o.learningSystem(project); lerr == nil {
			if found, rerr := ls.OnTaskStart(description, nil); rerr == nil && len(found) > 0 {
				ids := make([]string, len(found))
				for i, l := range found {
					ids[i] = l.ID
				}
				o.mu.Lock()
				o.usedLearnings[task.ID] = ids
				o.mu.Unlock()
				prompt = description + "\n\n" + renderLearnings(found)
			} else if rerr != nil {
				o.logger.Log("retrieve learnings for task %s: %v", task.ID, rerr)
			}
		} else {
			o.logger.Log("open learning system for project %s: %v", project.ID, lerr)
		}
	}

	if err := o.spawn(project, task, models.AgentKindSpecCreation, prompt, project.Dir, project.Settings.PreferredModel); err != nil {
		o.logger.Log("spawn spec creation for task %s: %v", task.ID, err)
	}

	return task, nil
}

// renderLearnings formats retrieved learnings as WHEN/DO/RESULT context
// to prepend to a spec-creation prompt.
func renderLearnings(learnings []*learning.Learning) string {
	var b strings.Builder
	b.WriteString("Relevant learnings from past tasks in this repo:\n")
	for _, l := range learnings {
		fmt.Fprintf(&b, "- WHEN %s DO %s RESULT %s\n", l.Condition, l.Action, l.Outcome)
	}
	return b.String()
}

// ListTasks enumerates tasks by scanning the project's spec directories,
// merging in any task records not yet backed by a spec directory (spec
// creation still running).
func (o *Orchestrator) ListTasks(projectID string) ([]*models.Task, error) {
	project, err := o.projects.Get(projectID)
	if err != nil {
		return nil, fmt.Errorf("unknown project %s: %w", projectID, err)
	}

	bySpecID := make(map[string]*models.Task)
	o.mu.Lock()
	for _, t := range o.tasks {
		if t.ProjectID != projectID {
			continue
		}
		bySpecID[t.SpecID] = t
	}
	o.mu.Unlock()

	entries := o.scanSpecs(project)
	seen := make(map[string]bool, len(entries))

	var out []*models.Task
	for _, e := range entries {
		seen[e.specID] = true

		task, known := bySpecID[e.specID]
		if !known {
			task = &models.Task{ID: e.specID, ProjectID: projectID, SpecID: e.specID}
			o.mu.Lock()
			o.tasks[task.ID] = task
			o.mu.Unlock()
		}

		task.SpecID = e.specID
		if task.Title == "" {
			task.Title = e.title
		}
		if e.desc != "" {
			task.Description = e.desc
		}
		task.Plan = e.plan

		verdict, _, verr := readQAVerdict(specDir(project, e.specID))
		if verr != nil {
			o.logger.Log("read qa verdict for %s: %v", e.specID, verr)
		}

		live := o.isLive(task.ID)
		task.Status = Derive(live, verdict, e.plan)
		task.Stuck = task.Status == models.TaskStatusInProgress && !live
		out = append(out, task)
	}

	o.mu.Lock()
	for _, t := range o.tasks {
		if t.ProjectID == projectID && !seen[t.SpecID] && t.SpecID != "" {
			continue
		}
		if t.ProjectID == projectID && t.SpecID == "" {
			out = append(out, t)
		}
	}
	o.mu.Unlock()

	return out, nil
}

// StartTask transitions a task with a valid spec into in_progress by
// spawning the implementation agent kind. Returns an error, leaving the
// task's state untouched, if it is already in flight.
func (o *Orchestrator) StartTask(taskID string, workers int, model string) error {
	task, project, err := o.lookup(taskID)
	if err != nil {
		return err
	}

	if o.isLive(taskID) {
		err := fmt.Errorf("task %s is already in flight", taskID)
		o.publish(Event{Type: EventError, TaskID: taskID, Err: err, Timestamp: time.Now()})
		return err
	}

	if task.SpecID == "" {
		return fmt.Errorf("task %s has no spec yet", taskID)
	}

	wt, err := o.taskWorktree(project, task)
	if err != nil {
		return fmt.Errorf("prepare worktree: %w", err)
	}

	prompt := task.SpecID
	if workers > 1 {
		prompt = fmt.Sprintf("%s --parallel=%d", task.SpecID, workers)
	}

	if model == "" {
		model = project.Settings.PreferredModel
	}

	return o.spawn(project, task, models.AgentKindImplementation, prompt, wt.Path, model)
}

// StopTask terminates the supervised subprocess (if any) and transitions
// the task back to backlog.
func (o *Orchestrator) StopTask(taskID string) error {
	o.killSupervised(taskID)
	o.setStatus(taskID, models.TaskStatusBacklog)
	return nil
}

// ReviewTask records a human reviewer's verdict. Approval writes a QA
// approval artifact and transitions the task to done; rejection writes a
// fix-request artifact, re-spawns QA, and transitions to in_progress.
func (o *Orchestrator) ReviewTask(taskID string, approved bool, feedback string) error {
	task, project, err := o.lookup(taskID)
	if err != nil {
		return err
	}

	dir := specDir(project, task.SpecID)
	if err := writeQAReport(dir, approved, feedback); err != nil {
		return fmt.Errorf("write qa report: %w", err)
	}

	if approved {
		if err := o.mergeTask(project, task); err != nil {
			o.publish(Event{Type: EventError, TaskID: taskID, Err: err, Timestamp: time.Now()})
			o.setStatus(taskID, models.TaskStatusHumanReview)
			return fmt.Errorf("merge %s: %w", taskID, err)
		}
		o.setStatus(taskID, models.TaskStatusDone)
		return nil
	}

	if err := writeQAFixRequest(dir, feedback); err != nil {
		return fmt.Errorf("write qa fix request: %w", err)
	}

	wt, err := o.taskWorktree(project, task)
	if err != nil {
		return fmt.Errorf("prepare worktree: %w", err)
	}

	return o.spawn(project, task, models.AgentKindQA, task.SpecID+" --qa-only", wt.Path, project.Settings.PreferredModel)
}

// UpdateTask sets the in-memory task's title and/or description. A nil
// pointer leaves that field unchanged; an empty string replaces it. The
// change is not written to the state cache or to the spec directory.
func (o *Orchestrator) UpdateTask(taskID string, title, description *string) error {
	task, _, err := o.lookup(taskID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if title != nil {
		task.Title = *title
	}
	if description != nil {
		task.Description = *description
	}
	task.UpdatedAt = time.Now()
	o.mu.Unlock()

	return nil
}

// DeleteTask removes the spec directory, destroys the worktree, and
// forgets the task.
func (o *Orchestrator) DeleteTask(taskID string) error {
	task, project, err := o.lookup(taskID)
	if err != nil {
		return err
	}

	o.killSupervised(taskID)

	if task.SpecID != "" {
		if o.watcher != nil {
			o.watcher.Unwatch(specDir(project, task.SpecID))
		}
		if err := os.RemoveAll(specDir(project, task.SpecID)); err != nil {
			return fmt.Errorf("remove spec directory: %w", err)
		}
	}

	if mgr, werr := o.worktreeManager(project); werr == nil {
		_ = mgr.Discard(task.ID)
	}

	o.mu.Lock()
	delete(o.tasks, taskID)
	o.mu.Unlock()

	if o.cache != nil {
		if err := o.cache.DeleteTask(taskID); err != nil {
			o.logger.Log("delete cached task %s: %v", taskID, err)
		}
	}

	return nil
}

// GetTask returns one task by id, independent of which project owns it.
func (o *Orchestrator) GetTask(taskID string) (*models.Task, error) {
	task, _, err := o.lookup(taskID)
	return task, err
}

func (o *Orchestrator) lookup(taskID string) (*models.Task, *models.Project, error) {
	o.mu.Lock()
	task, ok := o.tasks[taskID]
	o.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown task %s", taskID)
	}

	project, err := o.projects.Get(task.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("unknown project %s: %w", task.ProjectID, err)
	}
	return task, project, nil
}

func (o *Orchestrator) worktreeManager(project *models.Project) (*worktree.Manager, error) {
	return worktree.New("", project.Dir)
}

func (o *Orchestrator) taskWorktree(project *models.Project, task *models.Task) (*models.WorktreeRecord, error) {
	mgr, err := o.worktreeManager(project)
	if err != nil {
		return nil, err
	}

	wt, ok, err := findWorktree(mgr, task.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		return wt, nil
	}

	return mgr.Create(task.ID, "")
}

// findWorktree looks up a task's worktree without creating one.
func findWorktree(mgr *worktree.Manager, taskID string) (*models.WorktreeRecord, bool, error) {
	existing, err := mgr.List()
	if err != nil {
		return nil, false, err
	}
	for _, wt := range existing {
		if wt.TaskID == taskID {
			return wt, true, nil
		}
	}
	return nil, false, nil
}

// WorktreeStatus reports whether taskID has a worktree and, if so, its
// path, branches, and change summary relative to its base branch.
func (o *Orchestrator) WorktreeStatus(taskID string) (*models.WorktreeStatus, error) {
	task, project, err := o.lookup(taskID)
	if err != nil {
		return nil, err
	}

	mgr, err := o.worktreeManager(project)
	if err != nil {
		return nil, err
	}

	wt, ok, err := findWorktree(mgr, task.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.WorktreeStatus{Exists: false}, nil
	}

	return mgr.Summary(task.ID, wt.Path, wt.BaseBranch)
}

// WorktreeDiff returns the diff of a task's worktree against its base
// branch. Fails if the task has no worktree.
func (o *Orchestrator) WorktreeDiff(taskID string) (string, error) {
	task, project, err := o.lookup(taskID)
	if err != nil {
		return "", err
	}

	mgr, err := o.worktreeManager(project)
	if err != nil {
		return "", err
	}

	wt, ok, err := findWorktree(mgr, task.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("task %s has no worktree", taskID)
	}

	return mgr.Diff(wt.Path, wt.BaseBranch)
}

// WorktreeMergePreview classifies the conflicts a merge of taskID's
// worktree branch would produce, without mutating either branch. Fails
// if the task has no worktree.
func (o *Orchestrator) WorktreeMergePreview(taskID string) (*models.MergePreview, error) {
	task, project, err := o.lookup(taskID)
	if err != nil {
		return nil, err
	}

	mgr, err := o.worktreeManager(project)
	if err != nil {
		return nil, err
	}

	wt, ok, err := findWorktree(mgr, task.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("task %s has no worktree", taskID)
	}

	return mgr.MergePreview(task.ID, wt.Path, wt.BaseBranch)
}

// WorktreeMerge executes the merge protocol for taskID's worktree branch.
// With stageOnly=false it commits the merge into the project directory
// and transitions the task to done; with stageOnly=true it stages the
// resolved changes without committing, per worktree.Manager.Merge, and
// leaves the task's status untouched since review of the staged diff is
// still pending. Fails if the task has no worktree or touches a
// protected area.
func (o *Orchestrator) WorktreeMerge(taskID string, stageOnly bool) (worktree.MergeResult, error) {
	task, project, err := o.lookup(taskID)
	if err != nil {
		return worktree.MergeResult{}, err
	}

	mgr, err := o.worktreeManager(project)
	if err != nil {
		return worktree.MergeResult{}, err
	}

	wt, ok, err := findWorktree(mgr, task.ID)
	if err != nil {
		return worktree.MergeResult{}, err
	}
	if !ok {
		return worktree.MergeResult{}, fmt.Errorf("task %s has no worktree", taskID)
	}

	if reason, err := o.checkProtectedAreas(mgr, project, task, wt); err != nil {
		return worktree.MergeResult{}, fmt.Errorf("check protected areas: %w", err)
	} else if reason != "" {
		return worktree.MergeResult{}, fmt.Errorf("touches a protected area (%s); merge needs human review", reason)
	}

	message := fmt.Sprintf("Merge %s: %s", task.ID, task.Title)
	result, err := mgr.Merge(task.ID, wt.BaseBranch, message, stageOnly)
	if err != nil {
		return worktree.MergeResult{}, err
	}
	if result.Merged && !stageOnly {
		o.setStatus(taskID, models.TaskStatusDone)
	}
	return result, nil
}

// WorktreeDiscard removes a task's worktree and its branch. Safe to call
// when the worktree is already gone.
func (o *Orchestrator) WorktreeDiscard(taskID string) error {
	_, project, err := o.lookup(taskID)
	if err != nil {
		return err
	}

	mgr, err := o.worktreeManager(project)
	if err != nil {
		return err
	}

	return mgr.Discard(taskID)
}

// mergeTask merges an approved task's branch into the branch its
// worktree was created from. A conflict that a plain and smart merge
// both give up on is routed to the AI-assisted merge fallback before
// mergeTask reports failure; the caller leaves the task in
// human_review when that happens too.
func (o *Orchestrator) mergeTask(project *models.Project, task *models.Task) error {
	mgr, err := o.worktreeManager(project)
	if err != nil {
		return err
	}

	wt, err := o.taskWorktree(project, task)
	if err != nil {
		return fmt.Errorf("prepare worktree: %w", err)
	}

	if reason, err := o.checkProtectedAreas(mgr, project, task, wt); err != nil {
		return fmt.Errorf("check protected areas: %w", err)
	} else if reason != "" {
		return fmt.Errorf("touches a protected area (%s); merge needs human review", reason)
	}

	message := fmt.Sprintf("Merge %s: %s", task.ID, task.Title)
	result, err := mgr.Merge(task.ID, wt.BaseBranch, message, false)
	if err != nil {
		return err
	}
	if result.Merged {
		return nil
	}
	if !result.NeedsSemanticMerge {
		return fmt.Errorf("merge conflict in %v", result.Conflicts)
	}

	resolver := mergeai.NewResolver(project, o.claude)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := mgr.ResolveConflicts(ctx, resolver, wt.BaseBranch, task.ID, result.Conflicts); err != nil {
		return fmt.Errorf("semantic merge: %w", err)
	}
	return nil
}

// checkProtectedAreas reports the first protected-area reason found
// among a task's changed files, if any, so mergeTask can refuse an
// automatic merge that would otherwise slip sensitive paths straight to
// done. The project's own .forgeman.yaml, if present, extends the
// detector's built-in patterns/keywords/file types.
func (o *Orchestrator) checkProtectedAreas(mgr *worktree.Manager, project *models.Project, task *models.Task, wt *models.WorktreeRecord) (reason string, err error) {
	changed, err := mgr.ChangedFiles(task.ID, wt.Path, wt.BaseBranch)
	if err != nil {
		return "", err
	}

	detector := protect.New()
	_ = detector.LoadConfig(filepath.Join(project.Dir, protectedAreaConfigName))

	for _, path := range changed {
		if protected, why := detector.IsProtectedWithReason(path); protected {
			return fmt.Sprintf("%s: %s", path, why), nil
		}
	}
	return "", nil
}

// learningSystem returns the cached LearningSystem for a project's
// file-backed memory store, opening and migrating it on first use.
func (o *Orchestrator) learningSystem(project *models.Project) (*learning.LearningSystem, error) {
	o.learningMu.Lock()
	defer o.learningMu.Unlock()

	if ls, ok := o.learningSystems[project.Dir]; ok {
		return ls, nil
	}

	ls, err := learning.NewLearningSystem(learning.ProjectDBPath(project.Dir))
	if err != nil {
		return nil, err
	}
	o.learningSystems[project.Dir] = ls
	return ls, nil
}

// captureLearnings analyzes a failed agent-kind invocation's output for
// WHEN-DO-RESULT patterns, checks for learnings already known for the
// same failure, and stores any new suggestions against the project's
// file-backed learning store. A no-op unless the project's memory
// backend is set to file; there is no confirmation step (the Request
// Surface has no per-suggestion review operation), so every suggestion
// the analyzer extracts is confirmed and stored directly, tagged with
// concepts suggested from its own text.
func (o *Orchestrator) captureLearnings(project *models.Project, taskID, output string) {
	if project.Settings.MemBackend != models.MemoryBackendFile {
		return
	}

	ls, err := o.learningSystem(project)
	if err != nil {
		o.logger.Log("open learning system: %v", err)
		return
	}

	capturer := learning.NewCapturer(ls)
	result, err := capturer.CaptureFromFailure(output, output)
	if err != nil {
		o.logger.Log("capture learnings: %v", err)
		return
	}

	ids := make([]string, 0, len(result.Suggestions)+len(result.ExistingLearnings))
	for _, existing := range result.ExistingLearnings {
		ids = append(ids, existing.ID)
	}

	for _, s := range result.Suggestions {
		if s.CAO == nil {
			continue
		}

		var conceptNames []string
		if concepts, cerr := ls.Concepts().SuggestConcepts(s.CAO.Condition + " " + s.CAO.Action); cerr == nil {
			for _, c := range concepts {
				conceptNames = append(conceptNames, c.Name)
			}
		}

		stored, serr := capturer.ConfirmAndStore(s, conceptNames)
		if serr != nil {
			o.logger.Log("store learning: %v", serr)
			continue
		}
		if stored != nil {
			ids = append(ids, stored.ID)
		}
	}

	if len(ids) > 0 {
		o.mu.Lock()
		o.usedLearnings[taskID] = append(o.usedLearnings[taskID], ids...)
		o.mu.Unlock()
	}
}

// recordLearningOutcome reports a finished agent-kind invocation's
// success/failure back to the effectiveness tracker for any learnings
// that were retrieved at task creation or surfaced during capture, so
// future retrieval ranking can favor learnings that actually helped.
func (o *Orchestrator) recordLearningOutcome(project *models.Project, taskID string, success bool) {
	if project.Settings.MemBackend != models.MemoryBackendFile {
		return
	}

	o.mu.Lock()
	used := o.usedLearnings[taskID]
	o.mu.Unlock()
	if len(used) == 0 {
		return
	}

	ls, err := o.learningSystem(project)
	if err != nil {
		o.logger.Log("open learning system: %v", err)
		return
	}

	outcome := "failure"
	if success {
		outcome = "success"
	}

	tracker := learning.NewEffectivenessTracker(ls.Store())
	if err := tracker.RecordOutcome(learning.TaskOutcome{
		TaskID:             taskID,
		Outcome:            outcome,
		VerificationPassed: success,
		LearningsUsed:      used,
		CreatedAt:          time.Now(),
	}); err != nil {
		o.logger.Log("record learning outcome for task %s: %v", taskID, err)
	}
}

// onAgentExit routes a completed agent-kind invocation's outcome back
// into the task's derivable state. Implementation and QA invocations
// drive the five-state machine; spec creation assigns the task's spec
// id on success.
func (o *Orchestrator) onAgentExit(project *models.Project, taskID string, kind models.AgentKind, success bool, output string) {
	o.mu.Lock()
	task := o.tasks[taskID]
	o.mu.Unlock()
	if task == nil {
		return
	}

	switch kind {
	case models.AgentKindSpecCreation:
		o.mu.Lock()
		if task.SpecID == "" {
			task.SpecID = task.ID
		}
		o.mu.Unlock()
		if !success {
			o.publish(Event{Type: EventError, TaskID: taskID, Message: "spec creation failed", Err: fmt.Errorf("%s", output), Timestamp: time.Now()})
		}

	case models.AgentKindImplementation:
		if !success {
			dir := specDir(project, task.SpecID)
			_ = writeQAReport(dir, false, "implementation agent exited with an error:\n"+output)
			o.captureLearnings(project, taskID, output)
		}
		o.recordLearningOutcome(project, taskID, success)

	case models.AgentKindQA:
		if !success {
			dir := specDir(project, task.SpecID)
			_ = writeQAReport(dir, false, "QA agent exited with an error:\n"+output)
			o.captureLearnings(project, taskID, output)
		}
		o.recordLearningOutcome(project, taskID, success)
	}

	plan, _ := readPlan(specDir(project, task.SpecID))
	verdict, _, _ := readQAVerdict(specDir(project, task.SpecID))
	o.mu.Lock()
	task.Plan = plan
	o.mu.Unlock()

	if kind == models.AgentKindImplementation && success {
		o.verifyChunks(project, task, plan)
	}

	o.setStatus(taskID, Derive(false, verdict, plan))
}
