package models

import "time"

// TaskStatus represents the derived state of a task. Status is never
// persisted as a source of truth; it is computed from subprocess liveness
// and the task's artifacts (see the orchestrator package).
type TaskStatus string

const (
	// TaskStatusBacklog indicates the task has no in-flight work.
	TaskStatusBacklog TaskStatus = "backlog"
	// TaskStatusInProgress indicates a supervised agent is running, or
	// the implementation plan shows incomplete chunks.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusAIReview indicates implementation finished and QA has not
	// yet recorded a verdict.
	TaskStatusAIReview TaskStatus = "ai_review"
	// TaskStatusHumanReview indicates QA rejected the work, or the
	// implementation subprocess exited non-zero.
	TaskStatusHumanReview TaskStatus = "human_review"
	// TaskStatusDone indicates the task was approved and merged or staged.
	TaskStatusDone TaskStatus = "done"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusBacklog, TaskStatusInProgress, TaskStatusAIReview, TaskStatusHumanReview, TaskStatusDone:
		return true
	default:
		return false
	}
}

// Active reports whether the status is in_progress. ai_review and
// human_review are not counted as active.
func (s TaskStatus) Active() bool {
	return s == TaskStatusInProgress
}

// Progress reports an agent's current execution phase.
type Progress struct {
	// Phase names where in the agent's workflow it currently is (e.g.
	// "coding", "testing", "roadmap_generated").
	Phase string `json:"phase"`
	// Percent is the estimated completion percentage, 0-100.
	Percent int `json:"percent"`
	// Message is a short (<=200 char) human-readable status line.
	Message string `json:"message"`
}

// maxLogLines bounds the in-memory log stream kept per task.
const maxLogLines = 2000

// Task represents a unit of autonomous coding work tracked by the
// orchestrator. Its Status field is a cache of the last-derived status;
// callers needing a guaranteed-fresh value should use the orchestrator's
// task.list operation, which recomputes status from live state.
type Task struct {
	// ID is the internal task identifier, stable for the task's lifetime.
	ID string `json:"id"`
	// ProjectID is the owning project's identifier.
	ProjectID string `json:"project_id"`
	// SpecID is the on-disk spec directory name. Equal to ID once the
	// spec directory exists; may lag ID briefly while spec creation runs.
	SpecID string `json:"spec_id"`
	// Title is the short task description.
	Title string `json:"title"`
	// Description is the free-form task description.
	Description string `json:"description"`
	// Status is the last-known derived status.
	Status TaskStatus `json:"status"`
	// Plan is the implementation plan parsed from the spec directory, if
	// one has been written yet.
	Plan *ImplementationPlan `json:"plan,omitempty"`
	// LogLines accumulates stdout/stderr lines from supervised agent
	// subprocesses, most recent last.
	LogLines []string `json:"log_lines,omitempty"`
	// Progress is the most recent progress update for the active agent.
	Progress Progress `json:"progress"`
	// Stuck indicates the task was found with status in_progress but no
	// live subprocess at orchestrator startup.
	Stuck bool `json:"stuck,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task record was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// AppendLog records a log line, evicting the oldest line once the bound
// is reached.
func (t *Task) AppendLog(line string) {
	t.LogLines = append(t.LogLines, line)
	if len(t.LogLines) > maxLogLines {
		t.LogLines = t.LogLines[len(t.LogLines)-maxLogLines:]
	}
}
