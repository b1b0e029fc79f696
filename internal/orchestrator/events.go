package orchestrator

import (
	"time"

	"github.com/forgeman/controlplane/pkg/models"
)

// EventType classifies an orchestrator event.
type EventType string

const (
	// EventTaskStatus indicates a task's derived status changed.
	EventTaskStatus EventType = "task.status"
	// EventTaskProgress carries a progress snapshot from a supervised
	// agent-kind subprocess.
	EventTaskProgress EventType = "task.progress"
	// EventTaskStuck indicates a task was found in_progress with no live
	// subprocess at orchestrator startup.
	EventTaskStuck EventType = "task.stuck"
	// EventError reports a spawn failure or other operation error that
	// leaves the task in its prior state.
	EventError EventType = "error"
)

// Event is emitted by the orchestrator for every task status change,
// progress update, and error.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the related task's identifier.
	TaskID string
	// Status is the task's new status, set on EventTaskStatus.
	Status string
	// Progress is the phase, percent and message snapshot, set on
	// EventTaskProgress.
	Progress models.Progress
	// Message provides additional human-readable context.
	Message string
	// Err holds error details for EventError.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
