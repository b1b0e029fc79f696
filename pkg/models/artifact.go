package models

import "time"

// ArtifactKind identifies the kind of file the Artifact Watcher observed
// changing inside a spec directory.
type ArtifactKind string

const (
	// ArtifactKindPlan is the implementation plan file
	// (implementation_plan.json).
	ArtifactKindPlan ArtifactKind = "plan"
	// ArtifactKindQAReport is a QA agent's review verdict.
	ArtifactKindQAReport ArtifactKind = "qa_report"
	// ArtifactKindQAFixRequest is QA's list of requested fixes after a
	// rejection.
	ArtifactKindQAFixRequest ArtifactKind = "qa_fix_request"
	// ArtifactKindTaskLog is an appended-to log file from a supervised
	// agent subprocess.
	ArtifactKindTaskLog ArtifactKind = "task_logs"
	// ArtifactKindMemoryEpisode is a learning episode file.
	ArtifactKindMemoryEpisode ArtifactKind = "memory_episode"
	// ArtifactKindProjectIndex is the project-level roadmap/index file.
	ArtifactKindProjectIndex ArtifactKind = "project_index"
)

// Valid returns true if the kind is a known value.
func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactKindPlan, ArtifactKindQAReport, ArtifactKindQAFixRequest,
		ArtifactKindTaskLog, ArtifactKindMemoryEpisode, ArtifactKindProjectIndex:
		return true
	default:
		return false
	}
}

// ArtifactEvent is emitted by the Artifact Watcher when a debounced file
// change settles.
type ArtifactEvent struct {
	// ProjectID is the owning project.
	ProjectID string `json:"project_id"`
	// SpecID is the spec directory the artifact belongs to, empty for
	// project-level artifacts such as the roadmap index.
	SpecID string `json:"spec_id,omitempty"`
	// Kind identifies the artifact type.
	Kind ArtifactKind `json:"kind"`
	// Path is the absolute path to the changed file.
	Path string `json:"path"`
	// Payload is the parsed artifact content, shaped per Kind.
	Payload any `json:"payload,omitempty"`
	// ObservedAt is when the debounce window settled and the event was
	// emitted.
	ObservedAt time.Time `json:"observed_at"`
}
