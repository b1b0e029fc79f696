package models

// VerificationDescriptor names how a chunk's completion is checked (a test
// command, a manual review note, or a reference to an external QA gate).
type VerificationDescriptor struct {
	// Command is a shell command that should exit zero when the chunk is
	// satisfied (e.g. "go test ./..."). Empty if verification is manual.
	Command string `json:"command,omitempty"`
	// Manual is a human-readable check to perform when Command is empty.
	Manual string `json:"manual,omitempty"`
}

// ChunkStatus is the state of a single chunk of work within a phase.
type ChunkStatus string

const (
	ChunkStatusPending    ChunkStatus = "pending"
	ChunkStatusInProgress ChunkStatus = "in_progress"
	ChunkStatusCompleted  ChunkStatus = "completed"
	ChunkStatusFailed     ChunkStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s ChunkStatus) Valid() bool {
	switch s {
	case ChunkStatusPending, ChunkStatusInProgress, ChunkStatusCompleted, ChunkStatusFailed:
		return true
	default:
		return false
	}
}

// Chunk is the smallest unit of work tracked inside a phase. A task's
// derived in_progress/done status is computed from the completion of its
// chunks across all phases.
type Chunk struct {
	// ID is unique within the owning plan.
	ID string `json:"id"`
	// Title is a short description of the unit of work.
	Title string `json:"title"`
	// Status reports the chunk's progress.
	Status ChunkStatus `json:"status"`
	// Verification describes how completion is checked.
	Verification VerificationDescriptor `json:"verification,omitempty"`
}

// Done reports whether the chunk has been completed.
func (c Chunk) Done() bool {
	return c.Status == ChunkStatusCompleted
}

// Started reports whether the chunk has moved past pending.
func (c Chunk) Started() bool {
	return c.Status == ChunkStatusInProgress || c.Status == ChunkStatusCompleted || c.Status == ChunkStatusFailed
}

// Phase groups chunks that should be completed in order before the next
// phase starts.
type Phase struct {
	// ID is unique within the owning plan.
	ID string `json:"id"`
	// Title is a short description of the phase.
	Title string `json:"title"`
	// Chunks are the ordered units of work within the phase.
	Chunks []Chunk `json:"chunks"`
}

// ImplementationPlan is the roadmap a spec-creation agent writes for a task
// before implementation work begins. It is parsed from the spec
// directory's plan artifact (see the framework and orchestrator packages)
// and is never mutated in place by the control plane; agents rewrite the
// artifact, and the orchestrator re-parses it.
type ImplementationPlan struct {
	// Phases are the ordered phases making up the plan.
	Phases []Phase `json:"phases"`
}

// TotalChunks returns the number of chunks across all phases.
func (p *ImplementationPlan) TotalChunks() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Chunks)
	}
	return n
}

// DoneChunks returns the number of completed chunks across all phases.
func (p *ImplementationPlan) DoneChunks() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, ph := range p.Phases {
		for _, c := range ph.Chunks {
			if c.Done() {
				n++
			}
		}
	}
	return n
}

// AnyStarted reports whether any chunk has moved past pending.
func (p *ImplementationPlan) AnyStarted() bool {
	if p == nil {
		return false
	}
	for _, ph := range p.Phases {
		for _, c := range ph.Chunks {
			if c.Started() {
				return true
			}
		}
	}
	return false
}

// Complete reports whether every chunk in every phase is done. A plan with
// zero chunks is not considered complete, since it means no plan has been
// written yet in any meaningful sense.
func (p *ImplementationPlan) Complete() bool {
	total := p.TotalChunks()
	return total > 0 && p.DoneChunks() == total
}
