// Package merge provides conflict presentation types shared by
// ConflictPresenter and callers outside the package.
package merge

// ConflictRegion represents a specific conflicting region in a file.
type ConflictRegion struct {
	// StartLine is the starting line number of the conflict.
	StartLine int
	// EndLine is the ending line number of the conflict.
	EndLine int
	// SessionContent is the content from the session branch.
	SessionContent string
	// AgentContent is the content from the agent branch.
	AgentContent string
	// Context provides surrounding lines for context.
	Context string
}

// ConflictPresentation contains all information needed to present a conflict.
type ConflictPresentation struct {
	// BaseContent is the content from the merge base (common ancestor).
	BaseContent string
	// SessionContent is the content from the session branch.
	SessionContent string
	// AgentContent is the content from the agent branch.
	AgentContent string
	// ConflictRegions identifies specific conflicting regions.
	ConflictRegions []ConflictRegion
	// FilePath is the path to the conflicting file.
	FilePath string
	// TaskID is the ID of the task that created this conflict.
	TaskID string
	// AgentID is the ID of the agent that created this conflict.
	AgentID string
	// SessionBranch is the name of the session branch.
	SessionBranch string
	// AgentBranch is the name of the agent branch.
	AgentBranch string
	// AttemptNumber is which merge attempt this is (1-based).
	AttemptNumber int
}
