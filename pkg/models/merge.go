package models

// Severity classifies how risky a merge conflict is to resolve
// automatically.
type Severity string

const (
	// SeverityNone indicates no conflict.
	SeverityNone Severity = "none"
	// SeverityLow indicates a conflict confined to a non-overlapping
	// hunk in a non-critical file, safely auto-mergeable.
	SeverityLow Severity = "low"
	// SeverityMedium indicates overlapping hunks in a non-critical file,
	// a non-overlapping conflict in a critical file, or a conflict in a
	// lock file.
	SeverityMedium Severity = "medium"
	// SeverityHigh indicates overlapping hunks in a critical file.
	SeverityHigh Severity = "high"
	// SeverityCritical indicates a conflict the orchestrator will not
	// attempt to resolve automatically (a deletion/modification clash,
	// or a conflict spanning more than one critical file).
	SeverityCritical Severity = "critical"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// AutoResolvable reports whether the merge protocol should attempt an
// automatic resolution for a conflict of this severity, rather than
// falling straight through to the AI-assisted merge agent.
func (s Severity) AutoResolvable() bool {
	return s == SeverityLow || s == SeverityMedium
}

// Conflict describes one file's merge conflict.
type Conflict struct {
	// Path is the file path relative to the repository root.
	Path string `json:"path"`
	// Severity is the classified risk level.
	Severity Severity `json:"severity"`
	// Critical reports whether the file matched a critical-file pattern
	// (package manifests, lock files, CI config).
	Critical bool `json:"critical"`
	// OverlappingHunks reports whether both sides changed the same line
	// range.
	OverlappingHunks bool `json:"overlapping_hunks"`
}

// DivergenceDescriptor summarizes how far a task's branch has diverged
// from its base, ahead of a merge attempt.
type DivergenceDescriptor struct {
	// AheadCommits counts commits on the task branch not on the base.
	AheadCommits int `json:"ahead_commits"`
	// BehindCommits counts commits on the base not on the task branch.
	BehindCommits int `json:"behind_commits"`
	// ChangedFiles lists files touched by the task branch since the
	// merge base.
	ChangedFiles []string `json:"changed_files"`
}

// MergePreview is the result of a dry-run merge used to surface conflicts
// before committing to one.
type MergePreview struct {
	// TaskID is the task whose worktree branch is being previewed.
	TaskID string `json:"task_id"`
	// Clean reports whether the merge would apply without conflicts.
	Clean bool `json:"clean"`
	// Conflicts lists the conflicting files, empty when Clean is true.
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// Divergence describes how the branches differ.
	Divergence DivergenceDescriptor `json:"divergence"`
}

// WorstSeverity returns the highest-risk severity among the preview's
// conflicts, or SeverityNone if there are none.
func (m *MergePreview) WorstSeverity() Severity {
	order := map[Severity]int{
		SeverityNone:     0,
		SeverityLow:      1,
		SeverityMedium:   2,
		SeverityHigh:     3,
		SeverityCritical: 4,
	}
	worst := SeverityNone
	for _, c := range m.Conflicts {
		if order[c.Severity] > order[worst] {
			worst = c.Severity
		}
	}
	return worst
}
