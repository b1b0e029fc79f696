package models

// AgentKind identifies which of the five supervised agent invocations a
// subprocess corresponds to.
type AgentKind string

const (
	// AgentKindSpecCreation turns a task's description into a spec
	// directory containing an implementation plan.
	AgentKindSpecCreation AgentKind = "spec_creation"
	// AgentKindImplementation executes the plan's chunks inside the
	// task's worktree.
	AgentKindImplementation AgentKind = "implementation"
	// AgentKindQA reviews implementation output and writes a verdict
	// artifact.
	AgentKindQA AgentKind = "qa"
	// AgentKindRoadmap generates or refreshes a project-level roadmap.
	AgentKindRoadmap AgentKind = "roadmap"
	// AgentKindIdeation proposes new candidate tasks from project state.
	AgentKindIdeation AgentKind = "ideation"
)

// Valid returns true if the kind is a known value.
func (k AgentKind) Valid() bool {
	switch k {
	case AgentKindSpecCreation, AgentKindImplementation, AgentKindQA, AgentKindRoadmap, AgentKindIdeation:
		return true
	default:
		return false
	}
}
