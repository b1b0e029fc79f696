// Package orchestrator owns task records, the five-state task lifecycle,
// and subprocess supervision for the five agent-kind invocations
// (spec creation, implementation, QA, roadmap, ideation).
//
// Status is never stored: Derive recomputes it from whichever supervised
// subprocess is live, the spec directory's artifacts, and the
// implementation plan's chunk statuses, in that precedence order.
package orchestrator
