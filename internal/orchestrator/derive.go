package orchestrator

import "github.com/forgeman/controlplane/pkg/models"

// qaVerdict is the result recorded in a task's spec directory once the QA
// agent kind (or a human review) has rendered a verdict.
type qaVerdict int

const (
	qaVerdictNone qaVerdict = iota
	qaVerdictApproved
	qaVerdictRejected
)

// Derive computes a task's status from, in precedence order: (1) whether
// a supervised subprocess is live; (2) whether a QA verdict has been
// recorded; (3) whether the implementation plan is complete; (4) whether
// any chunk has started; otherwise backlog.
func Derive(live bool, verdict qaVerdict, plan *models.ImplementationPlan) models.TaskStatus {
	if live {
		return models.TaskStatusInProgress
	}

	switch verdict {
	case qaVerdictApproved:
		return models.TaskStatusDone
	case qaVerdictRejected:
		return models.TaskStatusHumanReview
	}

	if plan.Complete() {
		return models.TaskStatusAIReview
	}

	if plan.AnyStarted() {
		return models.TaskStatusInProgress
	}

	return models.TaskStatusBacklog
}
