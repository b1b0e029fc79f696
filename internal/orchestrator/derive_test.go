package orchestrator

import (
	"testing"

	"github.com/forgeman/controlplane/pkg/models"
)

func completePlan() *models.ImplementationPlan {
	return &models.ImplementationPlan{Phases: []models.Phase{
		{ID: "p1", Chunks: []models.Chunk{{ID: "c1", Status: models.ChunkStatusCompleted}}},
	}}
}

func startedPlan() *models.ImplementationPlan {
	return &models.ImplementationPlan{Phases: []models.Phase{
		{ID: "p1", Chunks: []models.Chunk{{ID: "c1", Status: models.ChunkStatusInProgress}}},
	}}
}

func pendingPlan() *models.ImplementationPlan {
	return &models.ImplementationPlan{Phases: []models.Phase{
		{ID: "p1", Chunks: []models.Chunk{{ID: "c1", Status: models.ChunkStatusPending}}},
	}}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		live    bool
		verdict qaVerdict
		plan    *models.ImplementationPlan
		want    models.TaskStatus
	}{
		{"live subprocess wins regardless of artifacts", true, qaVerdictApproved, completePlan(), models.TaskStatusInProgress},
		{"approved verdict with no live process", false, qaVerdictApproved, completePlan(), models.TaskStatusDone},
		{"rejected verdict with no live process", false, qaVerdictRejected, completePlan(), models.TaskStatusHumanReview},
		{"no verdict, plan complete", false, qaVerdictNone, completePlan(), models.TaskStatusAIReview},
		{"no verdict, plan started but incomplete", false, qaVerdictNone, startedPlan(), models.TaskStatusInProgress},
		{"no verdict, plan only pending", false, qaVerdictNone, pendingPlan(), models.TaskStatusBacklog},
		{"no verdict, no plan at all", false, qaVerdictNone, nil, models.TaskStatusBacklog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.live, tt.verdict, tt.plan); got != tt.want {
				t.Errorf("Derive() = %v, want %v", got, tt.want)
			}
		})
	}
}
