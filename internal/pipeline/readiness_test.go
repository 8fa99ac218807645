package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

func assignmentWithStages(assignment, rubric, solution api.ProcessingStatus) *model.Assignment {
	return &model.Assignment{
		AssignmentStage: model.StageRecord{Status: string(assignment)},
		RubricStage:     model.StageRecord{Status: string(rubric)},
		SolutionStage:   model.StageRecord{Status: string(solution)},
	}
}

func TestComputeReadiness(t *testing.T) {
	tests := []struct {
		name       string
		assignment api.ProcessingStatus
		rubric     api.ProcessingStatus
		solution   api.ProcessingStatus
		expected   api.Readiness
	}{
		{"all completed", api.ProcessingStatusCompleted, api.ProcessingStatusCompleted, api.ProcessingStatusCompleted, api.ReadinessReady},
		{"optional stages not applicable", api.ProcessingStatusCompleted, api.ProcessingStatusNotApplicable, api.ProcessingStatusNotApplicable, api.ReadinessReady},
		{"mixed settled states", api.ProcessingStatusCompleted, api.ProcessingStatusCompleted, api.ProcessingStatusNotApplicable, api.ReadinessReady},
		{"rubric still running", api.ProcessingStatusCompleted, api.ProcessingStatusProcessing, api.ProcessingStatusCompleted, api.ReadinessPartial},
		{"rubric failed", api.ProcessingStatusCompleted, api.ProcessingStatusFailed, api.ProcessingStatusCompleted, api.ReadinessPartial},
		{"solution pending", api.ProcessingStatusCompleted, api.ProcessingStatusCompleted, api.ProcessingStatusPending, api.ReadinessPartial},
		{"assignment pending", api.ProcessingStatusPending, api.ProcessingStatusCompleted, api.ProcessingStatusCompleted, api.ReadinessNotReady},
		{"assignment processing", api.ProcessingStatusProcessing, api.ProcessingStatusNotApplicable, api.ProcessingStatusNotApplicable, api.ReadinessNotReady},
		{"assignment failed", api.ProcessingStatusFailed, api.ProcessingStatusCompleted, api.ProcessingStatusCompleted, api.ReadinessNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assignmentWithStages(tt.assignment, tt.rubric, tt.solution)
			assert.Equal(t, tt.expected, ComputeReadiness(a))
		})
	}
}
