package pipeline

import (
	"fmt"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

// ComputeReadiness derives the composite evaluation-readiness signal from
// the three prerequisite stages. The assignment stage is the hard gate;
// rubric and solution are optional, so not_applicable counts as settled.
func ComputeReadiness(a *model.Assignment) api.Readiness {
	if api.StringToProcessingStatus(a.AssignmentStage.Status) != api.ProcessingStatusCompleted {
		return api.ReadinessNotReady
	}
	if stageSettled(a.RubricStage) && stageSettled(a.SolutionStage) {
		return api.ReadinessReady
	}
	return api.ReadinessPartial
}

// Outstanding names the prerequisite stages still in the way of
// evaluation, with their current status, for actionable errors.
func Outstanding(a *model.Assignment) []string {
	outstanding := []string{}
	stages := []struct {
		name   api.StageType
		record model.StageRecord
	}{
		{api.StageAssignment, a.AssignmentStage},
		{api.StageRubric, a.RubricStage},
		{api.StageSolution, a.SolutionStage},
	}
	for _, st := range stages {
		if !stageSettled(st.record) {
			outstanding = append(outstanding, fmt.Sprintf("%s (%s)", st.name, st.record.Status))
		}
	}
	return outstanding
}

func stageSettled(record model.StageRecord) bool {
	switch api.StringToProcessingStatus(record.Status) {
	case api.ProcessingStatusCompleted, api.ProcessingStatusNotApplicable:
		return true
	default:
		return false
	}
}
