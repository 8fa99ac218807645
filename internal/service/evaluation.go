package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/pipeline"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

// Evaluate queues the grading run for one submission. The dependency
// check is synchronous: a submission whose assignment is not ready is
// rejected here with the outstanding stages named, rather than failing
// later inside the pipeline.
func (s *SubmissionService) Evaluate(ctx context.Context, id uuid.UUID) (int64, error) {
	submission, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	assignment, err := s.store.Assignment().Get(ctx, submission.AssignmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to get assignment: %w", err)
	}
	if pipeline.ComputeReadiness(assignment) == api.ReadinessNotReady {
		return 0, NewErrDependencyNotReady(assignment.ID, pipeline.Outstanding(assignment))
	}

	jobID, duplicate, err := s.queue.Enqueue(ctx, pipeline.EvaluationArgs{SubmissionID: id})
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue evaluation: %w", err)
	}
	if duplicate {
		s.log.Infof("evaluation for submission %s already queued", id)
	}
	return jobID, nil
}

// RequeueStage resets a failed submission-owned stage to pending and
// queues it again.
func (s *SubmissionService) RequeueStage(ctx context.Context, id uuid.UUID, stage api.StageType) error {
	submission, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var record model.StageRecord
	var args river.JobArgs
	switch stage {
	case api.StageSubmission:
		record, args = submission.SubmissionStage, pipeline.SubmissionArgs{SubmissionID: id}
	case api.StageEvaluation:
		record, args = submission.EvaluationStage, pipeline.EvaluationArgs{SubmissionID: id}
	default:
		return NewErrUnknownStage(string(stage))
	}

	if api.StringToProcessingStatus(record.Status) != api.ProcessingStatusFailed {
		return NewErrIllegalRequeue(string(stage), record.Status)
	}
	reset, err := pipeline.Transition(record, api.ProcessingStatusPending, nil)
	if err != nil {
		return err
	}
	if err := s.store.Submission().UpdateStage(ctx, id, stage, reset); err != nil {
		return fmt.Errorf("failed to reset stage %s: %w", stage, err)
	}

	if _, _, err := s.queue.Enqueue(ctx, args); err != nil {
		return fmt.Errorf("failed to requeue stage %s: %w", stage, err)
	}
	s.log.Infof("submission %s stage %s requeued", id, stage)
	return nil
}
