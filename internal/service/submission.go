package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/pipeline"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

type SubmissionCreate struct {
	AssignmentID uuid.UUID
	StudentID    string
	StudentName  string
	File         []byte
	FileMIME     string
}

type SubmissionService struct {
	store store.Store
	queue Queuer
	log   *zap.SugaredLogger
}

func NewSubmissionService(s store.Store, queue Queuer) *SubmissionService {
	return &SubmissionService{store: s, queue: queue, log: zap.S().Named("submission_service")}
}

// Create persists a submission under an existing assignment and queues
// its processing. Evaluation is queued separately once the assignment's
// prerequisite stages settle.
func (s *SubmissionService) Create(ctx context.Context, create SubmissionCreate) (*model.Submission, error) {
	if _, err := s.store.Assignment().Get(ctx, create.AssignmentID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrAssignmentNotFound(create.AssignmentID)
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	submission := model.Submission{
		ID:           uuid.New(),
		AssignmentID: create.AssignmentID,
		StudentID:    create.StudentID,
		StudentName:  create.StudentName,
		File:         create.File,
		FileMIME:     create.FileMIME,

		SubmissionStage: pendingStage(),
		EvaluationStage: pendingStage(),
	}

	created, err := s.store.Submission().Create(ctx, submission)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	if _, _, err := s.queue.Enqueue(ctx, pipeline.SubmissionArgs{SubmissionID: created.ID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue submission processing: %w", err)
	}
	s.log.Infof("submission %s created and queued under assignment %s", created.ID, created.AssignmentID)
	return created, nil
}

func (s *SubmissionService) Get(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	submission, err := s.store.Submission().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrSubmissionNotFound(id)
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return submission, nil
}

func (s *SubmissionService) List(ctx context.Context, assignmentID uuid.UUID) (model.SubmissionList, error) {
	submissions, err := s.store.Submission().ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

func (s *SubmissionService) GetStatus(ctx context.Context, id uuid.UUID) (*api.StatusReply, error) {
	submission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	reply := &api.StatusReply{
		DocumentID: submission.ID,
		Stages: map[api.StageType]api.StageStatus{
			api.StageSubmission: stageStatus(submission.SubmissionStage),
			api.StageEvaluation: stageStatus(submission.EvaluationStage),
		},
	}
	// Readiness belongs to the owning assignment; mirror it here so one
	// status call answers "can this be evaluated".
	assignment, err := s.store.Assignment().Get(ctx, submission.AssignmentID)
	if err == nil {
		reply.Readiness = pipeline.ComputeReadiness(assignment)
	}
	if submission.Warnings != nil {
		reply.Warnings = submission.Warnings.Data
	}
	return reply, nil
}
