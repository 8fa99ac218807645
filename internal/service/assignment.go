package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/pipeline"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

// Queuer abstracts the durable job queue so services can be exercised
// without a database.
type Queuer interface {
	Enqueue(ctx context.Context, args river.JobArgs) (int64, bool, error)
}

type AssignmentCreate struct {
	Title        string
	TotalPoints  *float64
	BriefFile    []byte
	BriefMIME    string
	RubricFile   []byte
	RubricMIME   string
	SolutionFile []byte
	SolutionMIME string
}

type AssignmentService struct {
	store store.Store
	queue Queuer
	log   *zap.SugaredLogger
}

func NewAssignmentService(s store.Store, queue Queuer) *AssignmentService {
	return &AssignmentService{store: s, queue: queue, log: zap.S().Named("assignment_service")}
}

// Create persists a new assignment with every stage pending and queues
// the assignment processing job.
func (s *AssignmentService) Create(ctx context.Context, create AssignmentCreate) (*model.Assignment, error) {
	assignment := model.Assignment{
		ID:           uuid.New(),
		Title:        create.Title,
		TotalPoints:  create.TotalPoints,
		BriefFile:    create.BriefFile,
		BriefMIME:    create.BriefMIME,
		RubricFile:   create.RubricFile,
		RubricMIME:   create.RubricMIME,
		SolutionFile: create.SolutionFile,
		SolutionMIME: create.SolutionMIME,

		AssignmentStage:    pendingStage(),
		RubricStage:        pendingStage(),
		SolutionStage:      pendingStage(),
		OrchestrationStage: pendingStage(),
		Readiness:          string(api.ReadinessNotReady),
	}

	created, err := s.store.Assignment().Create(ctx, assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	if _, _, err := s.queue.Enqueue(ctx, pipeline.AssignmentArgs{AssignmentID: created.ID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue assignment processing: %w", err)
	}
	// Solution processing reads only its own document and a supplied rubric
	// file needs no brief text either, so both stages enter their queues
	// immediately rather than waiting behind assignment processing. Only
	// rubric derivation from the brief is deferred until the brief exists.
	if _, _, err := s.queue.Enqueue(ctx, pipeline.SolutionArgs{AssignmentID: created.ID}); err != nil {
		return nil, fmt.Errorf("failed to enqueue solution processing: %w", err)
	}
	if len(created.RubricFile) > 0 {
		if _, _, err := s.queue.Enqueue(ctx, pipeline.RubricArgs{AssignmentID: created.ID}); err != nil {
			return nil, fmt.Errorf("failed to enqueue rubric processing: %w", err)
		}
	}
	s.log.Infof("assignment %s created and queued", created.ID)
	return created, nil
}

func (s *AssignmentService) Get(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	assignment, err := s.store.Assignment().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrAssignmentNotFound(id)
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return assignment, nil
}

func (s *AssignmentService) List(ctx context.Context) (model.AssignmentList, error) {
	assignments, err := s.store.Assignment().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return assignments, nil
}

// GetStatus reports every stage's state plus the composite readiness:
// the richest partial information available, never just a boolean.
func (s *AssignmentService) GetStatus(ctx context.Context, id uuid.UUID) (*api.StatusReply, error) {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	reply := &api.StatusReply{
		DocumentID: assignment.ID,
		Stages: map[api.StageType]api.StageStatus{
			api.StageAssignment:    stageStatus(assignment.AssignmentStage),
			api.StageRubric:        stageStatus(assignment.RubricStage),
			api.StageSolution:      stageStatus(assignment.SolutionStage),
			api.StageOrchestration: stageStatus(assignment.OrchestrationStage),
		},
		Readiness: api.StringToReadiness(assignment.Readiness),
	}
	if assignment.ValidationWarnings != nil {
		reply.Warnings = assignment.ValidationWarnings.Data
	}
	return reply, nil
}

// RequeueStage resets a failed assignment-owned stage to pending and
// queues it again. Any other starting status is rejected.
func (s *AssignmentService) RequeueStage(ctx context.Context, id uuid.UUID, stage api.StageType) error {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var record model.StageRecord
	var args river.JobArgs
	switch stage {
	case api.StageAssignment:
		record, args = assignment.AssignmentStage, pipeline.AssignmentArgs{AssignmentID: id}
	case api.StageRubric:
		record, args = assignment.RubricStage, pipeline.RubricArgs{AssignmentID: id}
	case api.StageSolution:
		record, args = assignment.SolutionStage, pipeline.SolutionArgs{AssignmentID: id}
	case api.StageOrchestration:
		record, args = assignment.OrchestrationStage, pipeline.OrchestrationArgs{AssignmentID: id}
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
	if err := s.store.Assignment().UpdateStage(ctx, id, stage, reset); err != nil {
		return fmt.Errorf("failed to reset stage %s: %w", stage, err)
	}

	if _, _, err := s.queue.Enqueue(ctx, args); err != nil {
		return fmt.Errorf("failed to requeue stage %s: %w", stage, err)
	}
	s.log.Infof("assignment %s stage %s requeued", id, stage)
	return nil
}

// Orchestrate queues the manual cross-validation run. It is rejected
// while the assignment stage itself has not completed.
func (s *AssignmentService) Orchestrate(ctx context.Context, id uuid.UUID) (int64, error) {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if pipeline.ComputeReadiness(assignment) == api.ReadinessNotReady {
		return 0, NewErrDependencyNotReady(id, pipeline.Outstanding(assignment))
	}

	jobID, _, err := s.queue.Enqueue(ctx, pipeline.OrchestrationArgs{AssignmentID: id})
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue orchestration: %w", err)
	}
	return jobID, nil
}

func pendingStage() model.StageRecord {
	return model.StageRecord{Status: string(api.ProcessingStatusPending)}
}

func stageStatus(record model.StageRecord) api.StageStatus {
	status := api.StageStatus{
		Status:      api.StringToProcessingStatus(record.Status),
		StartedAt:   record.StartedAt,
		CompletedAt: record.CompletedAt,
	}
	if record.Error != nil {
		status.Error = *record.Error
	}
	return status
}

