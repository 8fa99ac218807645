package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/grading"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

// SubmissionUpdate lists the optional fields an update may set; nil
// fields are left untouched.
type SubmissionUpdate struct {
	SubmissionText *string
	RawEvaluation  *grading.EvaluationResult
	ScoreTree      *grading.ScoreTree
	TotalScore     *float64
	TotalPossible  *float64
	Feedback       *string
	Warnings       []string
}

type Submission interface {
	InitialMigration() error
	Create(ctx context.Context, submission model.Submission) (*model.Submission, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) (model.SubmissionList, error)
	Update(ctx context.Context, id uuid.UUID, update SubmissionUpdate) (*model.Submission, error)
	UpdateStage(ctx context.Context, id uuid.UUID, stage api.StageType, record model.StageRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SubmissionStore struct {
	db *gorm.DB
}

// Make sure we conform to Submission interface
var _ Submission = (*SubmissionStore)(nil)

func NewSubmissionStore(db *gorm.DB) Submission {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Submission{})
}

func (s *SubmissionStore) Create(ctx context.Context, submission model.Submission) (*model.Submission, error) {
	result := s.getDB(ctx).Clauses(clause.Returning{}).Create(&submission)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &submission, nil
}

func (s *SubmissionStore) Get(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	var submission model.Submission
	result := s.getDB(ctx).First(&submission, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &submission, nil
}

func (s *SubmissionStore) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) (model.SubmissionList, error) {
	var submissions model.SubmissionList
	result := s.getDB(ctx).Model(&submissions).
		Where("assignment_id = ?", assignmentID).
		Order("created_at").
		Find(&submissions)
	if result.Error != nil {
		return nil, result.Error
	}
	return submissions, nil
}

func (s *SubmissionStore) Update(ctx context.Context, id uuid.UUID, update SubmissionUpdate) (*model.Submission, error) {
	submission := model.Submission{ID: id}
	selectFields := []string{}
	if update.SubmissionText != nil {
		submission.SubmissionText = *update.SubmissionText
		selectFields = append(selectFields, "submission_text")
	}
	if update.RawEvaluation != nil {
		submission.RawEvaluation = model.MakeJSONField(*update.RawEvaluation)
		selectFields = append(selectFields, "raw_evaluation")
	}
	if update.ScoreTree != nil {
		submission.ScoreTree = model.MakeJSONField(*update.ScoreTree)
		selectFields = append(selectFields, "score_tree")
	}
	if update.TotalScore != nil {
		submission.TotalScore = update.TotalScore
		selectFields = append(selectFields, "total_score")
	}
	if update.TotalPossible != nil {
		submission.TotalPossible = update.TotalPossible
		selectFields = append(selectFields, "total_possible")
	}
	if update.Feedback != nil {
		submission.Feedback = *update.Feedback
		selectFields = append(selectFields, "feedback")
	}
	if update.Warnings != nil {
		submission.Warnings = model.MakeJSONField(update.Warnings)
		selectFields = append(selectFields, "warnings")
	}
	if len(selectFields) == 0 {
		return s.Get(ctx, id)
	}

	result := s.getDB(ctx).Model(&submission).Clauses(clause.Returning{}).Select(selectFields).Updates(&submission)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return &submission, nil
}

func (s *SubmissionStore) UpdateStage(ctx context.Context, id uuid.UUID, stage api.StageType, record model.StageRecord) error {
	switch stage {
	case api.StageSubmission, api.StageEvaluation:
	default:
		return fmt.Errorf("stage %q does not belong to submissions", stage)
	}

	updates := map[string]any{
		fmt.Sprintf("%s_status", stage):       record.Status,
		fmt.Sprintf("%s_error", stage):        record.Error,
		fmt.Sprintf("%s_started_at", stage):   record.StartedAt,
		fmt.Sprintf("%s_completed_at", stage): record.CompletedAt,
	}
	result := s.getDB(ctx).Model(&model.Submission{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *SubmissionStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.getDB(ctx).Delete(&model.Submission{ID: id})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *SubmissionStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
