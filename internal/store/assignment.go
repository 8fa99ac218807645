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

// AssignmentUpdate lists the optional fields an update may set; nil
// fields are left untouched so concurrent stages only write what they own.
type AssignmentUpdate struct {
	Title              *string
	TotalPoints        *float64
	BriefText          *string
	SolutionText       *string
	RubricSchema       *grading.RubricSchema
	RubricTree         *grading.TaskNode
	ValidationWarnings []string
	Readiness          *string
}

type Assignment interface {
	InitialMigration() error
	Create(ctx context.Context, assignment model.Assignment) (*model.Assignment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	List(ctx context.Context) (model.AssignmentList, error)
	Update(ctx context.Context, id uuid.UUID, update AssignmentUpdate) (*model.Assignment, error)
	UpdateStage(ctx context.Context, id uuid.UUID, stage api.StageType, record model.StageRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type AssignmentStore struct {
	db *gorm.DB
}

// Make sure we conform to Assignment interface
var _ Assignment = (*AssignmentStore)(nil)

func NewAssignmentStore(db *gorm.DB) Assignment {
	return &AssignmentStore{db: db}
}

func (a *AssignmentStore) InitialMigration() error {
	return a.db.AutoMigrate(&model.Assignment{})
}

func (a *AssignmentStore) Create(ctx context.Context, assignment model.Assignment) (*model.Assignment, error) {
	result := a.getDB(ctx).Clauses(clause.Returning{}).Create(&assignment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &assignment, nil
}

func (a *AssignmentStore) Get(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var assignment model.Assignment
	result := a.getDB(ctx).First(&assignment, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &assignment, nil
}

func (a *AssignmentStore) List(ctx context.Context) (model.AssignmentList, error) {
	var assignments model.AssignmentList
	result := a.getDB(ctx).Model(&assignments).Order("created_at DESC").Find(&assignments)
	if result.Error != nil {
		return nil, result.Error
	}
	return assignments, nil
}

func (a *AssignmentStore) Update(ctx context.Context, id uuid.UUID, update AssignmentUpdate) (*model.Assignment, error) {
	assignment := model.Assignment{ID: id}
	selectFields := []string{}
	if update.Title != nil {
		assignment.Title = *update.Title
		selectFields = append(selectFields, "title")
	}
	if update.TotalPoints != nil {
		assignment.TotalPoints = update.TotalPoints
		selectFields = append(selectFields, "total_points")
	}
	if update.BriefText != nil {
		assignment.BriefText = *update.BriefText
		selectFields = append(selectFields, "brief_text")
	}
	if update.SolutionText != nil {
		assignment.SolutionText = *update.SolutionText
		selectFields = append(selectFields, "solution_text")
	}
	if update.RubricSchema != nil {
		assignment.RubricSchema = model.MakeJSONField(*update.RubricSchema)
		selectFields = append(selectFields, "rubric_schema")
	}
	if update.RubricTree != nil {
		assignment.RubricTree = model.MakeJSONField(*update.RubricTree)
		selectFields = append(selectFields, "rubric_tree")
	}
	if update.ValidationWarnings != nil {
		assignment.ValidationWarnings = model.MakeJSONField(update.ValidationWarnings)
		selectFields = append(selectFields, "validation_warnings")
	}
	if update.Readiness != nil {
		assignment.Readiness = *update.Readiness
		selectFields = append(selectFields, "readiness")
	}
	if len(selectFields) == 0 {
		return a.Get(ctx, id)
	}

	result := a.getDB(ctx).Model(&assignment).Clauses(clause.Returning{}).Select(selectFields).Updates(&assignment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return &assignment, nil
}

func (a *AssignmentStore) UpdateStage(ctx context.Context, id uuid.UUID, stage api.StageType, record model.StageRecord) error {
	switch stage {
	case api.StageAssignment, api.StageRubric, api.StageSolution, api.StageOrchestration:
	default:
		return fmt.Errorf("stage %q does not belong to assignments", stage)
	}

	updates := map[string]any{
		fmt.Sprintf("%s_status", stage):       record.Status,
		fmt.Sprintf("%s_error", stage):        record.Error,
		fmt.Sprintf("%s_started_at", stage):   record.StartedAt,
		fmt.Sprintf("%s_completed_at", stage): record.CompletedAt,
	}
	result := a.getDB(ctx).Model(&model.Assignment{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (a *AssignmentStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := a.getDB(ctx).Delete(&model.Assignment{ID: id})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (a *AssignmentStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return a.db
}
