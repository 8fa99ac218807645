package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/internal/grading"
)

// StageRecord is the persisted state of one pipeline stage. Every stage
// writes only its own columns, so concurrent stages never clobber each
// other.
type StageRecord struct {
	Status      string `gorm:"type:VARCHAR(32);not null;default:'pending'"`
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type Assignment struct {
	ID          uuid.UUID `gorm:"primaryKey;"`
	CreatedAt   time.Time `gorm:"not null;default:now()"`
	UpdatedAt   *time.Time
	Title       string `gorm:"not null"`
	TotalPoints *float64

	BriefFile    []byte `gorm:"type:bytea"`
	BriefMIME    string `gorm:"type:VARCHAR(100)"`
	RubricFile   []byte `gorm:"type:bytea"`
	RubricMIME   string `gorm:"type:VARCHAR(100)"`
	SolutionFile []byte `gorm:"type:bytea"`
	SolutionMIME string `gorm:"type:VARCHAR(100)"`

	AssignmentStage    StageRecord `gorm:"embedded;embeddedPrefix:assignment_"`
	RubricStage        StageRecord `gorm:"embedded;embeddedPrefix:rubric_"`
	SolutionStage      StageRecord `gorm:"embedded;embeddedPrefix:solution_"`
	OrchestrationStage StageRecord `gorm:"embedded;embeddedPrefix:orchestration_"`
	Readiness          string      `gorm:"type:VARCHAR(32);not null;default:'not_ready'"`

	// Stage outputs. Brief and solution text feed later prompts; the raw
	// rubric is kept next to the normalized tree so it can be re-normalized.
	BriefText          string                           `gorm:"type:TEXT"`
	SolutionText       string                           `gorm:"type:TEXT"`
	RubricSchema       *JSONField[grading.RubricSchema] `gorm:"type:jsonb"`
	RubricTree         *JSONField[grading.TaskNode]     `gorm:"type:jsonb"`
	ValidationWarnings *JSONField[[]string]             `gorm:"type:jsonb"`

	Submissions []Submission `gorm:"foreignKey:AssignmentID;references:ID;constraint:OnDelete:CASCADE;"`
}

type AssignmentList []Assignment

func (a Assignment) String() string {
	val, _ := json.Marshal(a)
	return string(val)
}
