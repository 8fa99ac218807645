package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gradeflow/gradeflow/internal/grading"
)

type Submission struct {
	ID           uuid.UUID `gorm:"primaryKey;"`
	CreatedAt    time.Time `gorm:"not null;default:now()"`
	UpdatedAt    *time.Time
	AssignmentID uuid.UUID `gorm:"not null;index:submissions_assignment_idx"`
	StudentID    string    `gorm:"type:VARCHAR(100)"`
	StudentName  string    `gorm:"type:VARCHAR(255)"`

	File     []byte `gorm:"type:bytea"`
	FileMIME string `gorm:"type:VARCHAR(100)"`

	SubmissionStage StageRecord `gorm:"embedded;embeddedPrefix:submission_"`
	EvaluationStage StageRecord `gorm:"embedded;embeddedPrefix:evaluation_"`

	// RawEvaluation is the oracle's output verbatim; ScoreTree is the
	// normalized form derived from it. Keeping both means a submission can
	// be re-normalized without another oracle call.
	SubmissionText string                               `gorm:"type:TEXT"`
	RawEvaluation  *JSONField[grading.EvaluationResult] `gorm:"type:jsonb"`
	ScoreTree      *JSONField[grading.ScoreTree]        `gorm:"type:jsonb"`
	TotalScore     *float64
	TotalPossible  *float64
	Feedback       string               `gorm:"type:TEXT"`
	Warnings       *JSONField[[]string] `gorm:"type:jsonb"`
}

type SubmissionList []Submission

func (s Submission) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}
