package v1alpha1

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus tracks one document stage through the pipeline.
type ProcessingStatus string

const (
	ProcessingStatusPending       ProcessingStatus = "pending"
	ProcessingStatusProcessing    ProcessingStatus = "processing"
	ProcessingStatusCompleted     ProcessingStatus = "completed"
	ProcessingStatusFailed        ProcessingStatus = "failed"
	ProcessingStatusNotApplicable ProcessingStatus = "not_applicable"
)

// Readiness is the composite "can this assignment's submissions be evaluated
// now" signal derived from the independent prerequisite stages.
type Readiness string

const (
	ReadinessReady    Readiness = "ready"
	ReadinessPartial  Readiness = "partial"
	ReadinessNotReady Readiness = "not_ready"
)

// StageType identifies a pipeline stage.
type StageType string

const (
	StageAssignment    StageType = "assignment"
	StageRubric        StageType = "rubric"
	StageSolution      StageType = "solution"
	StageSubmission    StageType = "submission"
	StageEvaluation    StageType = "evaluation"
	StageOrchestration StageType = "orchestration"
)

func StringToProcessingStatus(s string) ProcessingStatus {
	switch s {
	case string(ProcessingStatusProcessing):
		return ProcessingStatusProcessing
	case string(ProcessingStatusCompleted):
		return ProcessingStatusCompleted
	case string(ProcessingStatusFailed):
		return ProcessingStatusFailed
	case string(ProcessingStatusNotApplicable):
		return ProcessingStatusNotApplicable
	default:
		return ProcessingStatusPending
	}
}

func StringToReadiness(s string) Readiness {
	switch s {
	case string(ReadinessReady):
		return ReadinessReady
	case string(ReadinessPartial):
		return ReadinessPartial
	default:
		return ReadinessNotReady
	}
}

// StageStatus is the externally visible state of one stage.
type StageStatus struct {
	Status      ProcessingStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// StatusReply answers a status query with the richest partial information
// available: every stage's status, the composite readiness and any warnings
// collected while normalizing oracle output.
type StatusReply struct {
	DocumentID uuid.UUID                 `json:"documentId"`
	Stages     map[StageType]StageStatus `json:"stages"`
	Readiness  Readiness                 `json:"readiness"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// Error is the uniform error reply body.
type Error struct {
	Message string `json:"message"`
}

// Assignment is the external representation of an assignment document.
type Assignment struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title,omitempty"`
	TotalPoints *float64  `json:"totalPoints,omitempty"`
	Readiness   Readiness `json:"readiness"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AssignmentList []Assignment

// Submission is the external representation of a student submission.
type Submission struct {
	ID            uuid.UUID `json:"id"`
	AssignmentID  uuid.UUID `json:"assignmentId"`
	StudentID     string    `json:"studentId,omitempty"`
	StudentName   string    `json:"studentName,omitempty"`
	TotalScore    *float64  `json:"totalScore,omitempty"`
	TotalPossible *float64  `json:"totalPossible,omitempty"`
	Feedback      string    `json:"feedback,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type SubmissionList []Submission

type EnqueueRequest struct {
	Stage      StageType `json:"stage"`
	DocumentID uuid.UUID `json:"documentId"`
}

type EnqueueReply struct {
	JobID  int64  `json:"jobId,omitempty"`
	Status string `json:"status"`
}

// ExportColumn is one canonical leaf key shared across all exported
// submissions, paired with the maximum score observed for that key.
type ExportColumn struct {
	Key      string  `json:"key"`
	MaxScore float64 `json:"maxScore"`
}

// ExportRow carries one submission's scores keyed by canonical column key.
// A nil cell means "no data", which renders as an explicit marker rather
// than a blank that could be misread as zero.
type ExportRow struct {
	SubmissionID  uuid.UUID           `json:"submissionId"`
	StudentID     string              `json:"studentId"`
	StudentName   string              `json:"studentName"`
	TotalScore    float64             `json:"totalScore"`
	TotalPossible float64             `json:"totalPossible"`
	Feedback      string              `json:"feedback,omitempty"`
	Cells         map[string]*float64 `json:"cells"`
}

type ExportTable struct {
	Columns []ExportColumn `json:"columns"`
	Rows    []ExportRow    `json:"rows"`
}
