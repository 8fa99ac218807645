package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrAssignmentNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "assignment")
}

func NewErrSubmissionNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "submission")
}

// ErrDependencyNotReady rejects an evaluation or orchestration request
// whose prerequisite stages have not settled, naming what is outstanding
// so the caller knows what to wait for.
type ErrDependencyNotReady struct {
	error
}

func NewErrDependencyNotReady(assignmentID uuid.UUID, outstanding []string) *ErrDependencyNotReady {
	return &ErrDependencyNotReady{fmt.Errorf("assignment %s is not ready: waiting on %s", assignmentID, strings.Join(outstanding, ", "))}
}

type ErrIllegalRequeue struct {
	error
}

func NewErrIllegalRequeue(stage, status string) *ErrIllegalRequeue {
	return &ErrIllegalRequeue{fmt.Errorf("stage %s cannot be requeued from status %s, only failed stages can", stage, status)}
}

type ErrUnknownStage struct {
	error
}

func NewErrUnknownStage(stage string) *ErrUnknownStage {
	return &ErrUnknownStage{fmt.Errorf("unknown stage %q", stage)}
}
