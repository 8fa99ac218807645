package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// One queue per stage with a single worker each: a document's stage
// transitions stay ordered while independent stages still run
// concurrently. Oracle throughput is bounded by the dispatcher, not here.
const (
	QueueAssignment    = "assignment"
	QueueRubric        = "rubric"
	QueueSolution      = "solution"
	QueueSubmission    = "submission"
	QueueEvaluation    = "evaluation"
	QueueOrchestration = "orchestration"

	// The dispatcher owns oracle retries; a river-level retry would
	// restart a stage that already burned its attempt budget.
	MaxJobRetries = 1
	JobTimeout    = 10 * time.Minute
)

func insertOpts(queue string) river.InsertOpts {
	return river.InsertOpts{
		Queue:       queue,
		MaxAttempts: MaxJobRetries,
		// Duplicate enqueues of the same document are folded into the
		// in-flight job only. Finished jobs don't count, so re-running a
		// stage inserts a fresh one.
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRunning,
				rivertype.JobStateRetryable,
				rivertype.JobStateScheduled,
			},
		},
	}
}

type AssignmentArgs struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
}

func (AssignmentArgs) Kind() string                 { return "assignment_process" }
func (AssignmentArgs) InsertOpts() river.InsertOpts { return insertOpts(QueueAssignment) }

type RubricArgs struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
}

func (RubricArgs) Kind() string                 { return "rubric_process" }
func (RubricArgs) InsertOpts() river.InsertOpts { return insertOpts(QueueRubric) }

type SolutionArgs struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
}

func (SolutionArgs) Kind() string                 { return "solution_process" }
func (SolutionArgs) InsertOpts() river.InsertOpts { return insertOpts(QueueSolution) }

type SubmissionArgs struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

func (SubmissionArgs) Kind() string                 { return "submission_process" }
func (SubmissionArgs) InsertOpts() river.InsertOpts { return insertOpts(QueueSubmission) }

type EvaluationArgs struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

func (EvaluationArgs) Kind() string                 { return "submission_evaluate" }
func (EvaluationArgs) InsertOpts() river.InsertOpts { return insertOpts(QueueEvaluation) }

type OrchestrationArgs struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
}

func (OrchestrationArgs) Kind() string                 { return "assignment_orchestrate" }
func (OrchestrationArgs) InsertOpts() river.InsertOpts { return insertOpts(QueueOrchestration) }
