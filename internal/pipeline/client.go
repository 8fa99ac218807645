package pipeline

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/gradeflow/gradeflow/internal/store"
)

type Client struct {
	*river.Client[pgx.Tx]
}

func NewClient(pool *pgxpool.Pool, s store.Store, o Oracle) (*Client, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewAssignmentWorker(s, o))
	river.AddWorker(workers, NewRubricWorker(s, o))
	river.AddWorker(workers, NewSolutionWorker(s, o))
	river.AddWorker(workers, NewSubmissionWorker(s, o))
	river.AddWorker(workers, NewEvaluationWorker(s, o))
	river.AddWorker(workers, NewOrchestrationWorker(s, o))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueAssignment:    {MaxWorkers: 1},
			QueueRubric:        {MaxWorkers: 1},
			QueueSolution:      {MaxWorkers: 1},
			QueueSubmission:    {MaxWorkers: 1},
			QueueEvaluation:    {MaxWorkers: 1},
			QueueOrchestration: {MaxWorkers: 1},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient}, nil
}

// Enqueue inserts one stage job. A true second return means an equivalent
// job was already queued and this insert was folded into it.
func (c *Client) Enqueue(ctx context.Context, args river.JobArgs) (int64, bool, error) {
	result, err := c.Insert(ctx, args, nil)
	if err != nil {
		return 0, false, err
	}
	return result.Job.ID, result.UniqueSkippedAsDuplicate, nil
}
