package pipeline

import (
	"fmt"
	"time"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

// legalTransitions encodes the stage lifecycle. A completed stage is
// terminal; failed stages can only be requeued back to pending, which is
// the manual re-run path. pending -> failed covers dependency failures:
// a stage whose prerequisite failed is failed without ever running, so it
// cannot sit pending forever.
var legalTransitions = map[api.ProcessingStatus][]api.ProcessingStatus{
	api.ProcessingStatusPending:    {api.ProcessingStatusProcessing, api.ProcessingStatusFailed},
	api.ProcessingStatusProcessing: {api.ProcessingStatusCompleted, api.ProcessingStatusFailed, api.ProcessingStatusNotApplicable},
	api.ProcessingStatusFailed:     {api.ProcessingStatusPending},
}

func transitionAllowed(from, to api.ProcessingStatus) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition validates a stage status change and returns the updated
// record with timestamps and error stamped consistently. Illegal
// transitions leave the record untouched and return an error, so a buggy
// caller cannot silently resurrect a completed stage.
func Transition(record model.StageRecord, to api.ProcessingStatus, stageErr error) (model.StageRecord, error) {
	from := api.StringToProcessingStatus(record.Status)
	if !transitionAllowed(from, to) {
		return record, fmt.Errorf("illegal stage transition %s -> %s", from, to)
	}

	now := time.Now()
	record.Status = string(to)
	switch to {
	case api.ProcessingStatusProcessing:
		record.StartedAt = &now
		record.CompletedAt = nil
		record.Error = nil
	case api.ProcessingStatusCompleted, api.ProcessingStatusNotApplicable:
		record.CompletedAt = &now
		record.Error = nil
	case api.ProcessingStatusFailed:
		record.CompletedAt = &now
		msg := "stage failed"
		if stageErr != nil {
			msg = stageErr.Error()
		}
		record.Error = &msg
	case api.ProcessingStatusPending:
		// Requeue: the record starts over with no residue of the failure.
		record.StartedAt = nil
		record.CompletedAt = nil
		record.Error = nil
	}
	return record, nil
}
