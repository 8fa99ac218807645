package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

func TestTransitionLifecycle(t *testing.T) {
	record := model.StageRecord{Status: string(api.ProcessingStatusPending)}

	record, err := Transition(record, api.ProcessingStatusProcessing, nil)
	require.NoError(t, err)
	assert.NotNil(t, record.StartedAt)
	assert.Nil(t, record.CompletedAt)

	record, err = Transition(record, api.ProcessingStatusCompleted, nil)
	require.NoError(t, err)
	assert.NotNil(t, record.CompletedAt)
	assert.Nil(t, record.Error)
}

func TestTransitionFailureKeepsError(t *testing.T) {
	record := model.StageRecord{Status: string(api.ProcessingStatusProcessing)}

	record, err := Transition(record, api.ProcessingStatusFailed, errors.New("oracle returned status 500"))
	require.NoError(t, err)
	require.NotNil(t, record.Error)
	assert.Equal(t, "oracle returned status 500", *record.Error)
}

func TestTransitionRequeueClearsResidue(t *testing.T) {
	record := model.StageRecord{Status: string(api.ProcessingStatusProcessing)}
	record, err := Transition(record, api.ProcessingStatusFailed, errors.New("boom"))
	require.NoError(t, err)

	record, err = Transition(record, api.ProcessingStatusPending, nil)
	require.NoError(t, err)
	assert.Nil(t, record.Error)
	assert.Nil(t, record.StartedAt)
	assert.Nil(t, record.CompletedAt)
	assert.Equal(t, string(api.ProcessingStatusPending), record.Status)
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	illegal := []struct {
		from api.ProcessingStatus
		to   api.ProcessingStatus
	}{
		{api.ProcessingStatusPending, api.ProcessingStatusCompleted},
		{api.ProcessingStatusCompleted, api.ProcessingStatusProcessing},
		{api.ProcessingStatusCompleted, api.ProcessingStatusPending},
		{api.ProcessingStatusNotApplicable, api.ProcessingStatusProcessing},
		{api.ProcessingStatusFailed, api.ProcessingStatusProcessing},
		{api.ProcessingStatusProcessing, api.ProcessingStatusPending},
	}

	for _, tt := range illegal {
		record := model.StageRecord{Status: string(tt.from)}
		out, err := Transition(record, tt.to, nil)
		assert.Error(t, err, "%s -> %s must be rejected", tt.from, tt.to)
		assert.Equal(t, record, out, "record must be untouched on %s -> %s", tt.from, tt.to)
	}
}

func TestTransitionDependencyFailure(t *testing.T) {
	record := model.StageRecord{Status: string(api.ProcessingStatusPending)}

	record, err := Transition(record, api.ProcessingStatusFailed, errors.New("assignment stage failed"))
	require.NoError(t, err)
	require.NotNil(t, record.Error)
	assert.Equal(t, "assignment stage failed", *record.Error)
	assert.Nil(t, record.StartedAt)
	assert.NotNil(t, record.CompletedAt)

	// The requeue path stays open after a dependency failure.
	record, err = Transition(record, api.ProcessingStatusPending, nil)
	require.NoError(t, err)
	assert.Nil(t, record.Error)
}

func TestTransitionNotApplicableIsTerminal(t *testing.T) {
	record := model.StageRecord{Status: string(api.ProcessingStatusProcessing)}
	record, err := Transition(record, api.ProcessingStatusNotApplicable, nil)
	require.NoError(t, err)

	_, err = Transition(record, api.ProcessingStatusPending, nil)
	assert.Error(t, err)
}
