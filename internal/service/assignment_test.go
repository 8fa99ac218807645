package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

type fakeQueue struct {
	kinds []string
}

func (q *fakeQueue) Enqueue(_ context.Context, args river.JobArgs) (int64, bool, error) {
	q.kinds = append(q.kinds, args.Kind())
	return int64(len(q.kinds)), false, nil
}

type fakeAssignmentStore struct {
	created []model.Assignment
}

func (f *fakeAssignmentStore) InitialMigration() error { return nil }

func (f *fakeAssignmentStore) Create(_ context.Context, a model.Assignment) (*model.Assignment, error) {
	f.created = append(f.created, a)
	return &a, nil
}

func (f *fakeAssignmentStore) Get(_ context.Context, _ uuid.UUID) (*model.Assignment, error) {
	return nil, store.ErrRecordNotFound
}

func (f *fakeAssignmentStore) List(_ context.Context) (model.AssignmentList, error) {
	return model.AssignmentList{}, nil
}

func (f *fakeAssignmentStore) Update(_ context.Context, _ uuid.UUID, _ store.AssignmentUpdate) (*model.Assignment, error) {
	return nil, store.ErrRecordNotFound
}

func (f *fakeAssignmentStore) UpdateStage(_ context.Context, _ uuid.UUID, _ api.StageType, _ model.StageRecord) error {
	return nil
}

func (f *fakeAssignmentStore) Delete(_ context.Context, _ uuid.UUID) error { return nil }

type fakeStore struct {
	assignments *fakeAssignmentStore
}

func (f *fakeStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return ctx, nil
}

func (f *fakeStore) Assignment() store.Assignment { return f.assignments }
func (f *fakeStore) Submission() store.Submission { return nil }
func (f *fakeStore) InitialMigration() error      { return nil }
func (f *fakeStore) Close() error                 { return nil }

func TestCreateQueuesIndependentStages(t *testing.T) {
	queue := &fakeQueue{}
	svc := NewAssignmentService(&fakeStore{assignments: &fakeAssignmentStore{}}, queue)

	_, err := svc.Create(context.Background(), AssignmentCreate{
		Title:     "hw1",
		BriefFile: []byte("brief"),
	})
	require.NoError(t, err)

	// Solution processing does not wait behind the brief; rubric derivation
	// does, so without a rubric document no rubric job is queued yet.
	assert.Equal(t, []string{"assignment_process", "solution_process"}, queue.kinds)
}

func TestCreateQueuesSuppliedRubricImmediately(t *testing.T) {
	queue := &fakeQueue{}
	svc := NewAssignmentService(&fakeStore{assignments: &fakeAssignmentStore{}}, queue)

	_, err := svc.Create(context.Background(), AssignmentCreate{
		Title:      "hw1",
		BriefFile:  []byte("brief"),
		RubricFile: []byte("rubric"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"assignment_process", "solution_process", "rubric_process"}, queue.kinds)
}
