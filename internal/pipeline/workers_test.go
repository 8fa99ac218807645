package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/grading"
	"github.com/gradeflow/gradeflow/internal/oracle"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

type stubAssignmentStore struct {
	assignment *model.Assignment
}

func (s *stubAssignmentStore) InitialMigration() error { return nil }

func (s *stubAssignmentStore) Create(_ context.Context, a model.Assignment) (*model.Assignment, error) {
	return &a, nil
}

func (s *stubAssignmentStore) Get(_ context.Context, _ uuid.UUID) (*model.Assignment, error) {
	return s.assignment, nil
}

func (s *stubAssignmentStore) List(_ context.Context) (model.AssignmentList, error) {
	return model.AssignmentList{*s.assignment}, nil
}

func (s *stubAssignmentStore) Update(_ context.Context, _ uuid.UUID, update store.AssignmentUpdate) (*model.Assignment, error) {
	if update.BriefText != nil {
		s.assignment.BriefText = *update.BriefText
	}
	if update.Readiness != nil {
		s.assignment.Readiness = *update.Readiness
	}
	return s.assignment, nil
}

func (s *stubAssignmentStore) UpdateStage(_ context.Context, _ uuid.UUID, stage api.StageType, record model.StageRecord) error {
	switch stage {
	case api.StageAssignment:
		s.assignment.AssignmentStage = record
	case api.StageRubric:
		s.assignment.RubricStage = record
	case api.StageSolution:
		s.assignment.SolutionStage = record
	case api.StageOrchestration:
		s.assignment.OrchestrationStage = record
	}
	return nil
}

func (s *stubAssignmentStore) Delete(_ context.Context, _ uuid.UUID) error { return nil }

type stubSubmissionStore struct {
	submission *model.Submission
	updates    []store.SubmissionUpdate
}

func (s *stubSubmissionStore) InitialMigration() error { return nil }

func (s *stubSubmissionStore) Create(_ context.Context, sub model.Submission) (*model.Submission, error) {
	return &sub, nil
}

func (s *stubSubmissionStore) Get(_ context.Context, _ uuid.UUID) (*model.Submission, error) {
	return s.submission, nil
}

func (s *stubSubmissionStore) ListByAssignment(_ context.Context, _ uuid.UUID) (model.SubmissionList, error) {
	return model.SubmissionList{*s.submission}, nil
}

func (s *stubSubmissionStore) Update(_ context.Context, _ uuid.UUID, update store.SubmissionUpdate) (*model.Submission, error) {
	s.updates = append(s.updates, update)
	return s.submission, nil
}

func (s *stubSubmissionStore) UpdateStage(_ context.Context, _ uuid.UUID, stage api.StageType, record model.StageRecord) error {
	switch stage {
	case api.StageSubmission:
		s.submission.SubmissionStage = record
	case api.StageEvaluation:
		s.submission.EvaluationStage = record
	}
	return nil
}

func (s *stubSubmissionStore) Delete(_ context.Context, _ uuid.UUID) error { return nil }

type stubStore struct {
	assignments *stubAssignmentStore
	submissions *stubSubmissionStore
	txStarted   bool
}

func (s *stubStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	s.txStarted = true
	return ctx, nil
}

func (s *stubStore) Assignment() store.Assignment { return s.assignments }
func (s *stubStore) Submission() store.Submission { return s.submissions }
func (s *stubStore) InitialMigration() error      { return nil }
func (s *stubStore) Close() error                 { return nil }

type stubOracle struct {
	reply string
	err   error
}

func (o *stubOracle) Submit(_ context.Context, _ oracle.Request) (string, error) {
	return o.reply, o.err
}

func stageRecord(status api.ProcessingStatus) model.StageRecord {
	return model.StageRecord{Status: string(status)}
}

func TestAssignmentWorkerFailureFailsDerivedRubric(t *testing.T) {
	id := uuid.New()
	s := &stubStore{assignments: &stubAssignmentStore{assignment: &model.Assignment{
		ID:              id,
		BriefFile:       []byte("brief"),
		AssignmentStage: stageRecord(api.ProcessingStatusPending),
		RubricStage:     stageRecord(api.ProcessingStatusPending),
		SolutionStage:   stageRecord(api.ProcessingStatusPending),
	}}}
	w := NewAssignmentWorker(s, &stubOracle{err: errors.New("oracle exploded")})

	err := w.Work(context.Background(), &river.Job[AssignmentArgs]{
		JobRow: &rivertype.JobRow{},
		Args:   AssignmentArgs{AssignmentID: id},
	})
	require.Error(t, err)

	a := s.assignments.assignment
	assert.Equal(t, string(api.ProcessingStatusFailed), a.AssignmentStage.Status)
	// The brief-derived rubric can never materialize now; it must not sit
	// pending forever and its error names the prerequisite.
	assert.Equal(t, string(api.ProcessingStatusFailed), a.RubricStage.Status)
	require.NotNil(t, a.RubricStage.Error)
	assert.Contains(t, *a.RubricStage.Error, "assignment stage failed")
	assert.Contains(t, *a.RubricStage.Error, "oracle exploded")
}

func TestAssignmentWorkerFailureLeavesFileRubricAlone(t *testing.T) {
	id := uuid.New()
	s := &stubStore{assignments: &stubAssignmentStore{assignment: &model.Assignment{
		ID:              id,
		BriefFile:       []byte("brief"),
		RubricFile:      []byte("rubric"),
		AssignmentStage: stageRecord(api.ProcessingStatusPending),
		RubricStage:     stageRecord(api.ProcessingStatusPending),
		SolutionStage:   stageRecord(api.ProcessingStatusPending),
	}}}
	w := NewAssignmentWorker(s, &stubOracle{err: errors.New("oracle exploded")})

	err := w.Work(context.Background(), &river.Job[AssignmentArgs]{
		JobRow: &rivertype.JobRow{},
		Args:   AssignmentArgs{AssignmentID: id},
	})
	require.Error(t, err)

	// A supplied rubric document is processed independently of the brief.
	assert.Equal(t, string(api.ProcessingStatusPending), s.assignments.assignment.RubricStage.Status)
}

func TestEvaluationWorkerPersistsResultWithCompletion(t *testing.T) {
	assignmentID := uuid.New()
	submissionID := uuid.New()
	s := &stubStore{
		assignments: &stubAssignmentStore{assignment: &model.Assignment{
			ID:              assignmentID,
			BriefText:       "brief",
			AssignmentStage: stageRecord(api.ProcessingStatusCompleted),
			RubricStage:     stageRecord(api.ProcessingStatusNotApplicable),
			SolutionStage:   stageRecord(api.ProcessingStatusNotApplicable),
		}},
		submissions: &stubSubmissionStore{submission: &model.Submission{
			ID:              submissionID,
			AssignmentID:    assignmentID,
			File:            []byte("work"),
			SubmissionStage: stageRecord(api.ProcessingStatusCompleted),
			EvaluationStage: stageRecord(api.ProcessingStatusPending),
		}},
	}
	w := NewEvaluationWorker(s, &stubOracle{
		reply: `{"overallGrade": 3, "totalPossible": 4,
			"questionScores": [{"questionNumber": "1", "earnedScore": 3, "maxScore": 4}]}`,
	})

	err := w.Work(context.Background(), &river.Job[EvaluationArgs]{
		JobRow: &rivertype.JobRow{},
		Args:   EvaluationArgs{SubmissionID: submissionID},
	})
	require.NoError(t, err)

	// Result payload and completion status are written in one transaction.
	assert.True(t, s.txStarted)
	require.Len(t, s.submissions.updates, 1)
	update := s.submissions.updates[0]
	require.NotNil(t, update.TotalScore)
	assert.Equal(t, 3.0, *update.TotalScore)
	assert.Equal(t, 4.0, *update.TotalPossible)
	assert.Equal(t, string(api.ProcessingStatusCompleted), s.submissions.submission.EvaluationStage.Status)
}

func TestBuildFeedback(t *testing.T) {
	result := &grading.EvaluationResult{
		OverallFeedback: "Good overall structure.",
		LostMarks: []grading.LostMark{
			{Area: "2.1", PointsLost: 1.5, Reason: "missing boundary condition"},
			{Area: "3", PointsLost: 2, Reason: "no justification given"},
		},
	}

	feedback := buildFeedback(result)
	lines := strings.Split(feedback, "\n")
	assert.Equal(t, "Good overall structure.", lines[0])
	assert.Equal(t, "-1.5 2.1: missing boundary condition", lines[1])
	assert.Equal(t, "-2 3: no justification given", lines[2])
}

func TestBuildFeedbackEmpty(t *testing.T) {
	assert.Empty(t, buildFeedback(&grading.EvaluationResult{}))
}

func TestEvaluationPromptWithoutOptionalArtifacts(t *testing.T) {
	a := &model.Assignment{BriefText: "Question 1 (4 marks): prove the claim."}
	prompt := evaluationPrompt(a)
	assert.Contains(t, prompt, a.BriefText)
	assert.Contains(t, prompt, "no rubric available")
	assert.Contains(t, prompt, "no model solution available")
}

func TestEvaluationPromptEmbedsRubricTree(t *testing.T) {
	a := &model.Assignment{
		BriefText: "brief",
		RubricTree: model.MakeJSONField(grading.TaskNode{
			ID:       "",
			MaxScore: 4,
			Children: []grading.TaskNode{{ID: "1", MaxScore: 4}},
		}),
		SolutionText: "worked solution",
	}
	prompt := evaluationPrompt(a)
	assert.Contains(t, prompt, `"maxScore":4`)
	assert.Contains(t, prompt, "worked solution")
}
