package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	api "github.com/gradeflow/gradeflow/api/v1alpha1"
	"github.com/gradeflow/gradeflow/internal/grading"
	"github.com/gradeflow/gradeflow/internal/oracle"
	"github.com/gradeflow/gradeflow/internal/store"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

// Oracle is the single entry point workers use for scoring calls. The
// dispatcher behind it owns rate limiting and retries.
type Oracle interface {
	Submit(ctx context.Context, req oracle.Request) (string, error)
}

// markAssignmentStage transitions one assignment-owned stage and persists it.
func markAssignmentStage(ctx context.Context, s store.Store, id uuid.UUID, stage api.StageType, record model.StageRecord, to api.ProcessingStatus, cause error) (model.StageRecord, error) {
	next, err := Transition(record, to, cause)
	if err != nil {
		return record, err
	}
	if err := s.Assignment().UpdateStage(ctx, id, stage, next); err != nil {
		return record, err
	}
	return next, nil
}

// markSubmissionStage transitions one submission-owned stage and persists it.
func markSubmissionStage(ctx context.Context, s store.Store, id uuid.UUID, stage api.StageType, record model.StageRecord, to api.ProcessingStatus, cause error) (model.StageRecord, error) {
	next, err := Transition(record, to, cause)
	if err != nil {
		return record, err
	}
	if err := s.Submission().UpdateStage(ctx, id, stage, next); err != nil {
		return record, err
	}
	return next, nil
}

// refreshReadiness recomputes and persists the assignment's readiness
// after any prerequisite stage settles.
func refreshReadiness(ctx context.Context, s store.Store, id uuid.UUID) {
	a, err := s.Assignment().Get(ctx, id)
	if err != nil {
		zap.S().Named("pipeline").Errorf("readiness refresh: loading assignment %s: %v", id, err)
		return
	}
	readiness := string(ComputeReadiness(a))
	if a.Readiness == readiness {
		return
	}
	if _, err := s.Assignment().Update(ctx, id, store.AssignmentUpdate{Readiness: &readiness}); err != nil {
		zap.S().Named("pipeline").Errorf("readiness refresh: updating assignment %s: %v", id, err)
	}
}

type AssignmentWorker struct {
	river.WorkerDefaults[AssignmentArgs]
	store  store.Store
	oracle Oracle
	log    *zap.SugaredLogger
}

func NewAssignmentWorker(s store.Store, o Oracle) *AssignmentWorker {
	return &AssignmentWorker{store: s, oracle: o, log: zap.S().Named("assignment_worker")}
}

func (w *AssignmentWorker) Timeout(job *river.Job[AssignmentArgs]) time.Duration {
	return JobTimeout
}

func (w *AssignmentWorker) Work(ctx context.Context, job *river.Job[AssignmentArgs]) error {
	a, err := w.store.Assignment().Get(ctx, job.Args.AssignmentID)
	if err != nil {
		return err
	}

	record, err := markAssignmentStage(ctx, w.store, a.ID, api.StageAssignment, a.AssignmentStage, api.ProcessingStatusProcessing, nil)
	if err != nil {
		return err
	}

	extract, err := w.processBrief(ctx, a)
	if err == nil {
		update := store.AssignmentUpdate{BriefText: &extract.Text}
		if extract.Title != "" && a.Title == "" {
			update.Title = &extract.Title
		}
		if extract.TotalPoints > 0 && a.TotalPoints == nil {
			update.TotalPoints = &extract.TotalPoints
		}
		if _, uerr := w.store.Assignment().Update(ctx, a.ID, update); uerr != nil {
			err = uerr
		}
	}
	if err != nil {
		if _, merr := markAssignmentStage(ctx, w.store, a.ID, api.StageAssignment, record, api.ProcessingStatusFailed, err); merr != nil {
			w.log.Errorf("marking assignment %s failed: %v", a.ID, merr)
		}
		// Without a rubric document the rubric stage can only be derived
		// from the brief, which now never materializes. Fail it naming the
		// prerequisite instead of leaving it pending forever.
		if len(a.RubricFile) == 0 {
			cause := fmt.Errorf("assignment stage failed: %v", err)
			if _, merr := markAssignmentStage(ctx, w.store, a.ID, api.StageRubric, a.RubricStage, api.ProcessingStatusFailed, cause); merr != nil {
				w.log.Errorf("marking rubric %s failed: %v", a.ID, merr)
			}
		}
		refreshReadiness(ctx, w.store, a.ID)
		return err
	}

	if _, err := markAssignmentStage(ctx, w.store, a.ID, api.StageAssignment, record, api.ProcessingStatusCompleted, nil); err != nil {
		return err
	}
	refreshReadiness(ctx, w.store, a.ID)

	// Rubric derivation from the brief waited on this stage; rubric-file
	// and solution processing were queued at creation time. A rubric stage
	// no longer pending went through a dependency failure and waits for a
	// manual requeue instead.
	if len(a.RubricFile) == 0 && api.StringToProcessingStatus(a.RubricStage.Status) == api.ProcessingStatusPending {
		client := river.ClientFromContext[pgx.Tx](ctx)
		if _, err := client.Insert(ctx, RubricArgs{AssignmentID: a.ID}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (w *AssignmentWorker) processBrief(ctx context.Context, a *model.Assignment) (*oracle.BriefExtract, error) {
	if len(a.BriefFile) == 0 {
		return nil, errors.New("assignment has no document to process")
	}
	text, err := w.oracle.Submit(ctx, oracle.Request{
		Prompt:    briefPrompt,
		Documents: []oracle.Document{{MIMEType: a.BriefMIME, Data: a.BriefFile}},
	})
	if err != nil {
		return nil, err
	}
	return oracle.DecodeBrief(text)
}

type RubricWorker struct {
	river.WorkerDefaults[RubricArgs]
	store  store.Store
	oracle Oracle
	log    *zap.SugaredLogger
}

func NewRubricWorker(s store.Store, o Oracle) *RubricWorker {
	return &RubricWorker{store: s, oracle: o, log: zap.S().Named("rubric_worker")}
}

func (w *RubricWorker) Timeout(job *river.Job[RubricArgs]) time.Duration {
	return JobTimeout
}

func (w *RubricWorker) Work(ctx context.Context, job *river.Job[RubricArgs]) error {
	a, err := w.store.Assignment().Get(ctx, job.Args.AssignmentID)
	if err != nil {
		return err
	}

	record, err := markAssignmentStage(ctx, w.store, a.ID, api.StageRubric, a.RubricStage, api.ProcessingStatusProcessing, nil)
	if err != nil {
		return err
	}

	schema, fromBrief, err := w.extract(ctx, a)
	var tree *grading.TaskNode
	if err == nil {
		tree, err = grading.BuildTree(schema)
	}
	if err == nil {
		_, err = w.store.Assignment().Update(ctx, a.ID, store.AssignmentUpdate{
			RubricSchema: schema,
			RubricTree:   tree,
		})
	}
	if err != nil {
		// A failed derivation from the assignment text is not a rubric
		// failure: there simply is no usable rubric.
		if fromBrief {
			w.log.Infof("assignment %s: no usable rubric could be derived: %v", a.ID, err)
			if _, merr := markAssignmentStage(ctx, w.store, a.ID, api.StageRubric, record, api.ProcessingStatusNotApplicable, nil); merr != nil {
				w.log.Errorf("marking rubric %s not applicable: %v", a.ID, merr)
			}
			refreshReadiness(ctx, w.store, a.ID)
			return nil
		}
		if _, merr := markAssignmentStage(ctx, w.store, a.ID, api.StageRubric, record, api.ProcessingStatusFailed, err); merr != nil {
			w.log.Errorf("marking rubric %s failed: %v", a.ID, merr)
		}
		refreshReadiness(ctx, w.store, a.ID)
		return err
	}

	if _, err := markAssignmentStage(ctx, w.store, a.ID, api.StageRubric, record, api.ProcessingStatusCompleted, nil); err != nil {
		return err
	}
	refreshReadiness(ctx, w.store, a.ID)
	return nil
}

// extract reads the rubric document when one exists, and otherwise falls
// back to deriving a rubric from the assignment text.
func (w *RubricWorker) extract(ctx context.Context, a *model.Assignment) (*grading.RubricSchema, bool, error) {
	if len(a.RubricFile) > 0 {
		text, err := w.oracle.Submit(ctx, oracle.Request{
			Prompt:    rubricPrompt,
			Documents: []oracle.Document{{MIMEType: a.RubricMIME, Data: a.RubricFile}},
		})
		if err != nil {
			return nil, false, err
		}
		schema, err := oracle.DecodeRubric(text)
		return schema, false, err
	}

	if a.BriefText == "" {
		return nil, true, errors.New("no rubric document and no assignment text")
	}
	text, err := w.oracle.Submit(ctx, oracle.Request{Prompt: rubricFromBriefPrompt(a.BriefText)})
	if err != nil {
		return nil, true, err
	}
	schema, err := oracle.DecodeRubric(text)
	return schema, true, err
}

type SolutionWorker struct {
	river.WorkerDefaults[SolutionArgs]
	store  store.Store
	oracle Oracle
	log    *zap.SugaredLogger
}

func NewSolutionWorker(s store.Store, o Oracle) *SolutionWorker {
	return &SolutionWorker{store: s, oracle: o, log: zap.S().Named("solution_worker")}
}

func (w *SolutionWorker) Timeout(job *river.Job[SolutionArgs]) time.Duration {
	return JobTimeout
}

func (w *SolutionWorker) Work(ctx context.Context, job *river.Job[SolutionArgs]) error {
	a, err := w.store.Assignment().Get(ctx, job.Args.AssignmentID)
	if err != nil {
		return err
	}

	record, err := markAssignmentStage(ctx, w.store, a.ID, api.StageSolution, a.SolutionStage, api.ProcessingStatusProcessing, nil)
	if err != nil {
		return err
	}

	if len(a.SolutionFile) == 0 {
		if _, err := markAssignmentStage(ctx, w.store, a.ID, api.StageSolution, record, api.ProcessingStatusNotApplicable, nil); err != nil {
			return err
		}
		refreshReadiness(ctx, w.store, a.ID)
		return nil
	}

	text, err := w.oracle.Submit(ctx, oracle.Request{
		Prompt:    transcriptPrompt,
		Documents: []oracle.Document{{MIMEType: a.SolutionMIME, Data: a.SolutionFile}},
	})
	var transcript *oracle.Transcript
	if err == nil {
		transcript, err = oracle.DecodeTranscript(text)
	}
	if err == nil {
		_, err = w.store.Assignment().Update(ctx, a.ID, store.AssignmentUpdate{SolutionText: &transcript.Text})
	}
	if err != nil {
		if _, merr := markAssignmentStage(ctx, w.store, a.ID, api.StageSolution, record, api.ProcessingStatusFailed, err); merr != nil {
			w.log.Errorf("marking solution %s failed: %v", a.ID, merr)
		}
		refreshReadiness(ctx, w.store, a.ID)
		return err
	}

	if _, err := markAssignmentStage(ctx, w.store, a.ID, api.StageSolution, record, api.ProcessingStatusCompleted, nil); err != nil {
		return err
	}
	refreshReadiness(ctx, w.store, a.ID)
	return nil
}

type SubmissionWorker struct {
	river.WorkerDefaults[SubmissionArgs]
	store  store.Store
	oracle Oracle
	log    *zap.SugaredLogger
}

func NewSubmissionWorker(s store.Store, o Oracle) *SubmissionWorker {
	return &SubmissionWorker{store: s, oracle: o, log: zap.S().Named("submission_worker")}
}

func (w *SubmissionWorker) Timeout(job *river.Job[SubmissionArgs]) time.Duration {
	return JobTimeout
}

func (w *SubmissionWorker) Work(ctx context.Context, job *river.Job[SubmissionArgs]) error {
	sub, err := w.store.Submission().Get(ctx, job.Args.SubmissionID)
	if err != nil {
		return err
	}

	record, err := markSubmissionStage(ctx, w.store, sub.ID, api.StageSubmission, sub.SubmissionStage, api.ProcessingStatusProcessing, nil)
	if err != nil {
		return err
	}

	if len(sub.File) == 0 {
		err = errors.New("submission has no document to process")
	}
	var transcript *oracle.Transcript
	if err == nil {
		var text string
		text, err = w.oracle.Submit(ctx, oracle.Request{
			Prompt:    transcriptPrompt,
			Documents: []oracle.Document{{MIMEType: sub.FileMIME, Data: sub.File}},
		})
		if err == nil {
			transcript, err = oracle.DecodeTranscript(text)
		}
	}
	if err == nil {
		_, err = w.store.Submission().Update(ctx, sub.ID, store.SubmissionUpdate{SubmissionText: &transcript.Text})
	}
	if err != nil {
		if _, merr := markSubmissionStage(ctx, w.store, sub.ID, api.StageSubmission, record, api.ProcessingStatusFailed, err); merr != nil {
			w.log.Errorf("marking submission %s failed: %v", sub.ID, merr)
		}
		return err
	}

	if _, err := markSubmissionStage(ctx, w.store, sub.ID, api.StageSubmission, record, api.ProcessingStatusCompleted, nil); err != nil {
		return err
	}

	// Evaluation starts automatically once the assignment side is fully
	// ready; otherwise it waits for an explicit enqueue.
	a, err := w.store.Assignment().Get(ctx, sub.AssignmentID)
	if err != nil {
		w.log.Errorf("loading assignment %s for submission %s: %v", sub.AssignmentID, sub.ID, err)
		return nil
	}
	if ComputeReadiness(a) == api.ReadinessReady {
		if _, err := river.ClientFromContext[pgx.Tx](ctx).Insert(ctx, EvaluationArgs{SubmissionID: sub.ID}, nil); err != nil {
			w.log.Errorf("enqueueing evaluation for submission %s: %v", sub.ID, err)
		}
	}
	return nil
}

type EvaluationWorker struct {
	river.WorkerDefaults[EvaluationArgs]
	store  store.Store
	oracle Oracle
	log    *zap.SugaredLogger
}

func NewEvaluationWorker(s store.Store, o Oracle) *EvaluationWorker {
	return &EvaluationWorker{store: s, oracle: o, log: zap.S().Named("evaluation_worker")}
}

func (w *EvaluationWorker) Timeout(job *river.Job[EvaluationArgs]) time.Duration {
	return JobTimeout
}

func (w *EvaluationWorker) Work(ctx context.Context, job *river.Job[EvaluationArgs]) error {
	sub, err := w.store.Submission().Get(ctx, job.Args.SubmissionID)
	if err != nil {
		return err
	}
	a, err := w.store.Assignment().Get(ctx, sub.AssignmentID)
	if err != nil {
		return err
	}

	record, err := markSubmissionStage(ctx, w.store, sub.ID, api.StageEvaluation, sub.EvaluationStage, api.ProcessingStatusProcessing, nil)
	if err != nil {
		return err
	}

	update, err := w.evaluate(ctx, a, sub)
	if err != nil {
		if _, merr := markSubmissionStage(ctx, w.store, sub.ID, api.StageEvaluation, record, api.ProcessingStatusFailed, err); merr != nil {
			w.log.Errorf("marking evaluation %s failed: %v", sub.ID, merr)
		}
		return err
	}

	// The result payload and the completion status land atomically: a crash
	// between the two writes must not leave a completed stage with no
	// stored result.
	txCtx, err := w.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	if _, err := w.store.Submission().Update(txCtx, sub.ID, *update); err != nil {
		_, _ = store.Rollback(txCtx)
		return err
	}
	if _, err := markSubmissionStage(txCtx, w.store, sub.ID, api.StageEvaluation, record, api.ProcessingStatusCompleted, nil); err != nil {
		_, _ = store.Rollback(txCtx)
		return err
	}
	if _, err := store.Commit(txCtx); err != nil {
		return err
	}
	return nil
}

func (w *EvaluationWorker) evaluate(ctx context.Context, a *model.Assignment, sub *model.Submission) (*store.SubmissionUpdate, error) {
	// Late gate: the enqueue API already rejects unready assignments, but
	// a stage may have failed between enqueue and execution.
	if ComputeReadiness(a) == api.ReadinessNotReady {
		return nil, fmt.Errorf("assignment %s is not ready for evaluation: waiting on %s", a.ID, strings.Join(Outstanding(a), ", "))
	}

	req := oracle.Request{Prompt: evaluationPrompt(a)}
	if len(sub.File) > 0 {
		req.Documents = []oracle.Document{{MIMEType: sub.FileMIME, Data: sub.File}}
	}
	text, err := w.oracle.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := oracle.DecodeEvaluation(text)
	if err != nil {
		return nil, err
	}

	leaves := result.LeafScores()
	var tree *grading.ScoreTree
	if a.RubricTree != nil {
		tree = grading.Score(&a.RubricTree.Data, leaves)
	} else {
		tree = grading.ScoresToTree(result.Questions())
	}
	earned, max := tree.Overall()

	feedback := buildFeedback(result)
	return &store.SubmissionUpdate{
		RawEvaluation: result,
		ScoreTree:     tree,
		TotalScore:    &earned,
		TotalPossible: &max,
		Feedback:      &feedback,
		Warnings:      tree.Warnings,
	}, nil
}

// buildFeedback flattens the overall feedback and the deduction list into
// the single reviewer-facing feedback string the export renders.
func buildFeedback(result *grading.EvaluationResult) string {
	parts := []string{}
	if result.OverallFeedback != "" {
		parts = append(parts, result.OverallFeedback)
	}
	for _, lm := range result.LostMarks {
		parts = append(parts, fmt.Sprintf("-%.4g %s: %s", lm.PointsLost, lm.Area, lm.Reason))
	}
	return strings.Join(parts, "\n")
}

type OrchestrationWorker struct {
	river.WorkerDefaults[OrchestrationArgs]
	store  store.Store
	oracle Oracle
	log    *zap.SugaredLogger
}

func NewOrchestrationWorker(s store.Store, o Oracle) *OrchestrationWorker {
	return &OrchestrationWorker{store: s, oracle: o, log: zap.S().Named("orchestration_worker")}
}

func (w *OrchestrationWorker) Timeout(job *river.Job[OrchestrationArgs]) time.Duration {
	return JobTimeout
}

func (w *OrchestrationWorker) Work(ctx context.Context, job *river.Job[OrchestrationArgs]) error {
	a, err := w.store.Assignment().Get(ctx, job.Args.AssignmentID)
	if err != nil {
		return err
	}

	record, err := markAssignmentStage(ctx, w.store, a.ID, api.StageOrchestration, a.OrchestrationStage, api.ProcessingStatusProcessing, nil)
	if err != nil {
		return err
	}

	var validation *oracle.Validation
	if ComputeReadiness(a) == api.ReadinessNotReady {
		err = fmt.Errorf("assignment %s is not ready for cross-validation: waiting on %s", a.ID, strings.Join(Outstanding(a), ", "))
	} else {
		var text string
		text, err = w.oracle.Submit(ctx, oracle.Request{Prompt: validationPrompt(a)})
		if err == nil {
			validation, err = oracle.DecodeValidation(text)
		}
	}
	if err == nil {
		warnings := validation.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		_, err = w.store.Assignment().Update(ctx, a.ID, store.AssignmentUpdate{ValidationWarnings: warnings})
	}
	if err != nil {
		if _, merr := markAssignmentStage(ctx, w.store, a.ID, api.StageOrchestration, record, api.ProcessingStatusFailed, err); merr != nil {
			w.log.Errorf("marking orchestration %s failed: %v", a.ID, merr)
		}
		return err
	}

	_, err = markAssignmentStage(ctx, w.store, a.ID, api.StageOrchestration, record, api.ProcessingStatusCompleted, nil)
	return err
}
