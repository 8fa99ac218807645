package pipeline_test

import (
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/riverqueue/river/rivertype"

	"github.com/gradeflow/gradeflow/internal/pipeline"
)

func TestJobs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Jobs Suite")
}

var _ = Describe("stage job args", func() {
	Describe("Kind", func() {
		It("returns the correct job kind for each stage", func() {
			Expect(pipeline.AssignmentArgs{}.Kind()).To(Equal("assignment_process"))
			Expect(pipeline.RubricArgs{}.Kind()).To(Equal("rubric_process"))
			Expect(pipeline.SolutionArgs{}.Kind()).To(Equal("solution_process"))
			Expect(pipeline.SubmissionArgs{}.Kind()).To(Equal("submission_process"))
			Expect(pipeline.EvaluationArgs{}.Kind()).To(Equal("submission_evaluate"))
			Expect(pipeline.OrchestrationArgs{}.Kind()).To(Equal("assignment_orchestrate"))
		})
	})

	Describe("InsertOpts", func() {
		It("routes each stage to its own queue", func() {
			Expect(pipeline.AssignmentArgs{}.InsertOpts().Queue).To(Equal(pipeline.QueueAssignment))
			Expect(pipeline.RubricArgs{}.InsertOpts().Queue).To(Equal(pipeline.QueueRubric))
			Expect(pipeline.SolutionArgs{}.InsertOpts().Queue).To(Equal(pipeline.QueueSolution))
			Expect(pipeline.SubmissionArgs{}.InsertOpts().Queue).To(Equal(pipeline.QueueSubmission))
			Expect(pipeline.EvaluationArgs{}.InsertOpts().Queue).To(Equal(pipeline.QueueEvaluation))
			Expect(pipeline.OrchestrationArgs{}.InsertOpts().Queue).To(Equal(pipeline.QueueOrchestration))
		})

		It("leaves retries to the oracle dispatcher", func() {
			opts := pipeline.EvaluationArgs{}.InsertOpts()
			Expect(opts.MaxAttempts).To(Equal(pipeline.MaxJobRetries))
		})

		It("folds duplicate enqueues of the same document", func() {
			id := uuid.New()
			opts := pipeline.AssignmentArgs{AssignmentID: id}.InsertOpts()
			Expect(opts.UniqueOpts.ByArgs).To(BeTrue())
		})

		It("folds only into jobs that are still in flight", func() {
			opts := pipeline.EvaluationArgs{}.InsertOpts()
			Expect(opts.UniqueOpts.ByState).To(ContainElements(
				rivertype.JobStateAvailable,
				rivertype.JobStateRunning,
			))
			// A finished job must not swallow a re-evaluation request.
			Expect(opts.UniqueOpts.ByState).NotTo(ContainElement(rivertype.JobStateCompleted))
		})
	})
})

var _ = Describe("stage workers", func() {
	Describe("Timeout", func() {
		It("returns the stage timeout", func() {
			worker := pipeline.NewEvaluationWorker(nil, nil)
			Expect(worker.Timeout(nil)).To(Equal(pipeline.JobTimeout))
		})
	})
})
