package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/gradeflow/gradeflow/internal/store/model"
)

// Prompt builders for the oracle calls each stage performs. Every prompt
// demands raw JSON with an explicit shape; the parser still repairs the
// output because the backend does not always comply.

const briefPrompt = `You are processing an assignment document for automated grading.
Transcribe the attached document completely and extract its header metadata.
Respond with raw JSON only, no markdown fences, in this exact shape:
{"title": "<assignment title or empty>", "totalPoints": <number or 0>, "text": "<full transcription>"}`

const rubricPrompt = `You are processing a grading rubric document.
Extract every task and subtask with its marks, preserving the hierarchy and the
original task identifiers exactly as written (e.g. "1a", "2(i)", "3.2.1").
Respond with raw JSON only, no markdown fences, in this exact shape:
{"title": "<rubric title>", "total_marks": <number>, "format_type": "hierarchical",
 "tasks": [{"task_id": "<id>", "title": "<t>", "description": "<d>", "marks": <n>,
            "sub_tasks": [{"sub_task_id": "<id>", "description": "<d>", "marks": <n>}]}]}`

func rubricFromBriefPrompt(briefText string) string {
	return fmt.Sprintf(`No rubric document was provided. Derive a grading rubric from the
marks mentioned in the assignment text below, preserving the question identifiers
exactly as written. Respond with raw JSON only, in this exact shape:
{"title": "<title>", "total_marks": <number>, "format_type": "hierarchical",
 "tasks": [{"task_id": "<id>", "description": "<d>", "marks": <n>,
            "sub_tasks": [{"sub_task_id": "<id>", "description": "<d>", "marks": <n>}]}]}

Assignment text:
%s`, briefText)
}

const transcriptPrompt = `Transcribe the attached document completely, including all
mathematical working and diagrams described in words. Respond with raw JSON only,
no markdown fences: {"text": "<full transcription>"}`

func evaluationPrompt(a *model.Assignment) string {
	rubricJSON := "(no rubric available; derive the structure from the assignment text)"
	if a.RubricTree != nil {
		if data, err := json.Marshal(a.RubricTree.Data); err == nil {
			rubricJSON = string(data)
		}
	}
	solution := a.SolutionText
	if solution == "" {
		solution = "(no model solution available; grade on correctness and method)"
	}

	return fmt.Sprintf(`Grade the attached student submission against the assignment below.
Score every task and subtask of the rubric, keeping the rubric's identifiers verbatim
in questionNumber/subsectionNumber. Respond with raw JSON only, no markdown fences:
{"overallGrade": <number>, "totalPossible": <number>, "overallFeedback": "<summary>",
 "questionScores": [{"questionNumber": "<id>", "earnedScore": <n>, "maxScore": <n>,
                     "feedback": "<f>", "subsections": [{"subsectionNumber": "<id>",
                     "earnedScore": <n>, "maxScore": <n>, "feedback": "<f>"}]}],
 "lostMarks": [{"area": "<task>", "pointsLost": <n>, "reason": "<why>"}]}

Assignment:
%s

Rubric:
%s

Model solution:
%s`, a.BriefText, rubricJSON, solution)
}

func validationPrompt(a *model.Assignment) string {
	rubricJSON := "(none)"
	if a.RubricTree != nil {
		if data, err := json.Marshal(a.RubricTree.Data); err == nil {
			rubricJSON = string(data)
		}
	}
	solution := a.SolutionText
	if solution == "" {
		solution = "(none)"
	}

	return fmt.Sprintf(`Cross-validate the processed assignment artifacts below for internal
consistency: rubric totals vs assignment totals, tasks missing from either side, and
solution coverage. Respond with raw JSON only: {"warnings": ["<finding>", ...]}.
An empty list means everything is consistent.

Assignment:
%s

Rubric:
%s

Model solution:
%s`, a.BriefText, rubricJSON, solution)
}
