package oracle

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/pkg/errors"

	"github.com/gradeflow/gradeflow/internal/grading"
)

// CleanResponse strips the markdown code fences the backend sometimes
// wraps around its JSON payload.
func CleanResponse(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// decode unmarshals near-JSON into out, repairing it first when a straight
// parse fails. Truncated or single-quoted payloads are common enough from
// the backend that repair is part of the normal path, not an exception.
func decode(text string, out any) error {
	cleaned := CleanResponse(text)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return errors.Wrap(ErrMalformedOutput, err.Error())
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return errors.Wrap(ErrMalformedOutput, err.Error())
	}
	return nil
}

// DecodeEvaluation parses an evaluation reply and validates that it
// carries a numeric overall grade and at least one grade in either the
// nested or the flat shape. An absent overallGrade is a structural
// failure, not a zero score.
func DecodeEvaluation(text string) (*grading.EvaluationResult, error) {
	result := &grading.EvaluationResult{}
	if err := decode(text, result); err != nil {
		return nil, err
	}
	var presence struct {
		OverallGrade *float64 `json:"overallGrade"`
	}
	if err := decode(text, &presence); err != nil {
		return nil, err
	}
	if presence.OverallGrade == nil {
		return nil, errors.Wrap(ErrMalformedOutput, "evaluation carries no overallGrade")
	}
	if len(result.QuestionScores) == 0 && len(result.CriteriaGrades) == 0 {
		return nil, errors.Wrap(ErrMalformedOutput, "evaluation carries no question scores")
	}
	return result, nil
}

// BriefExtract is the structured output of assignment document
// processing: the transcribed text plus whatever header metadata the
// document declares.
type BriefExtract struct {
	Title       string  `json:"title,omitempty"`
	TotalPoints float64 `json:"totalPoints,omitempty"`
	Text        string  `json:"text"`
}

func DecodeBrief(text string) (*BriefExtract, error) {
	extract := &BriefExtract{}
	if err := decode(text, extract); err != nil {
		return nil, err
	}
	if extract.Text == "" {
		return nil, errors.Wrap(ErrMalformedOutput, "brief extraction carries no text")
	}
	return extract, nil
}

// Transcript is a plain document transcription reply.
type Transcript struct {
	Text string `json:"text"`
}

func DecodeTranscript(text string) (*Transcript, error) {
	transcript := &Transcript{}
	if err := decode(text, transcript); err != nil {
		return nil, err
	}
	if transcript.Text == "" {
		return nil, errors.Wrap(ErrMalformedOutput, "transcription carries no text")
	}
	return transcript, nil
}

// Validation is the cross-validation reply of the orchestration stage.
// An empty warning list is a clean pass.
type Validation struct {
	Warnings []string `json:"warnings"`
}

func DecodeValidation(text string) (*Validation, error) {
	validation := &Validation{}
	if err := decode(text, validation); err != nil {
		return nil, err
	}
	return validation, nil
}

// DecodeRubric parses a rubric extraction reply.
func DecodeRubric(text string) (*grading.RubricSchema, error) {
	schema := &grading.RubricSchema{}
	if err := decode(text, schema); err != nil {
		return nil, err
	}
	if len(schema.Tasks) == 0 {
		return nil, errors.Wrap(ErrMalformedOutput, "rubric carries no tasks")
	}
	return schema, nil
}
