package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformGroupsBySuffix(t *testing.T) {
	flat := []CriteriaGrade{
		{QuestionNumber: "1a", Score: 2, MaxScore: 3},
		{QuestionNumber: "1b", Score: 1, MaxScore: 1},
		{QuestionNumber: "2", Score: 4, MaxScore: 5},
	}

	out := Transform(flat)
	require.Len(t, out, 2)

	q1 := out[0]
	assert.Equal(t, "1", q1.QuestionNumber)
	assert.Equal(t, 3.0, q1.EarnedScore)
	assert.Equal(t, 4.0, q1.MaxScore)
	require.Len(t, q1.Subsections, 2)
	assert.Equal(t, "a", q1.Subsections[0].SubsectionNumber)
	assert.Equal(t, "b", q1.Subsections[1].SubsectionNumber)

	q2 := out[1]
	assert.Equal(t, "2", q2.QuestionNumber)
	assert.Equal(t, 4.0, q2.EarnedScore)
	assert.Equal(t, 5.0, q2.MaxScore)
	require.Len(t, q2.Subsections, 1)
	assert.Equal(t, "", q2.Subsections[0].SubsectionNumber)
}

func TestTransformTotalAcrossTree(t *testing.T) {
	flat := []CriteriaGrade{
		{QuestionNumber: "1a", Score: 2, MaxScore: 3},
		{QuestionNumber: "1b", Score: 1, MaxScore: 1},
		{QuestionNumber: "2", Score: 4, MaxScore: 5},
	}

	tree := ScoresToTree(Transform(flat))
	earned, max := tree.Overall()
	assert.Equal(t, 7.0, earned)
	assert.Equal(t, 9.0, max)

	require.Len(t, tree.Root.Children, 2)
	q1 := tree.Root.Children[0]
	require.Len(t, q1.Children, 2)
	assert.Equal(t, CanonicalKey("1.1"), q1.Children[0].ID)
	assert.Equal(t, CanonicalKey("1.2"), q1.Children[1].ID)

	// Question 2 had no subsections, so it stays a leaf.
	q2 := tree.Root.Children[1]
	assert.True(t, q2.IsLeaf())
	assert.Equal(t, CanonicalKey("2"), q2.ID)
	assert.Equal(t, 4.0, q2.EarnedScore)
}

func TestTransformMixedIdentifierFormats(t *testing.T) {
	flat := []CriteriaGrade{
		{QuestionNumber: "1.1", Score: 1, MaxScore: 1},
		{QuestionNumber: "1.2", Score: 0.5, MaxScore: 1},
		{QuestionNumber: "3a", Score: 2, MaxScore: 2, Feedback: "good"},
		{QuestionNumber: "3b", Score: 1, MaxScore: 1},
		{QuestionNumber: "10", Score: 5, MaxScore: 5},
		{QuestionNumber: "2(i)", Score: 1, MaxScore: 2},
	}

	out := Transform(flat)
	require.Len(t, out, 4)

	// Numeric ascending on the base question, 10 after 2 and 3.
	assert.Equal(t, "1", out[0].QuestionNumber)
	assert.Equal(t, "2", out[1].QuestionNumber)
	assert.Equal(t, "3", out[2].QuestionNumber)
	assert.Equal(t, "10", out[3].QuestionNumber)

	assert.Equal(t, 1.5, out[0].EarnedScore)
	assert.Equal(t, "i", out[1].Subsections[0].SubsectionNumber)
	assert.Equal(t, "good", out[2].Feedback)
}

func TestTransformEmpty(t *testing.T) {
	assert.Nil(t, Transform(nil))
	assert.Nil(t, Transform([]CriteriaGrade{}))
}

func TestLeafScoresPrefersNestedShape(t *testing.T) {
	res := &EvaluationResult{
		QuestionScores: []QuestionScore{
			{
				QuestionNumber: "1",
				EarnedScore:    3,
				MaxScore:       4,
				Subsections: []Subsection{
					{SubsectionNumber: "a", EarnedScore: 2, MaxScore: 3},
					{SubsectionNumber: "b", EarnedScore: 1, MaxScore: 1},
				},
			},
			{QuestionNumber: "2", EarnedScore: 4, MaxScore: 5},
		},
		// A stale legacy list that must be ignored.
		CriteriaGrades: []CriteriaGrade{{QuestionNumber: "9", Score: 9, MaxScore: 9}},
	}

	leaves := res.LeafScores()
	assert.Equal(t, LeafScore{Earned: 2}, leaves["1.1"])
	assert.Equal(t, LeafScore{Earned: 1}, leaves["1.2"])
	assert.Equal(t, LeafScore{Earned: 4}, leaves["2"])
	assert.NotContains(t, leaves, CanonicalKey("9"))
}

func TestLeafScoresFallsBackToFlatShape(t *testing.T) {
	res := &EvaluationResult{
		CriteriaGrades: []CriteriaGrade{
			{QuestionNumber: "1a", Score: 2, MaxScore: 3},
			{QuestionNumber: "2", Score: 4, MaxScore: 5},
		},
	}

	leaves := res.LeafScores()
	assert.Equal(t, 2.0, leaves["1.1"].Earned)
	assert.Equal(t, 4.0, leaves["2"].Earned)
}
