package service

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gradeflow/gradeflow/internal/grading"
	"github.com/gradeflow/gradeflow/internal/store/model"
)

func submissionWithLeaves(student string, leaves map[grading.CanonicalKey][2]float64) model.Submission {
	tree := grading.ScoreTree{}
	var total, possible float64
	for key, v := range leaves {
		tree.Root.Children = append(tree.Root.Children, grading.ScoreNode{
			ID:          key,
			EarnedScore: v[0],
			MaxScore:    v[1],
		})
		total += v[0]
		possible += v[1]
	}
	tree.Root.EarnedScore = total
	tree.Root.MaxScore = possible

	return model.Submission{
		ID:            uuid.New(),
		StudentID:     student,
		ScoreTree:     model.MakeJSONField(tree),
		TotalScore:    &total,
		TotalPossible: &possible,
	}
}

func TestAssembleTableUnionColumns(t *testing.T) {
	subs := model.SubmissionList{
		submissionWithLeaves("s1", map[grading.CanonicalKey][2]float64{
			"1": {1, 2}, "2": {2, 2}, "3": {3, 3},
		}),
		submissionWithLeaves("s2", map[grading.CanonicalKey][2]float64{
			"1": {0, 2}, "2": {1, 2}, "4": {4, 5},
		}),
	}

	table := assembleTable(subs)

	keys := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, keys)

	require.Len(t, table.Rows, 2)
	// Submission 1 has no key 4 and submission 2 no key 3: both are nil,
	// not zero.
	assert.Nil(t, table.Rows[0].Cells["4"])
	assert.Nil(t, table.Rows[1].Cells["3"])
	require.NotNil(t, table.Rows[1].Cells["4"])
	assert.Equal(t, 4.0, *table.Rows[1].Cells["4"])
}

func TestAssembleTableUnevaluatedSubmission(t *testing.T) {
	subs := model.SubmissionList{
		submissionWithLeaves("s1", map[grading.CanonicalKey][2]float64{"1": {2, 3}}),
		{ID: uuid.New(), StudentID: "s2"}, // never evaluated
	}

	table := assembleTable(subs)
	require.Len(t, table.Rows, 2)
	assert.Nil(t, table.Rows[1].Cells["1"])
	assert.Zero(t, table.Rows[1].TotalScore)
}

func TestWriteXLSX(t *testing.T) {
	subs := model.SubmissionList{
		submissionWithLeaves("s1", map[grading.CanonicalKey][2]float64{
			"1": {2, 3}, "2": {1, 1},
		}),
		submissionWithLeaves("s2", map[grading.CanonicalKey][2]float64{
			"1": {3, 3},
		}),
	}
	table := assembleTable(subs)

	var buf bytes.Buffer
	svc := NewExportService(nil)
	require.NoError(t, svc.WriteXLSX(&buf, table))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Grades")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Task 1 (3)", rows[0][3])
	assert.Equal(t, "Task 2 (1)", rows[0][4])
	// Submission 2 has no score for task 2: explicit marker, not blank.
	assert.Equal(t, grading.NoData, rows[2][4])
}
