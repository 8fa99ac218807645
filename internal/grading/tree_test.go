package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deepRubric() *RubricSchema {
	// Parent 3.2 declares max_marks that double-counts its children;
	// the tree must keep 3.2.1 = 2 and 3.2.2 = 1 and derive 3.2 = 3.
	return &RubricSchema{
		Title:      "Complex Assignment",
		TotalMarks: 15,
		Tasks: []RubricTask{
			{
				TaskID:   "3",
				Title:    "Task 3",
				MaxMarks: 15,
				SubTasks: []RubricTask{
					{
						SubTaskID: "3.2",
						MaxMarks:  6,
						SubTasks: []RubricTask{
							{SubTaskID: "3.2.1", Description: "Analysis", Marks: 2},
							{SubTaskID: "3.2.2", Description: "Implementation", Marks: 1},
						},
					},
				},
			},
		},
	}
}

func TestBuildTreeBottomUpSums(t *testing.T) {
	tree, err := BuildTree(deepRubric())
	require.NoError(t, err)

	require.Len(t, tree.Children, 1)
	task3 := tree.Children[0]
	assert.Equal(t, CanonicalKey("3"), task3.ID)
	// Declared max_marks 15 on task 3 and 6 on 3.2 are both ignored.
	assert.Equal(t, 3.0, task3.MaxScore)

	require.Len(t, task3.Children, 1)
	sub := task3.Children[0]
	assert.Equal(t, CanonicalKey("3.2"), sub.ID)
	assert.Equal(t, 3.0, sub.MaxScore)

	require.Len(t, sub.Children, 2)
	assert.Equal(t, CanonicalKey("3.2.1"), sub.Children[0].ID)
	assert.Equal(t, 2.0, sub.Children[0].MaxScore)
	assert.Equal(t, CanonicalKey("3.2.2"), sub.Children[1].ID)
	assert.Equal(t, 1.0, sub.Children[1].MaxScore)

	assert.Equal(t, 3.0, tree.MaxScore)
}

func TestBuildTreeInvariant(t *testing.T) {
	tree, err := BuildTree(deepRubric())
	require.NoError(t, err)

	var check func(n *TaskNode)
	check = func(n *TaskNode) {
		if n.IsLeaf() {
			return
		}
		var sum float64
		for i := range n.Children {
			sum += n.Children[i].MaxScore
			check(&n.Children[i])
		}
		assert.Equal(t, sum, n.MaxScore, "node %s max is not the sum of its children", n.ID)
	}
	check(tree)
}

func TestBuildTreeRejectsEmptyRubric(t *testing.T) {
	_, err := BuildTree(nil)
	assert.Error(t, err)
	_, err = BuildTree(&RubricSchema{})
	assert.Error(t, err)
}

func TestScoreRollup(t *testing.T) {
	schema := &RubricSchema{
		Tasks: []RubricTask{
			{
				TaskID: "1",
				SubTasks: []RubricTask{
					{SubTaskID: "1.1", Marks: 3},
					{SubTaskID: "1.2", Marks: 1},
				},
			},
		},
	}
	tree, err := BuildTree(schema)
	require.NoError(t, err)
	assert.Equal(t, 4.0, tree.MaxScore)

	scored := Score(tree, map[CanonicalKey]LeafScore{
		"1.1": {Earned: 2},
		"1.2": {Earned: 1},
	})

	q1 := scored.Root.Children[0]
	assert.Equal(t, 3.0, q1.EarnedScore)
	assert.Equal(t, 4.0, q1.MaxScore)

	earned, max := scored.Overall()
	assert.Equal(t, 3.0, earned)
	assert.Equal(t, 4.0, max)
	assert.Empty(t, scored.Warnings)
}

func TestScoreMissingLeafScoresZeroWithWarning(t *testing.T) {
	tree, err := BuildTree(deepRubric())
	require.NoError(t, err)

	scored := Score(tree, map[CanonicalKey]LeafScore{
		"3.2.1": {Earned: 2, Feedback: "good analysis"},
	})

	leaf322 := scored.Root.Children[0].Children[0].Children[1]
	assert.Equal(t, CanonicalKey("3.2.2"), leaf322.ID)
	assert.Zero(t, leaf322.EarnedScore)
	assert.True(t, leaf322.Missing)

	earned, max := scored.Overall()
	assert.Equal(t, 2.0, earned)
	assert.Equal(t, 3.0, max)

	require.Len(t, scored.Warnings, 1)
	assert.Contains(t, scored.Warnings[0], "3.2.2")
}
