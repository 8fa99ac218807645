package grading

import (
	"fmt"

	"github.com/pkg/errors"
)

// RubricSchema is the raw rubric shape as returned by the scoring oracle.
type RubricSchema struct {
	Title      string       `json:"title,omitempty"`
	TotalMarks float64      `json:"total_marks,omitempty"`
	FormatType string       `json:"format_type,omitempty"`
	Tasks      []RubricTask `json:"tasks"`
}

// RubricTask is one node of the raw rubric. Top-level entries carry
// task_id, nested ones sub_task_id; marks appears on leaves while internal
// nodes sometimes declare a max_marks of their own.
type RubricTask struct {
	TaskID      string       `json:"task_id,omitempty"`
	SubTaskID   string       `json:"sub_task_id,omitempty"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Marks       float64      `json:"marks,omitempty"`
	MaxMarks    float64      `json:"max_marks,omitempty"`
	SubTasks    []RubricTask `json:"sub_tasks,omitempty"`
}

func (t RubricTask) rawID() string {
	if t.TaskID != "" {
		return t.TaskID
	}
	return t.SubTaskID
}

func (t RubricTask) label() string {
	if t.Description != "" {
		return t.Description
	}
	return t.Title
}

// TaskNode is one node of the canonical rubric tree. A node is a leaf iff
// it has no children, and only leaves carry an authoritative max score.
type TaskNode struct {
	ID          CanonicalKey `json:"id"`
	RawID       string       `json:"rawId,omitempty"`
	Description string       `json:"description,omitempty"`
	MaxScore    float64      `json:"maxScore"`
	Children    []TaskNode   `json:"children,omitempty"`
}

func (n *TaskNode) IsLeaf() bool { return len(n.Children) == 0 }

// BuildTree converts a raw rubric into the canonical task tree. An
// internal node's max score is always recomputed as the sum of its
// children's, never taken from a declared value: hierarchical rubrics have
// been observed to declare the aggregate on the parent while the children
// separately declare the full sub-scores, and trusting both double-counts.
func BuildTree(schema *RubricSchema) (*TaskNode, error) {
	if schema == nil || len(schema.Tasks) == 0 {
		return nil, errors.New("rubric defines no tasks")
	}

	root := &TaskNode{Description: schema.Title}
	for _, t := range schema.Tasks {
		child, err := buildNode("", t)
		if err != nil {
			return nil, err
		}
		root.MaxScore += child.MaxScore
		root.Children = append(root.Children, *child)
	}
	return root, nil
}

func buildNode(parent CanonicalKey, t RubricTask) (*TaskNode, error) {
	raw := t.rawID()
	if raw == "" {
		return nil, fmt.Errorf("rubric task under %q has no identifier", parent)
	}

	node := &TaskNode{
		ID:          Normalize(parent, raw),
		RawID:       raw,
		Description: t.label(),
	}

	if len(t.SubTasks) == 0 {
		node.MaxScore = t.Marks
		if node.MaxScore == 0 {
			node.MaxScore = t.MaxMarks
		}
		return node, nil
	}

	for _, st := range t.SubTasks {
		child, err := buildNode(node.ID, st)
		if err != nil {
			return nil, err
		}
		node.MaxScore += child.MaxScore
		node.Children = append(node.Children, *child)
	}
	return node, nil
}

// LeafScore is an oracle-supplied earned score for one leaf key.
type LeafScore struct {
	Earned   float64
	Feedback string
}

// ScoreNode mirrors TaskNode with earned scores filled in.
type ScoreNode struct {
	ID          CanonicalKey `json:"id"`
	RawID       string       `json:"rawId,omitempty"`
	Description string       `json:"description,omitempty"`
	MaxScore    float64      `json:"maxScore"`
	EarnedScore float64      `json:"earnedScore"`
	Feedback    string       `json:"feedback,omitempty"`
	Missing     bool         `json:"missing,omitempty"`
	Children    []ScoreNode  `json:"children,omitempty"`
}

func (n *ScoreNode) IsLeaf() bool { return len(n.Children) == 0 }

// ScoreTree is the immutable result of mapping one submission's oracle
// scores onto a rubric tree. Re-evaluation produces a new tree.
type ScoreTree struct {
	Root     ScoreNode `json:"root"`
	Warnings []string  `json:"warnings,omitempty"`
}

func (t *ScoreTree) Overall() (earned, max float64) {
	return t.Root.EarnedScore, t.Root.MaxScore
}

// Score maps leaf scores onto the task tree. A leaf the oracle did not
// return scores zero and is flagged missing with a warning, not dropped;
// an incomplete grading is still useful to a reviewer. Internal earned
// scores are always the sum of the children's, never the oracle's word.
func Score(tree *TaskNode, leaves map[CanonicalKey]LeafScore) *ScoreTree {
	st := &ScoreTree{}
	st.Root = *scoreNode(tree, leaves, st)
	return st
}

func scoreNode(n *TaskNode, leaves map[CanonicalKey]LeafScore, st *ScoreTree) *ScoreNode {
	out := &ScoreNode{
		ID:          n.ID,
		RawID:       n.RawID,
		Description: n.Description,
		MaxScore:    n.MaxScore,
	}

	if n.IsLeaf() {
		if ls, ok := leaves[n.ID]; ok {
			out.EarnedScore = ls.Earned
			out.Feedback = ls.Feedback
		} else {
			out.Missing = true
			st.Warnings = append(st.Warnings, fmt.Sprintf("no score returned for task %s, scored 0", n.ID))
		}
		return out
	}

	for i := range n.Children {
		child := scoreNode(&n.Children[i], leaves, st)
		out.EarnedScore += child.EarnedScore
		out.Children = append(out.Children, *child)
	}
	return out
}
