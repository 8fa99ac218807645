package grading

// EvaluationResult is the structured grade the scoring oracle returns for
// one submission. Newer oracle outputs populate QuestionScores (nested);
// older ones only populate CriteriaGrades (flat). Both are kept verbatim
// so a submission can be re-normalized if the rules evolve.
type EvaluationResult struct {
	OverallGrade    float64         `json:"overallGrade"`
	TotalPossible   float64         `json:"totalPossible"`
	OverallFeedback string          `json:"overallFeedback,omitempty"`
	QuestionScores  []QuestionScore `json:"questionScores,omitempty"`
	CriteriaGrades  []CriteriaGrade `json:"criteriaGrades,omitempty"`
	LostMarks       []LostMark      `json:"lostMarks,omitempty"`
}

// QuestionScore is one question's grade with optional per-subsection
// breakdown. An empty subsection number means the question's own value.
type QuestionScore struct {
	QuestionNumber string       `json:"questionNumber"`
	EarnedScore    float64      `json:"earnedScore"`
	MaxScore       float64      `json:"maxScore"`
	Feedback       string       `json:"feedback,omitempty"`
	Subsections    []Subsection `json:"subsections,omitempty"`
}

type Subsection struct {
	SubsectionNumber string  `json:"subsectionNumber"`
	EarnedScore      float64 `json:"earnedScore"`
	MaxScore         float64 `json:"maxScore"`
	Feedback         string  `json:"feedback,omitempty"`
}

// CriteriaGrade is the legacy flat shape: one entry per graded criterion
// with a free-form identifier.
type CriteriaGrade struct {
	QuestionNumber string  `json:"questionNumber"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"maxScore"`
	Feedback       string  `json:"feedback,omitempty"`
}

// LostMark is a deduction note used for reviewer-facing feedback.
type LostMark struct {
	Area       string  `json:"area"`
	PointsLost float64 `json:"pointsLost"`
	Reason     string  `json:"reason"`
}

// Questions returns the nested question scores, transforming the legacy
// flat grades when the nested shape is absent.
func (r *EvaluationResult) Questions() []QuestionScore {
	if len(r.QuestionScores) > 0 {
		return r.QuestionScores
	}
	return Transform(r.CriteriaGrades)
}

// LeafScores flattens the result into canonical leaf keys. Every returned
// identifier goes through Normalize so that differently formatted labels
// land on the same column across submissions.
func (r *EvaluationResult) LeafScores() map[CanonicalKey]LeafScore {
	leaves := make(map[CanonicalKey]LeafScore)
	for _, q := range r.Questions() {
		qKey := Normalize("", q.QuestionNumber)
		if len(q.Subsections) == 0 {
			leaves[qKey] = LeafScore{Earned: q.EarnedScore, Feedback: q.Feedback}
			continue
		}
		for _, s := range q.Subsections {
			key := Normalize(qKey, s.SubsectionNumber)
			leaves[key] = LeafScore{Earned: s.EarnedScore, Feedback: s.Feedback}
		}
	}
	return leaves
}

// ScoresToTree builds a score tree directly from the oracle's question
// scores, for assignments graded without a processed rubric. Question and
// root totals are recomputed from the leaves rather than trusted.
func ScoresToTree(questions []QuestionScore) *ScoreTree {
	st := &ScoreTree{}
	for _, q := range questions {
		qKey := Normalize("", q.QuestionNumber)
		node := ScoreNode{
			ID:       qKey,
			RawID:    q.QuestionNumber,
			Feedback: q.Feedback,
		}

		if len(q.Subsections) == 0 || onlyOwnValue(q.Subsections) {
			node.EarnedScore = q.EarnedScore
			node.MaxScore = q.MaxScore
			if len(q.Subsections) == 1 {
				node.EarnedScore = q.Subsections[0].EarnedScore
				node.MaxScore = q.Subsections[0].MaxScore
				if node.Feedback == "" {
					node.Feedback = q.Subsections[0].Feedback
				}
			}
		} else {
			for _, s := range q.Subsections {
				child := ScoreNode{
					ID:          Normalize(qKey, s.SubsectionNumber),
					RawID:       s.SubsectionNumber,
					EarnedScore: s.EarnedScore,
					MaxScore:    s.MaxScore,
					Feedback:    s.Feedback,
				}
				node.EarnedScore += child.EarnedScore
				node.MaxScore += child.MaxScore
				node.Children = append(node.Children, child)
			}
		}

		st.Root.EarnedScore += node.EarnedScore
		st.Root.MaxScore += node.MaxScore
		st.Root.Children = append(st.Root.Children, node)
	}
	return st
}

// onlyOwnValue reports whether the subsection list is just the question's
// own value (a single entry with no subsection number).
func onlyOwnValue(subs []Subsection) bool {
	return len(subs) == 1 && subs[0].SubsectionNumber == ""
}
