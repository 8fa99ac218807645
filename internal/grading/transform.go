package grading

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var baseNumberRe = regexp.MustCompile(`^\d+`)

// Transform converts the legacy flat grade list into the nested question
// shape. Entries are grouped by their base question number; an entry whose
// identifier is exactly the base number becomes the question's own value,
// anything else becomes a subsection leaf. Group totals are the sums of
// their entries. It exists solely so older oracle output shapes stay
// consumable without special-casing downstream.
func Transform(flat []CriteriaGrade) []QuestionScore {
	if len(flat) == 0 {
		return nil
	}

	groups := make(map[string]*QuestionScore)
	var order []string

	for _, g := range flat {
		id := strings.TrimSpace(g.QuestionNumber)
		base := baseNumberRe.FindString(id)
		if base == "" {
			base = id
		}

		q, ok := groups[base]
		if !ok {
			q = &QuestionScore{QuestionNumber: base}
			groups[base] = q
			order = append(order, base)
		}

		suffix := ""
		if id != base {
			suffix = strings.Trim(id[len(base):], " .()")
		}
		q.Subsections = append(q.Subsections, Subsection{
			SubsectionNumber: suffix,
			EarnedScore:      g.Score,
			MaxScore:         g.MaxScore,
			Feedback:         g.Feedback,
		})
		q.EarnedScore += g.Score
		q.MaxScore += g.MaxScore
	}

	sort.Slice(order, func(i, j int) bool {
		a, aerr := strconv.Atoi(order[i])
		b, berr := strconv.Atoi(order[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return order[i] < order[j]
	})

	out := make([]QuestionScore, 0, len(order))
	for _, base := range order {
		q := groups[base]
		sort.SliceStable(q.Subsections, func(i, j int) bool {
			return q.Subsections[i].SubsectionNumber < q.Subsections[j].SubsectionNumber
		})
		q.Feedback = joinFeedback(q.Subsections)
		out = append(out, *q)
	}
	return out
}

func joinFeedback(subs []Subsection) string {
	var parts []string
	for _, s := range subs {
		if f := strings.TrimSpace(s.Feedback); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}
