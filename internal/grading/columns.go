package grading

import "sort"

// NoData marks an export cell for which a submission has no score at all.
// It is rendered explicitly so "absent" can never be misread as zero.
const NoData = "-"

// Column is one canonical leaf key of the export schema, paired with the
// maximum max score observed for that key across all submissions. Taking
// the maximum guards against a rubric value varying slightly between
// extractions.
type Column struct {
	Key      CanonicalKey `json:"key"`
	MaxScore float64      `json:"maxScore"`
}

// BuildColumns computes the union of leaf keys across the given score
// trees, ordered segment-wise numerically. It is pure: same trees in, same
// schema out.
func BuildColumns(trees []*ScoreTree) []Column {
	seen := make(map[CanonicalKey]float64)
	for _, t := range trees {
		if t == nil {
			continue
		}
		walkLeaves(&t.Root, func(n *ScoreNode) {
			if n.MaxScore > seen[n.ID] {
				seen[n.ID] = n.MaxScore
			} else if _, ok := seen[n.ID]; !ok {
				seen[n.ID] = n.MaxScore
			}
		})
	}

	cols := make([]Column, 0, len(seen))
	for key, max := range seen {
		cols = append(cols, Column{Key: key, MaxScore: max})
	}
	sort.Slice(cols, func(i, j int) bool {
		return Compare(cols[i].Key, cols[j].Key) < 0
	})
	return cols
}

// LeafValues flattens a tree's leaves into a key to earned-score map.
// Missing leaves are excluded, so the caller can tell "scored zero" from
// "no data".
func LeafValues(tree *ScoreTree) map[CanonicalKey]float64 {
	out := make(map[CanonicalKey]float64)
	if tree == nil {
		return out
	}
	walkLeaves(&tree.Root, func(n *ScoreNode) {
		if !n.Missing {
			out[n.ID] = n.EarnedScore
		}
	})
	return out
}

func walkLeaves(n *ScoreNode, fn func(*ScoreNode)) {
	if n.IsLeaf() {
		if n.ID != "" {
			fn(n)
		}
		return
	}
	for i := range n.Children {
		walkLeaves(&n.Children[i], fn)
	}
}
