package grading

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// CanonicalKey is the normalized dotted-path identifier of a task or
// subtask, e.g. "3.2.1". Two raw labels that denote the same logical
// position always normalize to the same key, which is what keeps
// independently graded submissions columnar-comparable.
type CanonicalKey string

var romanValues = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5,
	"vi": 6, "vii": 7, "viii": 8, "ix": 9, "x": 10,
}

var (
	labelPrefixRe   = regexp.MustCompile(`(?i)^(task|question|q)\s*`)
	parentheticalRe = regexp.MustCompile(`(\d+(?:\.\d+)*)\(([^)]+)\)`)
	letterSuffixRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)*)([a-z])$`)
	romanSuffixRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)*)([ivx]+)$`)
	spacedSuffixRe  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)*)\s+([a-z]+)$`)
	nonKeyCharsRe   = regexp.MustCompile(`[^\d.]`)
	multiDotRe      = regexp.MustCompile(`\.{2,}`)
	singleLetterRe  = regexp.MustCompile(`(?i)^[a-z]$`)
	bareDigitsRe    = regexp.MustCompile(`^\d+$`)
)

// rewriteRule is one entry of the ordered normalization table. Rules run
// top to bottom over the label; each sees the output of the previous one.
type rewriteRule struct {
	name    string
	rewrite func(label string) string
}

var rewriteRules = []rewriteRule{
	{"parenthetical", rewriteParenthetical},
	{"bare-roman", rewriteBareRoman},
	{"letter-suffix", rewriteLetterSuffix},
	{"roman-suffix", rewriteRomanSuffix},
	{"spaced-suffix", rewriteSpacedSuffix},
	{"strip", stripToCanonical},
}

// Normalize converts a free-form task label into its canonical key,
// anchored under the owning question's key when one is supplied. It is a
// pure function of its inputs and idempotent: feeding a canonical key back
// in returns it unchanged.
func Normalize(parent CanonicalKey, raw string) CanonicalKey {
	label := strings.TrimSpace(raw)
	label = labelPrefixRe.ReplaceAllString(label, "")
	fallback := label

	for _, rule := range rewriteRules {
		label = rule.rewrite(label)
	}

	// Standalone letters and romans strip to nothing; map them directly.
	if label == "" {
		label = mapStandalone(fallback)
	}
	if label == "" {
		return parent
	}
	if parent == "" {
		return CanonicalKey(label)
	}
	// Subtask labels are relative to the question, but an oracle sometimes
	// returns the fully qualified key already. Re-prefixing it would
	// produce "1.1.1" out of "1.1".
	if strings.HasPrefix(label, string(parent)+".") {
		return CanonicalKey(label)
	}
	return CanonicalKey(string(parent) + "." + label)
}

func letterValue(c byte) int {
	return int((c|0x20)-'a') + 1
}

// mapSubLabel maps a parenthetical or spaced suffix to its numeric form:
// romans by value, single letters by alphabet position.
func mapSubLabel(content string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(content))
	if v, ok := romanValues[c]; ok {
		return strconv.Itoa(v), true
	}
	if singleLetterRe.MatchString(c) {
		return strconv.Itoa(letterValue(c[0])), true
	}
	return "", false
}

func rewriteParenthetical(label string) string {
	return parentheticalRe.ReplaceAllStringFunc(label, func(m string) string {
		parts := parentheticalRe.FindStringSubmatch(m)
		if v, ok := mapSubLabel(parts[2]); ok {
			return parts[1] + "." + v
		}
		// Unrecognized content becomes a literal sub-path.
		return parts[1] + "." + strings.TrimSpace(parts[2])
	})
}

func rewriteBareRoman(label string) string {
	if v, ok := romanValues[strings.ToLower(label)]; ok {
		return strconv.Itoa(v)
	}
	return label
}

func rewriteLetterSuffix(label string) string {
	return letterSuffixRe.ReplaceAllStringFunc(label, func(m string) string {
		parts := letterSuffixRe.FindStringSubmatch(m)
		return parts[1] + "." + strconv.Itoa(letterValue(parts[2][0]))
	})
}

func rewriteRomanSuffix(label string) string {
	return romanSuffixRe.ReplaceAllStringFunc(label, func(m string) string {
		parts := romanSuffixRe.FindStringSubmatch(m)
		if v, ok := romanValues[strings.ToLower(parts[2])]; ok {
			return parts[1] + "." + strconv.Itoa(v)
		}
		return m
	})
}

func rewriteSpacedSuffix(label string) string {
	return spacedSuffixRe.ReplaceAllStringFunc(label, func(m string) string {
		parts := spacedSuffixRe.FindStringSubmatch(m)
		if v, ok := mapSubLabel(parts[2]); ok {
			return parts[1] + "." + v
		}
		return m
	})
}

func stripToCanonical(label string) string {
	label = nonKeyCharsRe.ReplaceAllString(label, "")
	label = multiDotRe.ReplaceAllString(label, ".")
	return strings.Trim(label, ".")
}

func mapStandalone(label string) string {
	label = strings.Trim(label, "() ")
	if v, ok := mapSubLabel(label); ok {
		return v
	}
	if bareDigitsRe.MatchString(label) {
		return label
	}
	return ""
}

// SortKeys sorts keys in place in canonical order.
func SortKeys(keys []CanonicalKey) {
	sort.Slice(keys, func(i, j int) bool {
		return Compare(keys[i], keys[j]) < 0
	})
}

// Compare orders two canonical keys segment-wise numerically, left to
// right, so "1.10" sorts after "1.2". A key that is a strict prefix of
// another sorts first.
func Compare(a, b CanonicalKey) int {
	as := strings.Split(string(a), ".")
	bs := strings.Split(string(b), ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aerr := strconv.Atoi(as[i])
		bi, berr := strconv.Atoi(bs[i])
		switch {
		case aerr == nil && berr == nil:
			if ai != bi {
				if ai < bi {
					return -1
				}
				return 1
			}
		case aerr == nil:
			return -1
		case berr == nil:
			return 1
		default:
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}
