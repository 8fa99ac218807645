package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		parent   CanonicalKey
		raw      string
		expected CanonicalKey
	}{
		{"simple number", "1", "1", "1.1"},
		{"simple number 2", "1", "2", "1.2"},
		{"standalone letter a", "1", "a", "1.1"},
		{"standalone letter b", "1", "b", "1.2"},
		{"standalone letter c", "2", "c", "2.3"},
		{"standalone roman i", "1", "i", "1.1"},
		{"standalone roman ii", "1", "ii", "1.2"},
		{"standalone roman iii", "2", "iii", "2.3"},
		{"letter suffix 1a", "1", "1a", "1.1"},
		{"letter suffix 1b", "1", "1b", "1.2"},
		{"nested letter suffix", "3", "2.1a", "3.2.1.1"},
		{"roman suffix 1ii", "1", "1ii", "1.2"},
		{"parenthetical letter", "1", "1(a)", "1.1"},
		{"parenthetical roman", "1", "1(ii)", "1.2"},
		{"nested parenthetical", "3", "2.2(i)", "3.2.2.1"},
		{"space separated letter", "1", "1 a", "1.1"},
		{"space separated roman", "1", "1 ii", "1.2"},
		{"already qualified", "3", "2.1", "3.2.1"},
		{"already qualified deep", "3", "2.1.1", "3.2.1.1"},
		{"question prefix stripped", "1", "Question 2", "1.2"},
		{"q prefix stripped", "", "Q3", "3"},
		{"dotted passthrough", "", "3.2.1", "3.2.1"},
		{"no parent letter suffix", "", "1a", "1.1"},
		{"empty label falls back to parent", "4", "", "4"},
		{"junk chars stripped", "", "3 . 2 . 1!", "3.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.parent, tt.raw))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []struct {
		parent CanonicalKey
		raw    string
	}{
		{"1", "1 a"},
		{"1", "(a)"},
		{"1", "1a"},
		{"1", "ii"},
		{"3", "2.2(i)"},
		{"", "Question 4"},
	}

	for _, in := range inputs {
		once := Normalize(in.parent, in.raw)
		twice := Normalize(in.parent, string(once))
		assert.Equal(t, once, twice, "normalize(%q, %q) is not idempotent", in.parent, in.raw)
	}
}

func TestNormalizeFormatEquivalence(t *testing.T) {
	// All of these denote the same logical position under question 1.
	assert.Equal(t, CanonicalKey("1.1"), Normalize("1", "a"))
	assert.Equal(t, CanonicalKey("1.1"), Normalize("1", "(a)"))
	assert.Equal(t, CanonicalKey("1.1"), Normalize("1", "1a"))
	assert.Equal(t, CanonicalKey("1.1"), Normalize("1", "1 a"))
	assert.Equal(t, CanonicalKey("1.2"), Normalize("1", "ii"))
}

func TestCompare(t *testing.T) {
	assert.Negative(t, Compare("1.2", "1.10"))
	assert.Positive(t, Compare("1.10", "1.2"))
	assert.Negative(t, Compare("1", "2"))
	assert.Negative(t, Compare("1", "1.1"))
	assert.Zero(t, Compare("3.2.1", "3.2.1"))
	assert.Negative(t, Compare("2.9", "10.1"))
}
