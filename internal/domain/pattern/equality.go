package pattern

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// EqualToPattern matches a value by string equality. Non-equal values are
// graded by normalized edit distance so near misses rank close.
type EqualToPattern struct {
	expected string
}

// EqualTo creates an equality pattern.
func EqualTo(expected string) *EqualToPattern {
	return &EqualToPattern{expected: expected}
}

func (p *EqualToPattern) Match(value *string) MatchResult {
	if value == nil {
		return NoMatch()
	}
	if *value == p.expected {
		return ExactMatch()
	}
	return PartialMatch(normalizedEditDistance(p.expected, *value))
}

func (p *EqualToPattern) Key() string      { return "equalTo" }
func (p *EqualToPattern) Expected() string { return p.expected }

// normalizedEditDistance returns the Levenshtein distance between a and b
// scaled by the longer length. Callers guarantee a != b, so the result is
// always positive.
func normalizedEditDistance(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

// ContainsPattern matches when the candidate contains a substring.
type ContainsPattern struct {
	expected string
}

// Containing creates a substring pattern.
func Containing(expected string) *ContainsPattern {
	return &ContainsPattern{expected: expected}
}

func (p *ContainsPattern) Match(value *string) MatchResult {
	if value == nil || !strings.Contains(*value, p.expected) {
		return NoMatch()
	}
	return ExactMatch()
}

func (p *ContainsPattern) Key() string      { return "contains" }
func (p *ContainsPattern) Expected() string { return p.expected }
