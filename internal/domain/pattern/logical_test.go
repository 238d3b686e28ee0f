package pattern_test

import (
	"testing"

	"github.com/sophialabs/stubwire/internal/domain/pattern"
)

func TestAllOf(t *testing.T) {
	p := pattern.AllOf(
		pattern.Containing("alpha"),
		pattern.Containing("beta"),
	)

	if !p.Match(strptr("alpha and beta")).IsExactMatch() {
		t.Error("expected match when all operands match")
	}
	if p.Match(strptr("alpha only")).IsExactMatch() {
		t.Error("expected no match when one operand fails")
	}
}

func TestAllOf_DistanceIsWorstOperand(t *testing.T) {
	p := pattern.AllOf(
		pattern.EqualTo("abcdefghij"),
		pattern.EqualTo("abcdefghij"),
	)
	// Both operands are one character off: distance is the max, not the sum.
	r := p.Match(strptr("abcdefghiX"))
	if r.IsExactMatch() {
		t.Fatal("expected non-exact")
	}
	if r.Distance() != 0.1 {
		t.Errorf("expected worst-operand distance 0.1, got %v", r.Distance())
	}
}

func TestAnyOf(t *testing.T) {
	p := pattern.AnyOf(
		pattern.EqualTo("yes"),
		pattern.EqualTo("y"),
	)

	if !p.Match(strptr("y")).IsExactMatch() {
		t.Error("expected match when one operand matches")
	}
	if p.Match(strptr("no")).IsExactMatch() {
		t.Error("expected no match when no operand matches")
	}
}

func TestNot(t *testing.T) {
	p := pattern.Not(pattern.Containing("forbidden"))

	if !p.Match(strptr("allowed content")).IsExactMatch() {
		t.Error("expected match when operand fails")
	}
	if p.Match(strptr("forbidden content")).IsExactMatch() {
		t.Error("expected no match when operand matches")
	}
}

// Absent candidates never match, even through composites whose truth table
// would otherwise invert the outcome.
func TestComposites_NilIsAlwaysNoMatch(t *testing.T) {
	patterns := []pattern.ValuePattern{
		pattern.AllOf(),
		pattern.AnyOf(pattern.EqualTo("x")),
		pattern.Not(pattern.EqualTo("x")),
	}
	for _, p := range patterns {
		r := p.Match(nil)
		if r.IsExactMatch() || r.Distance() != 1.0 {
			t.Errorf("%s: expected no-match for nil, got exact=%v distance=%v",
				p.Key(), r.IsExactMatch(), r.Distance())
		}
	}
}
