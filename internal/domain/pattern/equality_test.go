package pattern_test

import (
	"testing"

	"github.com/sophialabs/stubwire/internal/domain/pattern"
)

func TestEqualTo_Exact(t *testing.T) {
	p := pattern.EqualTo("hello world")

	if !p.Match(strptr("hello world")).IsExactMatch() {
		t.Error("expected exact match for equal strings")
	}
}

func TestEqualTo_GradesByEditDistance(t *testing.T) {
	p := pattern.EqualTo("abcdefghij")

	near := p.Match(strptr("abcdefghiX"))
	far := p.Match(strptr("XXXXXXXXXX"))

	if near.IsExactMatch() || far.IsExactMatch() {
		t.Fatal("expected non-exact results")
	}
	if near.Distance() <= 0 {
		t.Error("near miss should carry positive distance")
	}
	if near.Distance() >= far.Distance() {
		t.Errorf("one-character difference (%v) should be closer than total mismatch (%v)",
			near.Distance(), far.Distance())
	}
	if far.Distance() != 1.0 {
		t.Errorf("total mismatch should have distance 1.0, got %v", far.Distance())
	}
}

func TestEqualTo_NilIsNoMatch(t *testing.T) {
	r := pattern.EqualTo("anything").Match(nil)
	if r.IsExactMatch() || r.Distance() != 1.0 {
		t.Errorf("expected no-match for nil, got exact=%v distance=%v", r.IsExactMatch(), r.Distance())
	}
}

func TestContaining(t *testing.T) {
	p := pattern.Containing("needle")

	if !p.Match(strptr("hay needle stack")).IsExactMatch() {
		t.Error("expected match when substring present")
	}
	if p.Match(strptr("just hay")).IsExactMatch() {
		t.Error("expected no match when substring absent")
	}
	if p.Match(nil).IsExactMatch() {
		t.Error("expected no match for nil")
	}
}
