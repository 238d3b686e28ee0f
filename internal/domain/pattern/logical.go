package pattern

import "strings"

// AndPattern matches when every operand matches. Its distance is the worst
// (largest) operand distance, so a conjunction is only as close as its
// furthest member.
type AndPattern struct {
	operands []ValuePattern
}

// AllOf creates a conjunction pattern.
func AllOf(operands ...ValuePattern) *AndPattern {
	return &AndPattern{operands: operands}
}

func (p *AndPattern) Match(value *string) MatchResult {
	if value == nil {
		return NoMatch()
	}
	exact := true
	worst := 0.0
	for _, op := range p.operands {
		r := op.Match(value)
		if !r.IsExactMatch() {
			exact = false
		}
		if r.Distance() > worst {
			worst = r.Distance()
		}
	}
	if exact {
		return ExactMatch()
	}
	return PartialMatch(worst)
}

func (p *AndPattern) Key() string      { return "and" }
func (p *AndPattern) Expected() string { return joinExpected(p.operands, " and ") }

// Operands returns the child patterns.
func (p *AndPattern) Operands() []ValuePattern { return p.operands }

// OrPattern matches when at least one operand matches. Its distance is the
// best (smallest) operand distance.
type OrPattern struct {
	operands []ValuePattern
}

// AnyOf creates a disjunction pattern.
func AnyOf(operands ...ValuePattern) *OrPattern {
	return &OrPattern{operands: operands}
}

func (p *OrPattern) Match(value *string) MatchResult {
	if value == nil {
		return NoMatch()
	}
	best := 1.0
	for _, op := range p.operands {
		r := op.Match(value)
		if r.IsExactMatch() {
			return ExactMatch()
		}
		if r.Distance() < best {
			best = r.Distance()
		}
	}
	return PartialMatch(best)
}

func (p *OrPattern) Key() string      { return "or" }
func (p *OrPattern) Expected() string { return joinExpected(p.operands, " or ") }

// Operands returns the child patterns.
func (p *OrPattern) Operands() []ValuePattern { return p.operands }

// NotPattern inverts its operand. Inversion is binary: there is no meaningful
// closeness for "anything but this".
type NotPattern struct {
	operand ValuePattern
}

// Not creates a negation pattern.
func Not(operand ValuePattern) *NotPattern {
	return &NotPattern{operand: operand}
}

func (p *NotPattern) Match(value *string) MatchResult {
	if value == nil {
		return NoMatch()
	}
	if p.operand.Match(value).IsExactMatch() {
		return NoMatch()
	}
	return ExactMatch()
}

func (p *NotPattern) Key() string      { return "not" }
func (p *NotPattern) Expected() string { return "not(" + p.operand.Expected() + ")" }

// Operand returns the child pattern.
func (p *NotPattern) Operand() ValuePattern { return p.operand }

func joinExpected(operands []ValuePattern, sep string) string {
	parts := make([]string, len(operands))
	for i, op := range operands {
		parts[i] = op.Expected()
	}
	return strings.Join(parts, sep)
}
