package pattern

import "regexp"

// MatchesPattern matches a value against an RE2 regular expression. The
// expression is compiled once at construction; an invalid expression makes
// the pattern match nothing rather than erroring at match time.
type MatchesPattern struct {
	expression string
	re         *regexp.Regexp
	compileErr error
}

// Matching creates a regex pattern.
func Matching(expression string) *MatchesPattern {
	re, err := regexp.Compile(expression)
	return &MatchesPattern{expression: expression, re: re, compileErr: err}
}

func (p *MatchesPattern) Match(value *string) MatchResult {
	if value == nil || p.compileErr != nil {
		return NoMatch()
	}
	if p.re.MatchString(*value) {
		return ExactMatch()
	}
	return NoMatch()
}

func (p *MatchesPattern) Key() string      { return "matches" }
func (p *MatchesPattern) Expected() string { return p.expression }

// CompileErr exposes the regex compilation error so the declarative layer can
// reject invalid expressions at load time.
func (p *MatchesPattern) CompileErr() error { return p.compileErr }

// NotMatchesPattern is the negation of MatchesPattern: it matches values the
// expression does not match. An absent value is still a no-match.
type NotMatchesPattern struct {
	expression string
	re         *regexp.Regexp
	compileErr error
}

// NotMatching creates a negated regex pattern.
func NotMatching(expression string) *NotMatchesPattern {
	re, err := regexp.Compile(expression)
	return &NotMatchesPattern{expression: expression, re: re, compileErr: err}
}

func (p *NotMatchesPattern) Match(value *string) MatchResult {
	if value == nil || p.compileErr != nil {
		return NoMatch()
	}
	if p.re.MatchString(*value) {
		return NoMatch()
	}
	return ExactMatch()
}

func (p *NotMatchesPattern) Key() string      { return "doesNotMatch" }
func (p *NotMatchesPattern) Expected() string { return p.expression }

// CompileErr exposes the regex compilation error for load-time validation.
func (p *NotMatchesPattern) CompileErr() error { return p.compileErr }
