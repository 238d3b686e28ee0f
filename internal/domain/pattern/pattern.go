// Package pattern implements declarative value patterns: rules that test a
// candidate string (a request body, a header value) and report how closely it
// matched. Patterns are immutable after construction and safe for concurrent
// use; Match never returns an error or panics: every failure mode collapses
// to a no-match result.
package pattern

// ValuePattern tests a candidate value against a declarative rule. A nil
// candidate means the value was absent from the request (no body, missing
// header) and is always a no-match.
type ValuePattern interface {
	// Match grades the candidate. It must not panic and has no error return:
	// malformed input degrades to NoMatch.
	Match(value *string) MatchResult

	// Key returns the discriminator used in the declarative form, e.g.
	// "equalTo" or "matchesXPath".
	Key() string

	// Expected returns a human-readable rendering of the rule's parameter,
	// used in traces and near-miss diagnostics.
	Expected() string
}
