package pattern

import (
	"encoding/json"

	"github.com/PaesslerAG/jsonpath"
)

// JSONPathPattern matches when a JSONPath query selects something in the
// candidate, parsed as a JSON document. Like the XPath pattern it is binary:
// any failure along the parse-evaluate chain is a no-match.
type JSONPathPattern struct {
	expression string
}

// MatchingJSONPath creates a JSONPath pattern.
func MatchingJSONPath(expression string) *JSONPathPattern {
	return &JSONPathPattern{expression: expression}
}

func (p *JSONPathPattern) Match(value *string) (result MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			result = NoMatch()
		}
	}()

	if value == nil {
		return NoMatch()
	}

	var data any
	if err := json.Unmarshal([]byte(*value), &data); err != nil {
		return NoMatch()
	}

	selected, err := jsonpath.Get(p.expression, data)
	if err != nil {
		return NoMatch()
	}
	if emptySelection(selected) {
		return NoMatch()
	}
	return ExactMatch()
}

// emptySelection reports whether a JSONPath result carries no selected value.
// Wildcard and filter queries yield slices or maps that may be empty even
// though evaluation succeeded.
func emptySelection(selected any) bool {
	switch v := selected.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func (p *JSONPathPattern) Key() string      { return "matchesJsonPath" }
func (p *JSONPathPattern) Expected() string { return p.expression }

// Expression returns the JSONPath query text.
func (p *JSONPathPattern) Expression() string { return p.expression }
