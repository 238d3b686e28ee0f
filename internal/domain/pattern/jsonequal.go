package pattern

import (
	"encoding/json"
	"strconv"
)

// JSONEqualPattern matches when the candidate is JSON structurally equal to
// the expected document, ignoring key order and whitespace. Non-equal
// documents are graded by the fraction of differing leaves so near misses
// rank close in diagnostics.
type JSONEqualPattern struct {
	raw      string
	expected any
	parseErr error
}

// EqualToJSON creates a JSON-equality pattern from a JSON document string.
func EqualToJSON(doc string) *JSONEqualPattern {
	p := &JSONEqualPattern{raw: doc}
	p.parseErr = json.Unmarshal([]byte(doc), &p.expected)
	return p
}

func (p *JSONEqualPattern) Match(value *string) MatchResult {
	if value == nil || p.parseErr != nil {
		return NoMatch()
	}

	var actual any
	if err := json.Unmarshal([]byte(*value), &actual); err != nil {
		return NoMatch()
	}

	expectedLeaves := flattenJSON(p.expected)
	actualLeaves := flattenJSON(actual)

	total := len(expectedLeaves)
	matched := 0
	for path, want := range expectedLeaves {
		if got, ok := actualLeaves[path]; ok && got == want {
			matched++
		}
	}
	// Leaves only present on the actual side count against the match too.
	for path := range actualLeaves {
		if _, ok := expectedLeaves[path]; !ok {
			total++
		}
	}

	if total == 0 || matched == total {
		return ExactMatch()
	}
	return PartialMatch(1 - float64(matched)/float64(total))
}

func (p *JSONEqualPattern) Key() string      { return "equalToJson" }
func (p *JSONEqualPattern) Expected() string { return p.raw }

// CompileErr exposes the parse error of the expected document for load-time
// validation.
func (p *JSONEqualPattern) CompileErr() error { return p.parseErr }

// flattenJSON maps each leaf of a decoded JSON value to its path. Scalars
// become comparable directly since json.Unmarshal normalizes numbers to
// float64 on both sides.
func flattenJSON(v any) map[string]any {
	leaves := make(map[string]any)
	flattenInto(leaves, "$", v)
	return leaves
}

func flattenInto(leaves map[string]any, path string, v any) {
	switch node := v.(type) {
	case map[string]any:
		if len(node) == 0 {
			leaves[path] = emptyObject
			return
		}
		for k, child := range node {
			flattenInto(leaves, path+"."+k, child)
		}
	case []any:
		if len(node) == 0 {
			leaves[path] = emptyArray
			return
		}
		for i, child := range node {
			flattenInto(leaves, path+"["+strconv.Itoa(i)+"]", child)
		}
	default:
		leaves[path] = node
	}
}

// Sentinels so empty containers compare equal to each other but not to
// scalars or null.
const (
	emptyObject = jsonSentinel("{}")
	emptyArray  = jsonSentinel("[]")
)

type jsonSentinel string
