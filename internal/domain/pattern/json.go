package pattern

import (
	"encoding/json"
	"fmt"
)

// The declarative form of a pattern is a JSON object with a single
// discriminator key naming the match kind, plus kind-specific parameters:
//
//	{"equalTo": "exactly this"}
//	{"matches": "^prefix-.*$"}
//	{"equalToJson": {"total": 123}}
//	{"matchesJsonPath": "$.items[0].id"}
//	{"matchesXPath": "//thing", "xPathNamespaces": {"s": "http://subthings"}}
//	{"and": [ {...}, {...} ]}
//
// Marshal and Unmarshal round-trip these forms; an empty namespace map
// serializes identically to an absent one (the field is omitted).

// Marshal serializes a pattern to its declarative JSON form.
func Marshal(p ValuePattern) ([]byte, error) {
	return json.Marshal(Decl{Pattern: p})
}

// Unmarshal deserializes a declarative JSON object into a pattern. Unlike
// Match, this runs at configuration-load time, so malformed input surfaces a
// structured error.
func Unmarshal(data []byte) (ValuePattern, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid pattern document: %w", err)
	}
	return FromMap(m)
}

// Decl wraps a ValuePattern so it can be embedded in larger declarative
// documents (stub definitions) and round-trip through encoding/json.
type Decl struct {
	Pattern ValuePattern
}

func (d Decl) MarshalJSON() ([]byte, error) {
	if d.Pattern == nil {
		return []byte("null"), nil
	}
	return json.Marshal(declaration(d.Pattern))
}

func (d *Decl) UnmarshalJSON(data []byte) error {
	p, err := Unmarshal(data)
	if err != nil {
		return err
	}
	d.Pattern = p
	return nil
}

// xpathDecl fixes the field names of the XPath declarative form. omitempty
// collapses both nil and empty namespace maps to an omitted field, keeping
// the serialized form canonical.
type xpathDecl struct {
	MatchesXPath    string            `json:"matchesXPath"`
	XPathNamespaces map[string]string `json:"xPathNamespaces,omitempty"`
}

// declaration renders a pattern as a marshalable value.
func declaration(p ValuePattern) any {
	switch pat := p.(type) {
	case *XPathPattern:
		return xpathDecl{MatchesXPath: pat.Expression(), XPathNamespaces: pat.XPathNamespaces()}
	case *JSONEqualPattern:
		// The expected document is emitted as JSON, not as a string.
		return map[string]any{"equalToJson": pat.expected}
	case *AndPattern:
		return map[string]any{"and": childDecls(pat.Operands())}
	case *OrPattern:
		return map[string]any{"or": childDecls(pat.Operands())}
	case *NotPattern:
		return map[string]any{"not": Decl{Pattern: pat.Operand()}}
	default:
		return map[string]string{p.Key(): p.Expected()}
	}
}

func childDecls(operands []ValuePattern) []Decl {
	decls := make([]Decl, len(operands))
	for i, op := range operands {
		decls[i] = Decl{Pattern: op}
	}
	return decls
}

// FromMap builds a pattern from a decoded declarative object. Both the JSON
// binding and the YAML stub loader funnel through here.
func FromMap(m map[string]any) (ValuePattern, error) {
	kind, err := discriminator(m)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "equalTo":
		s, err := stringParam(m, kind)
		if err != nil {
			return nil, err
		}
		return EqualTo(s), nil

	case "contains":
		s, err := stringParam(m, kind)
		if err != nil {
			return nil, err
		}
		return Containing(s), nil

	case "matches":
		s, err := stringParam(m, kind)
		if err != nil {
			return nil, err
		}
		p := Matching(s)
		if p.CompileErr() != nil {
			return nil, fmt.Errorf("matches: invalid expression %q: %w", s, p.CompileErr())
		}
		return p, nil

	case "doesNotMatch":
		s, err := stringParam(m, kind)
		if err != nil {
			return nil, err
		}
		p := NotMatching(s)
		if p.CompileErr() != nil {
			return nil, fmt.Errorf("doesNotMatch: invalid expression %q: %w", s, p.CompileErr())
		}
		return p, nil

	case "equalToJson":
		raw, err := json.Marshal(m[kind])
		if err != nil {
			return nil, fmt.Errorf("equalToJson: %w", err)
		}
		p := EqualToJSON(string(raw))
		if p.CompileErr() != nil {
			return nil, fmt.Errorf("equalToJson: %w", p.CompileErr())
		}
		return p, nil

	case "matchesJsonPath":
		s, err := stringParam(m, kind)
		if err != nil {
			return nil, err
		}
		return MatchingJSONPath(s), nil

	case "matchesXPath":
		s, err := stringParam(m, kind)
		if err != nil {
			return nil, err
		}
		ns, err := namespaceParam(m)
		if err != nil {
			return nil, err
		}
		if ns == nil {
			return MatchingXPath(s), nil
		}
		return MatchingXPathWithNamespaces(s, ns), nil

	case "and", "or":
		children, err := operandList(m, kind)
		if err != nil {
			return nil, err
		}
		if kind == "and" {
			return AllOf(children...), nil
		}
		return AnyOf(children...), nil

	case "not":
		child, ok := m[kind].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("not: operand must be a pattern object")
		}
		inner, err := FromMap(child)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not(inner), nil
	}

	return nil, fmt.Errorf("unknown pattern kind %q", kind)
}

// FromAny accepts either a full declarative object or a bare string, the
// latter being shorthand for equalTo. Used by the YAML stub loader where
// headers are commonly plain strings.
func FromAny(v any) (ValuePattern, error) {
	switch decl := v.(type) {
	case string:
		return EqualTo(decl), nil
	case map[string]any:
		return FromMap(decl)
	default:
		return nil, fmt.Errorf("pattern must be a string or an object, got %T", v)
	}
}

// patternKinds lists every discriminator key. xPathNamespaces is a parameter
// of matchesXPath, not a kind of its own.
var patternKinds = []string{
	"equalTo", "contains", "matches", "doesNotMatch",
	"equalToJson", "matchesJsonPath", "matchesXPath",
	"and", "or", "not",
}

func discriminator(m map[string]any) (string, error) {
	found := ""
	for _, kind := range patternKinds {
		if _, ok := m[kind]; !ok {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("pattern declares both %q and %q", found, kind)
		}
		found = kind
	}
	if found == "" {
		return "", fmt.Errorf("pattern object has no recognized match kind")
	}
	return found, nil
}

func stringParam(m map[string]any, kind string) (string, error) {
	s, ok := m[kind].(string)
	if !ok {
		return "", fmt.Errorf("%s: parameter must be a string, got %T", kind, m[kind])
	}
	return s, nil
}

func namespaceParam(m map[string]any) (map[string]string, error) {
	raw, ok := m["xPathNamespaces"]
	if !ok {
		return nil, nil
	}
	rawMap, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("xPathNamespaces: must be a prefix-to-URI object, got %T", raw)
	}
	ns := make(map[string]string, len(rawMap))
	for prefix, uri := range rawMap {
		s, ok := uri.(string)
		if !ok {
			return nil, fmt.Errorf("xPathNamespaces: URI for prefix %q must be a string, got %T", prefix, uri)
		}
		ns[prefix] = s
	}
	return ns, nil
}

func operandList(m map[string]any, kind string) ([]ValuePattern, error) {
	raw, ok := m[kind].([]any)
	if !ok {
		return nil, fmt.Errorf("%s: operands must be a list of pattern objects", kind)
	}
	children := make([]ValuePattern, 0, len(raw))
	for i, item := range raw {
		child, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: operand must be a pattern object", kind, i)
		}
		p, err := FromMap(child)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		children = append(children, p)
	}
	return children, nil
}
