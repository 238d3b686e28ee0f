package pattern

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// XPathPattern matches when an XPath query selects at least one node in the
// candidate, parsed as an XML document. Matching is all-or-nothing: partial
// XPath satisfaction has no meaningful closeness metric, so every failure
// (absent value, malformed XML, invalid expression, evaluation error) folds
// into NoMatch and nothing ever propagates to the caller.
type XPathPattern struct {
	expression string
	// namespaces maps prefix to URI. nil means no namespace context was
	// supplied, which is distinct from an explicitly empty map.
	namespaces map[string]string
}

// MatchingXPath creates an XPath pattern without a namespace context.
func MatchingXPath(expression string) *XPathPattern {
	return &XPathPattern{expression: expression}
}

// MatchingXPathWithNamespaces creates an XPath pattern whose qualified names
// resolve through the given prefix-to-URI mapping. Resolution is by URI, so
// the prefixes chosen here need not match the ones used in the document.
func MatchingXPathWithNamespaces(expression string, namespaces map[string]string) *XPathPattern {
	return &XPathPattern{expression: expression, namespaces: namespaces}
}

// Match parses the candidate as XML, compiles the stored expression and
// reports an exact match when the query selects a non-empty node set.
func (p *XPathPattern) Match(value *string) (result MatchResult) {
	// The parser, compiler and evaluator are third-party code running over
	// arbitrary request content; a panic in any of them is a no-match, not a
	// crash.
	defer func() {
		if r := recover(); r != nil {
			result = NoMatch()
		}
	}()

	if value == nil {
		return NoMatch()
	}

	// xmlquery's parser is lenient: it tolerates multiple root elements and
	// text outside the root. Such input is not a well-formed document and
	// must not match, so reject it before querying.
	if !isWellFormedXML(*value) {
		return NoMatch()
	}

	doc, err := xmlquery.Parse(strings.NewReader(*value))
	if err != nil {
		return NoMatch()
	}

	var expr *xpath.Expr
	if len(p.namespaces) > 0 {
		expr, err = xpath.CompileWithNS(p.expression, p.namespaces)
	} else {
		expr, err = xpath.Compile(p.expression)
	}
	if err != nil {
		return NoMatch()
	}

	nodes := xmlquery.QuerySelectorAll(doc, expr)
	if len(nodes) == 0 {
		return NoMatch()
	}
	return ExactMatch()
}

func (p *XPathPattern) Key() string { return "matchesXPath" }

func (p *XPathPattern) Expected() string {
	if len(p.namespaces) == 0 {
		return p.expression
	}
	return fmt.Sprintf("%s (namespaces: %v)", p.expression, p.namespaces)
}

// Expression returns the XPath query text.
func (p *XPathPattern) Expression() string { return p.expression }

// XPathNamespaces returns the prefix-to-URI mapping, or nil when no mapping
// was supplied. Callers can distinguish "no namespaces" (nil) from "supplied
// but empty" (non-nil, len 0).
func (p *XPathPattern) XPathNamespaces() map[string]string { return p.namespaces }

// isWellFormedXML reports whether the input is a well-formed XML document:
// exactly one root element, correct nesting, and no non-whitespace character
// data outside the root.
func isWellFormedXML(s string) bool {
	dec := xml.NewDecoder(strings.NewReader(s))
	depth := 0
	roots := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return depth == 0 && roots == 1
		}
		if err != nil {
			return false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return false
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}
