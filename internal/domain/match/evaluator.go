package match

import (
	"sort"
	"strings"

	"github.com/sophialabs/stubwire/internal/domain/trace"
)

// IncomingRequest represents an HTTP request in domain terms, free of net/http.
type IncomingRequest struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

// EvalResult holds the outcome of evaluating candidates against a request.
type EvalResult struct {
	Matched    *CompiledStub
	Candidates []trace.CandidateResult
}

// NearMisses returns up to n non-matching candidates ordered by ascending
// distance, closest first. Exact matches are excluded.
func (r EvalResult) NearMisses(n int) []trace.CandidateResult {
	misses := make([]trace.CandidateResult, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		if !c.Matched {
			misses = append(misses, c)
		}
	}
	sort.SliceStable(misses, func(i, j int) bool {
		return misses[i].Distance < misses[j].Distance
	})
	if n > 0 && len(misses) > n {
		misses = misses[:n]
	}
	return misses
}

// Evaluator evaluates incoming requests against compiled stubs.
type Evaluator struct{}

// NewEvaluator creates a new Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate runs all candidates against the request and returns the best match.
// Candidates are assumed to be pre-sorted by priority descending, then ID
// ascending (as done by StubIndex.Build). A stub matches when every field
// pattern reports an exact match; otherwise its distance is the worst
// (largest) field distance, so one badly missed field is never averaged away
// by several good ones.
func (e *Evaluator) Evaluate(req *IncomingRequest, candidates []*CompiledStub) EvalResult {
	result := EvalResult{
		Candidates: make([]trace.CandidateResult, 0, len(candidates)),
	}

	for _, cs := range candidates {
		cr := trace.CandidateResult{
			StubID:   cs.ID,
			StubName: cs.Name,
			Matched:  true,
		}

		for _, fp := range cs.Patterns {
			val := resolveFieldValue(fp.Field, req)
			mr := fp.Pattern.Match(val)
			if mr.IsExactMatch() {
				continue
			}
			if cr.Matched {
				cr.Matched = false
				cr.FailedField = fp.Field
				cr.FailedReason = "expected " + fp.Pattern.Key() + " " + fp.Pattern.Expected()
			}
			if mr.Distance() > cr.Distance {
				cr.Distance = mr.Distance()
			}
		}

		result.Candidates = append(result.Candidates, cr)

		if cr.Matched && result.Matched == nil {
			result.Matched = cs
		}
	}

	return result
}

// resolveFieldValue returns the candidate value for a field, or nil when the
// field is absent from the request. Absent values never match any pattern.
func resolveFieldValue(field string, req *IncomingRequest) *string {
	switch {
	case field == "method":
		return &req.Method
	case field == "path":
		return &req.Path
	case field == "body":
		if len(req.Body) == 0 {
			return nil
		}
		body := string(req.Body)
		return &body
	case strings.HasPrefix(field, "header:"):
		if v, ok := req.Headers[strings.TrimPrefix(field, "header:")]; ok {
			return &v
		}
		return nil
	case strings.HasPrefix(field, "query:"):
		if v, ok := req.Query[strings.TrimPrefix(field, "query:")]; ok {
			return &v
		}
		return nil
	}
	return nil
}
