package trace

import "time"

// Entry represents a single match trace entry.
type Entry struct {
	Timestamp   time.Time         `json:"timestamp"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	MatchedID   string            `json:"matched_id"`
	Candidates  []CandidateResult `json:"candidates"`
	RateLimited bool              `json:"rate_limited"`
}

// CandidateResult records the evaluation result for a single candidate stub.
// Distance grades how far a non-matching candidate was from matching,
// 0.0 (exact) to 1.0 (nothing in common).
type CandidateResult struct {
	StubID       string  `json:"stub_id"`
	StubName     string  `json:"stub_name"`
	Matched      bool    `json:"matched"`
	Distance     float64 `json:"distance"`
	FailedField  string  `json:"failed_field,omitempty"`
	FailedReason string  `json:"failed_reason,omitempty"`
}
