package pattern

// MatchResult is the graded outcome of a single match attempt. Distance is a
// normalized dissimilarity score: 0.0 means identical, 1.0 means no match at
// all. An exact result always carries zero distance.
type MatchResult struct {
	exact    bool
	distance float64
}

// ExactMatch returns a result with zero distance.
func ExactMatch() MatchResult {
	return MatchResult{exact: true, distance: 0}
}

// NoMatch returns a total-mismatch result with distance 1.0. It is the
// fallback for strategies that cannot express partial credit.
func NoMatch() MatchResult {
	return MatchResult{exact: false, distance: 1}
}

// PartialMatch returns a result graded by distance. The result is exact only
// when distance is exactly zero. Distances outside [0, 1] are clamped.
func PartialMatch(distance float64) MatchResult {
	if distance <= 0 {
		return ExactMatch()
	}
	if distance > 1 {
		distance = 1
	}
	return MatchResult{exact: false, distance: distance}
}

// IsExactMatch reports whether the match was exact.
func (r MatchResult) IsExactMatch() bool {
	return r.exact
}

// Distance returns the normalized dissimilarity in [0, 1].
func (r MatchResult) Distance() float64 {
	return r.distance
}
