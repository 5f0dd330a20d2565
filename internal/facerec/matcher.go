package facerec

// Candidate is one enrolled identity with its representative embedding.
type Candidate struct {
	ID        string
	Embedding []float32
}

// MatchResult is the outcome of matching a query against the enrolled set.
// ID, Confidence and Distance are always populated, even when Matched is
// false, so callers can log diagnostics for near misses.
type MatchResult struct {
	ID         string
	Confidence float64
	Distance   float64
	Matched    bool
}

// BestMatch compares the query embedding against every candidate using
// euclidean distance and returns the candidate with the highest confidence.
// Ties are broken by input order, so the result is deterministic for a
// given candidate ordering. Matched is true only when the winning
// confidence exceeds the threshold.
//
// Returns ErrNoCandidates for an empty candidate list and
// DimensionMismatchError when any candidate's embedding length differs
// from the query's.
func BestMatch(query []float32, candidates []Candidate, threshold float64) (*MatchResult, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	best := MatchResult{Confidence: -1}
	for _, c := range candidates {
		distance, err := EuclideanDistance(query, c.Embedding)
		if err != nil {
			return nil, err
		}

		// Strictly greater keeps the earliest candidate on ties.
		if confidence := Confidence(distance); confidence > best.Confidence {
			best = MatchResult{
				ID:         c.ID,
				Confidence: confidence,
				Distance:   distance,
			}
		}
	}

	best.Matched = best.Confidence > threshold
	return &best, nil
}
