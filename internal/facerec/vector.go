// Package facerec implements the face recognition core: embedding vector
// math, enrollment aggregation, best-match selection and the photo quality
// gate. It is pure computation with no I/O; collaborators (the embedding
// oracle, the record store) are injected by callers.
package facerec

import "math"

// EuclideanDistance computes the euclidean distance between two embeddings.
// Returns DimensionMismatchError when the lengths differ; embeddings are
// never truncated or padded.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Want: len(a), Got: len(b)}
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Confidence converts a euclidean distance into a score on the 0-1 scale.
// Identical embeddings score 1; distances of 1 or more score 0.
func Confidence(distance float64) float64 {
	c := 1 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
