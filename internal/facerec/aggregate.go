package facerec

import "fmt"

// Aggregate combines embeddings captured from multiple enrollment photos of
// the same person into one representative embedding by coordinate-wise
// arithmetic mean. Averaging smooths out pose and lighting noise from any
// single capture while keeping the result comparable in constant time.
//
// The number of embeddings must be exactly required (the enrollment photo
// policy) and all embeddings must share one length. Aggregating identical
// embeddings returns that embedding unchanged.
func Aggregate(embeddings [][]float32, required int) ([]float32, error) {
	if len(embeddings) != required {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("exactly %d embeddings are required, got %d", required, len(embeddings)),
		}
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, &ValidationError{Photo: 1, Reason: "empty embedding"}
	}
	for _, emb := range embeddings {
		if len(emb) != dim {
			return nil, &DimensionMismatchError{Want: dim, Got: len(emb)}
		}
	}

	sums := make([]float64, dim)
	for _, emb := range embeddings {
		for i, v := range emb {
			sums[i] += float64(v)
		}
	}

	avg := make([]float32, dim)
	n := float64(len(embeddings))
	for i, s := range sums {
		avg[i] = float32(s / n)
	}
	return avg, nil
}
