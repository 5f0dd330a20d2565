package facerec

import (
	"errors"
	"fmt"
)

// ErrNoCandidates is returned by BestMatch when the enrolled set is empty.
// Callers use it to distinguish "nobody enrolled yet" from "no match found".
var ErrNoCandidates = errors.New("no enrolled embeddings to match against")

// ValidationError reports invalid enrollment input. Photo is the 1-based
// index of the failing photo, or 0 when the problem is not photo-specific.
type ValidationError struct {
	Photo  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Photo > 0 {
		return fmt.Sprintf("photo %d: %s", e.Photo, e.Reason)
	}
	return e.Reason
}

// DimensionMismatchError reports embeddings of incompatible lengths, which
// means the stored data and the oracle disagree on the descriptor format.
// This is a configuration error and must never be retried.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Want, e.Got)
}
