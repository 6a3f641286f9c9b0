package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound signals an absent entity on lookups; callers distinguish it
// from genuine failures with errors.Is.
var ErrNotFound = errors.New("not found")

// StructuralError marks an extraction failure where a required field was
// missing from page markup. Proceeding without the field (a DOI especially)
// risks inserting an irreconcilable duplicate on the next run, so the run
// must halt rather than guess.
type StructuralError struct {
	Field string
	URL   string
}

func (e *StructuralError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("structural extraction failure: missing %s", e.Field)
	}
	return fmt.Sprintf("structural extraction failure: missing %s in %s", e.Field, e.URL)
}

// IsStructural reports whether err wraps a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
