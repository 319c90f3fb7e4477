package oracle

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is the sentinel all InvariantViolation errors match.
var ErrInvariantViolation = errors.New("invariant violation")

// InvariantViolation reports a mismatch between the expected and the
// observed chain state.
type InvariantViolation struct {
	Subject  string
	Expected interface{}
	Observed interface{}
	// Diff is a unified diff for structured values, may be empty.
	Diff string
}

// Error implements the error interface.
func (v *InvariantViolation) Error() string {
	msg := fmt.Sprintf("%s: %s: expected %v, observed %v", ErrInvariantViolation, v.Subject, v.Expected, v.Observed)
	if v.Diff != "" {
		msg += "\n" + v.Diff
	}
	return msg
}

// Unwrap returns ErrInvariantViolation.
func (v *InvariantViolation) Unwrap() error {
	return ErrInvariantViolation
}

// NewViolation creates an InvariantViolation. Expected can be a description
// like "> 10" when no single expected value exists.
func NewViolation(subject string, expected, observed interface{}) *InvariantViolation {
	return &InvariantViolation{Subject: subject, Expected: expected, Observed: observed}
}

func violation(subject string, expected, observed interface{}) *InvariantViolation {
	return NewViolation(subject, expected, observed)
}
