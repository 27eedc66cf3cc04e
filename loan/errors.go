/*
errors.go - Error types for the loan engine

PURPOSE:
  All engine errors in one place. Every error here is a caller error: the
  engine does no I/O, performs no retries, and has no transient-failure modes.
  On any rejected call the schedule is left unmodified.

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, loan.ErrInvalidAmount) {
        // 400, not 500
    }

SEE ALSO:
  - calculator.go: returns InvalidTermsError
  - allocator.go: returns ErrInvalidAmount, ErrNoActiveSchedule
*/
package loan

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTerms is returned by Generate when structural preconditions
	// are violated (non-positive principal or term, negative rate, zero
	// start date). Business policy bounds are the host's job.
	ErrInvalidTerms = errors.New("invalid loan terms")

	// ErrInvalidAmount is returned by Allocate for a non-positive payment.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrNoActiveSchedule is returned when an operation targets an empty or
	// absent schedule.
	ErrNoActiveSchedule = errors.New("no active schedule")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidTermsError reports which term field failed its precondition.
type InvalidTermsError struct {
	Field  string
	Reason string
}

func (e *InvalidTermsError) Error() string {
	return fmt.Sprintf("invalid loan terms: %s %s", e.Field, e.Reason)
}

func (e *InvalidTermsError) Unwrap() error {
	return ErrInvalidTerms
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTerms) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNoActiveSchedule)
}
