package transaction

import (
	"errors"
	"fmt"
)

// InvalidEventStatusError indicates RecordEvent was called with a status
// outside the recognized vocabulary. This is a contract violation by the
// caller, not a recoverable condition: the record is left untouched.
type InvalidEventStatusError struct {
	// Status is the rejected value.
	Status string
}

// Error implements the error interface.
func (e *InvalidEventStatusError) Error() string {
	return fmt.Sprintf("invalid event status %q (must be success, failure, or audit)", e.Status)
}

// IsInvalidEventStatus returns true if the error is a rejected event status.
func IsInvalidEventStatus(err error) bool {
	var e *InvalidEventStatusError
	return errors.As(err, &e)
}
