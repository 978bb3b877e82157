package resource

import (
	"errors"
	"fmt"
)

// SyncActionError wraps a failure raised by a provider's corrective action.
// The state machine catches the provider error, wraps it with the resource and
// action context, and returns it to the driver; the driver is responsible for
// turning it into a failure event. The original cause is preserved for
// errors.Is / errors.As inspection.
type SyncActionError struct {
	// Resource is the canonical reference of the failing resource.
	Resource string

	// Action is the corrective action that failed (install, remove, update).
	Action string

	// Err is the underlying provider error.
	Err error
}

// Error implements the error interface.
func (e *SyncActionError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Resource, e.Action, e.Err)
}

// Unwrap returns the underlying provider error.
func (e *SyncActionError) Unwrap() error {
	return e.Err
}

// IsSyncActionError returns true if the error is a wrapped sync action failure.
func IsSyncActionError(err error) bool {
	var e *SyncActionError
	return errors.As(err, &e)
}
