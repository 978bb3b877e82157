package provider

import (
	"errors"
	"fmt"
)

// DuplicateProviderError indicates a kind name was registered twice. Fatal at
// registration time: the registry is append-only and write-once per name.
type DuplicateProviderError struct {
	// Name is the kind name that was already registered.
	Name string
}

// Error implements the error interface.
func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("provider kind %q already registered", e.Name)
}

// UnknownParentError indicates a kind declared a parent that is not yet
// registered. Parents must be registered before their children.
type UnknownParentError struct {
	// Name is the kind being registered.
	Name string

	// Parent is the missing parent kind name.
	Parent string
}

// Error implements the error interface.
func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("provider kind %q declares unknown parent %q", e.Name, e.Parent)
}

// UnknownProviderError indicates a lookup for a kind name that was never
// registered.
type UnknownProviderError struct {
	// Name is the kind name that was looked up.
	Name string
}

// Error implements the error interface.
func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider kind %q", e.Name)
}

// NoDefaultError indicates the platform identifier has no entry in the
// platform default table; the caller must name a provider kind explicitly.
type NoDefaultError struct {
	// Platform is the unrecognized platform identifier.
	Platform string
}

// Error implements the error interface.
func (e *NoDefaultError) Error() string {
	return fmt.Sprintf("no default provider kind for platform %q", e.Platform)
}

// UnsupportedOperationError indicates a desired value requires a capability
// the bound provider kind does not declare. Distinguishable from a
// supported-but-failed operation, which surfaces the provider's own error.
type UnsupportedOperationError struct {
	// Kind is the provider kind lacking the capability.
	Kind string

	// Operation is the missing capability (install, remove, update, latest,
	// version-install).
	Operation string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("provider kind %q does not support %s", e.Kind, e.Operation)
}

// IsDuplicateProvider returns true if the error is a duplicate registration.
func IsDuplicateProvider(err error) bool {
	var e *DuplicateProviderError
	return errors.As(err, &e)
}

// IsUnknownParent returns true if the error is a missing-parent registration.
func IsUnknownParent(err error) bool {
	var e *UnknownParentError
	return errors.As(err, &e)
}

// IsUnknownProvider returns true if the error is a failed kind lookup.
func IsUnknownProvider(err error) bool {
	var e *UnknownProviderError
	return errors.As(err, &e)
}

// IsNoDefault returns true if the error is a missing platform default.
func IsNoDefault(err error) bool {
	var e *NoDefaultError
	return errors.As(err, &e)
}

// IsUnsupported returns true if the error is a missing capability.
func IsUnsupported(err error) bool {
	var e *UnsupportedOperationError
	return errors.As(err, &e)
}
