// Package provider implements the catalog of named backend provider kinds.
//
// A Kind bundles the corrective-action capabilities for one class of package
// backend (query, install, remove, update, latest). Kinds support single-parent
// inheritance: a child's effective capability set is its parent's effective set
// overridden by whatever the child declares explicitly, resolved once at
// registration time.
//
// The Registry is constructed once at process start, populated single-threaded
// during startup, and treated as read-only afterwards; concurrent lookups need
// no external locking. Platform default resolution is a pure, cached function
// of the platform identifier.
package provider
