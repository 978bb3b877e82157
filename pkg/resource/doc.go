// Package resource implements the declarative should/is model for managed
// resources. A resource declares an ordered list of acceptable target values
// (Ensure), observes its current value through a bound provider kind, and
// converges the two with at most one corrective action per pass.
//
// The convergence state machine is:
//
//	Unevaluated -> Retrieved -> {InSync, OutOfSync} -> {Synced, SyncFailed}
//
// Retrieval is lazy and cached for the lifetime of one pass. Synchronization
// always acts on the first declared target value; the remaining values only
// widen what counts as "in sync".
package resource
