// Package engine drives convergence passes over declared resources.
//
// The evaluator walks a set of resources, binds each one to a provider
// kind from the registry, compares observed state against the declared
// state and applies corrective actions where they differ. Every resource
// produces a transaction status record; the pass as a whole produces a
// Report that can be persisted and inspected later.
//
// Corrective actions can be gated by an optional PolicyGate before they
// run, and the whole pass can operate in noop mode where differences are
// recorded as audit events without touching the system.
package engine
