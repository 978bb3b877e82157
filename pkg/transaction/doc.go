// Package transaction records what happened to one resource during one
// convergence pass. A Status collects the pass's events, maintains the
// change/out-of-sync counters and the changed/failed flags, and produces a
// serializable snapshot that round-trips losslessly through JSON.
//
// RecordEvent is the only mutator after construction. Events carry one of
// exactly three statuses (success, failure, audit) and anything else is
// rejected as a contract violation before any counter moves.
package transaction
