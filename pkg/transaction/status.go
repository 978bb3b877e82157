package transaction

import (
	"time"
)

// Identity is the resource identity metadata carried on a Status. It is the
// only coupling between the transaction record and the resource model.
type Identity struct {
	// ResourceType is the resource type name, e.g. "package".
	ResourceType string `json:"resource_type"`

	// Title is the resource title within its type.
	Title string `json:"title"`

	// File and Line locate the declaration in its catalog source.
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`

	// ContainmentPath is the ordered sequence of ancestor titles from the
	// declaration tree.
	ContainmentPath []string `json:"containment_path,omitempty"`

	// Tags are the labels attached to the declaration.
	Tags []string `json:"tags,omitempty"`
}

// Status aggregates the events and counters for one resource's evaluation
// during one convergence pass. It is created at the start of the evaluation,
// mutated only through RecordEvent and the explicit markers, and treated as
// immutable once the pass's report is finalized. One Status is owned by
// exactly one resource evaluation; instances are never shared.
type Status struct {
	identity Identity

	events []Event

	changeCount    int
	outOfSyncCount int

	changed         bool
	outOfSync       bool
	skipped         bool
	failed          bool
	failedToRestart bool
	restarted       bool
	scheduled       bool

	evaluationTime time.Duration
	createdAt      time.Time
}

// NewStatus creates a fresh transaction record for one resource evaluation.
func NewStatus(id Identity) *Status {
	return &Status{
		identity:  id,
		createdAt: time.Now(),
	}
}

// RecordEvent appends an event and updates counters and flags:
//
//   - a success event sets changed permanently and bumps the change count
//   - a failure event sets failed permanently
//   - any non-audit event bumps the out-of-sync count and sets outOfSync
//
// An event whose status is outside the recognized vocabulary is rejected with
// InvalidEventStatusError and leaves counters and flags untouched. Events are
// only ever appended, never reordered or mutated.
func (s *Status) RecordEvent(ev Event) error {
	if err := ev.Status.Validate(); err != nil {
		return err
	}

	s.events = append(s.events, ev)

	switch ev.Status {
	case StatusSuccess:
		s.changed = true
		s.changeCount++
	case StatusFailure:
		s.failed = true
	}

	if ev.Status != StatusAudit {
		s.outOfSyncCount++
		s.outOfSync = true
	}

	return nil
}

// MarkSkipped records that the resource's evaluation was skipped.
func (s *Status) MarkSkipped() { s.skipped = true }

// MarkScheduled records that the resource was scheduled for this pass.
func (s *Status) MarkScheduled() { s.scheduled = true }

// MarkRestarted records a successful dependent-service restart.
func (s *Status) MarkRestarted() { s.restarted = true }

// MarkFailedToRestart records a failed dependent-service restart.
func (s *Status) MarkFailedToRestart() { s.failedToRestart = true }

// SetEvaluationTime records how long the resource's evaluation took.
func (s *Status) SetEvaluationTime(d time.Duration) { s.evaluationTime = d }

// Identity returns the resource identity metadata.
func (s *Status) Identity() Identity { return s.identity }

// Events returns a copy of the ordered event log.
func (s *Status) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ChangeCount returns the number of success events recorded.
func (s *Status) ChangeCount() int { return s.changeCount }

// OutOfSyncCount returns the number of non-audit events recorded.
func (s *Status) OutOfSyncCount() int { return s.outOfSyncCount }

// Changed reports whether any success event was recorded.
func (s *Status) Changed() bool { return s.changed }

// OutOfSync reports whether any non-audit event was recorded.
func (s *Status) OutOfSync() bool { return s.outOfSync }

// Skipped reports whether the evaluation was skipped.
func (s *Status) Skipped() bool { return s.skipped }

// Failed reports whether any failure event was recorded. Once set it never
// reverts for the lifetime of the record.
func (s *Status) Failed() bool { return s.failed }

// EvaluationTime returns the recorded evaluation duration.
func (s *Status) EvaluationTime() time.Duration { return s.evaluationTime }

// CreatedAt returns when the record was created.
func (s *Status) CreatedAt() time.Time { return s.createdAt }
