package transaction

import (
	"encoding/json"
	"time"
)

// EventStatus classifies an event's outcome. Exactly three values are
// recognized; RecordEvent rejects anything else.
type EventStatus string

const (
	// StatusSuccess marks a corrective action that changed the system.
	StatusSuccess EventStatus = "success"

	// StatusFailure marks a corrective action that failed.
	StatusFailure EventStatus = "failure"

	// StatusAudit marks an observation that changed nothing, e.g. a noop run.
	StatusAudit EventStatus = "audit"
)

// Validate checks if the event status is one of the recognized values.
func (s EventStatus) Validate() error {
	switch s {
	case StatusSuccess, StatusFailure, StatusAudit:
		return nil
	default:
		return &InvalidEventStatusError{Status: string(s)}
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s EventStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *EventStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = EventStatus(str)
	return s.Validate()
}

// Event is an immutable fact describing the outcome of synchronizing one
// declared property of a resource.
type Event struct {
	// Kind names what happened, e.g. "installed", "removed", "updated", or a
	// generic "failure".
	Kind string `json:"kind"`

	// Status is the event's outcome classification.
	Status EventStatus `json:"status"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(kind string, status EventStatus, message string) Event {
	return Event{
		Kind:      kind,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// EncodeEvent serializes an event to JSON.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent deserializes an event from JSON, validating its status.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
