package transaction

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the immutable, serializable representation of a Status. The
// field set is fixed; timestamps use RFC 3339 with full sub-second precision
// (Go's default time.Time JSON encoding). Encoding a decoded snapshot yields
// structurally identical JSON, events included.
type Snapshot struct {
	ResourceType    string   `json:"resource_type"`
	Title           string   `json:"title"`
	File            string   `json:"file,omitempty"`
	Line            int      `json:"line,omitempty"`
	ContainmentPath []string `json:"containment_path,omitempty"`
	Tags            []string `json:"tags,omitempty"`

	Events []Event `json:"events"`

	ChangeCount    int `json:"change_count"`
	OutOfSyncCount int `json:"out_of_sync_count"`

	Changed         bool `json:"changed"`
	OutOfSync       bool `json:"out_of_sync"`
	Skipped         bool `json:"skipped"`
	Failed          bool `json:"failed"`
	FailedToRestart bool `json:"failed_to_restart"`
	Restarted       bool `json:"restarted"`
	Scheduled       bool `json:"scheduled"`

	// EvaluationTime is the evaluation duration in nanoseconds.
	EvaluationTime time.Duration `json:"evaluation_time"`

	// Time is when the record was created.
	Time time.Time `json:"time"`
}

// Snapshot produces the serializable representation of the record.
func (s *Status) Snapshot() Snapshot {
	return Snapshot{
		ResourceType:    s.identity.ResourceType,
		Title:           s.identity.Title,
		File:            s.identity.File,
		Line:            s.identity.Line,
		ContainmentPath: s.identity.ContainmentPath,
		Tags:            s.identity.Tags,
		Events:          s.Events(),
		ChangeCount:     s.changeCount,
		OutOfSyncCount:  s.outOfSyncCount,
		Changed:         s.changed,
		OutOfSync:       s.outOfSync,
		Skipped:         s.skipped,
		Failed:          s.failed,
		FailedToRestart: s.failedToRestart,
		Restarted:       s.restarted,
		Scheduled:       s.scheduled,
		EvaluationTime:  s.evaluationTime,
		Time:            s.createdAt,
	}
}

// Encode serializes the snapshot to JSON.
func (sn Snapshot) Encode() ([]byte, error) {
	return json.Marshal(sn)
}

// DecodeSnapshot deserializes a snapshot from JSON. Event statuses are
// validated during decoding; a snapshot with an unrecognized status is
// rejected rather than partially loaded.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var sn Snapshot
	if err := json.Unmarshal(data, &sn); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return sn, nil
}
