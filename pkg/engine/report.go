package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/floatingatoll/puppet/pkg/transaction"
)

// ReportStatus represents the overall outcome of a convergence pass.
type ReportStatus string

const (
	// ReportStatusUnchanged means every resource was already in sync.
	ReportStatusUnchanged ReportStatus = "unchanged"

	// ReportStatusChanged means at least one corrective action succeeded
	// and none failed.
	ReportStatusChanged ReportStatus = "changed"

	// ReportStatusFailed means at least one resource failed.
	ReportStatusFailed ReportStatus = "failed"
)

// Validate checks if the report status is valid.
func (s ReportStatus) Validate() error {
	switch s {
	case ReportStatusUnchanged, ReportStatusChanged, ReportStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid report status: %s", s)
	}
}

// Report is the record of a single convergence pass.
type Report struct {
	// ID uniquely identifies the pass.
	ID string `json:"id"`

	// Platform is the platform identifier the pass ran on.
	Platform string `json:"platform"`

	// Noop indicates whether the pass ran in noop mode.
	Noop bool `json:"noop"`

	// StartedAt is when the pass began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the pass completed.
	FinishedAt time.Time `json:"finished_at"`

	// Statuses holds one transaction status snapshot per resource, in
	// evaluation order.
	Statuses []transaction.Snapshot `json:"statuses"`

	// ResourceCount is the number of resources evaluated.
	ResourceCount int `json:"resource_count"`

	// ChangedCount is the number of resources that changed.
	ChangedCount int `json:"changed_count"`

	// FailedCount is the number of resources that failed.
	FailedCount int `json:"failed_count"`

	// SkippedCount is the number of resources that were skipped.
	SkippedCount int `json:"skipped_count"`

	// OutOfSyncCount is the number of resources found out of sync.
	OutOfSyncCount int `json:"out_of_sync_count"`

	// Status is the overall pass outcome.
	Status ReportStatus `json:"status"`
}

// NewReport creates an empty report for a pass starting now.
func NewReport(platform string, noop bool) *Report {
	return &Report{
		ID:        uuid.New().String(),
		Platform:  platform,
		Noop:      noop,
		StartedAt: time.Now(),
		Status:    ReportStatusUnchanged,
	}
}

// Append adds a resource status snapshot to the report.
func (r *Report) Append(snap transaction.Snapshot) {
	r.Statuses = append(r.Statuses, snap)
}

// Finish stamps the end time and derives the counts and overall status
// from the accumulated snapshots.
func (r *Report) Finish() {
	r.FinishedAt = time.Now()
	r.ResourceCount = len(r.Statuses)
	r.ChangedCount = 0
	r.FailedCount = 0
	r.SkippedCount = 0
	r.OutOfSyncCount = 0

	for _, snap := range r.Statuses {
		if snap.Changed {
			r.ChangedCount++
		}
		if snap.Failed {
			r.FailedCount++
		}
		if snap.Skipped {
			r.SkippedCount++
		}
		if snap.OutOfSync {
			r.OutOfSyncCount++
		}
	}

	switch {
	case r.FailedCount > 0:
		r.Status = ReportStatusFailed
	case r.ChangedCount > 0:
		r.Status = ReportStatusChanged
	default:
		r.Status = ReportStatusUnchanged
	}
}

// Duration returns the elapsed wall-clock time of the pass.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Encode serializes the report to JSON.
func (r *Report) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeReport deserializes a report from JSON.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// ReportSummary is a lightweight view of a stored report for listings.
type ReportSummary struct {
	ID             string       `json:"id"`
	Platform       string       `json:"platform"`
	Noop           bool         `json:"noop"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	ResourceCount  int          `json:"resource_count"`
	ChangedCount   int          `json:"changed_count"`
	FailedCount    int          `json:"failed_count"`
	Status         ReportStatus `json:"status"`
}
