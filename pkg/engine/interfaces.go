package engine

import (
	"context"
)

// ActionInput describes a planned corrective action for policy evaluation.
type ActionInput struct {
	// ResourceType is the resource type (e.g. "package").
	ResourceType string `json:"resource_type"`

	// Title is the resource title (e.g. the package name).
	Title string `json:"title"`

	// Tags are the resource tags.
	Tags []string `json:"tags,omitempty"`

	// Action is the planned action (install, remove, update).
	Action string `json:"action"`

	// Observed is the state found on the system.
	Observed string `json:"observed"`

	// Desired is the declared target state.
	Desired string `json:"desired"`

	// Provider is the name of the provider kind that would perform the action.
	Provider string `json:"provider"`
}

// PolicyViolation describes a single policy denial.
type PolicyViolation struct {
	// Policy is the name of the violated policy.
	Policy string `json:"policy"`

	// Message is a human-readable explanation.
	Message string `json:"message"`

	// Severity is the violation severity (error, warning).
	Severity string `json:"severity"`
}

// PolicyResult is the outcome of evaluating an action against policy.
type PolicyResult struct {
	// Allowed indicates whether the action may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists the policies that denied the action.
	Violations []PolicyViolation `json:"violations,omitempty"`
}

// PolicyGate evaluates planned corrective actions before they run.
type PolicyGate interface {
	// CheckAction evaluates a single planned action. A nil error with
	// Allowed=false means the action is denied by policy; an error means
	// the evaluation itself failed.
	CheckAction(ctx context.Context, input *ActionInput) (*PolicyResult, error)
}

// ReportStore persists convergence reports.
type ReportStore interface {
	// SaveReport stores a completed report.
	SaveReport(ctx context.Context, report *Report) error

	// GetReport retrieves a report by ID.
	GetReport(ctx context.Context, id string) (*Report, error)

	// ListReports returns summaries of stored reports, newest first.
	ListReports(ctx context.Context, limit int) ([]*ReportSummary, error)
}
