package resource

import (
	"fmt"
	"strings"
)

// Observed-value sentinels. A provider query that finds the resource entirely
// absent yields ValueAbsent; before the first retrieval of a pass the observed
// value is ValueUnknown.
const (
	ValueUnknown = "unknown"
	ValueAbsent  = "absent"
)

// Resource is one declaratively managed unit: a package with a declared list
// of acceptable target values and identity metadata carried through to the
// transaction report.
type Resource struct {
	// Type is the resource type name, e.g. "package".
	Type string `json:"type"`

	// Title is the unique title within the type, e.g. the package name.
	Title string `json:"title"`

	// File and Line locate the declaration in its catalog source.
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`

	// ContainmentPath is the ordered sequence of ancestor titles from the
	// declaration tree down to this resource.
	ContainmentPath []string `json:"containment_path,omitempty"`

	// Tags are the labels attached to the declaration.
	Tags []string `json:"tags,omitempty"`

	// Should is the ordered list of acceptable target values. InSync accepts
	// any of them; Sync acts on the first one only.
	Should []Ensure `json:"should"`

	// Provider optionally names the provider kind to bind. When empty the
	// platform default is used.
	Provider string `json:"provider,omitempty"`
}

// Ref returns the canonical resource reference, e.g. "Package[nginx]".
func (r *Resource) Ref() string {
	typ := r.Type
	if typ != "" {
		typ = strings.ToUpper(typ[:1]) + typ[1:]
	}
	return fmt.Sprintf("%s[%s]", typ, r.Title)
}

// Validate checks that the declaration is complete enough to evaluate.
func (r *Resource) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("resource type is required")
	}
	if r.Title == "" {
		return fmt.Errorf("resource title is required")
	}
	if len(r.Should) == 0 {
		return fmt.Errorf("resource %s declares no ensure values", r.Ref())
	}
	for _, e := range r.Should {
		if err := e.Kind.Validate(); err != nil {
			return fmt.Errorf("resource %s: %w", r.Ref(), err)
		}
	}
	return nil
}
