package catalog

import (
	"fmt"
	"time"

	"github.com/floatingatoll/puppet/pkg/resource"
)

// Catalog is the set of resource declarations loaded from manifests.
type Catalog struct {
	// Name is the site name from the manifest, if declared.
	Name string `json:"name,omitempty"`

	// Resources are the declared resources in manifest order.
	Resources []*resource.Resource `json:"resources"`

	// SourceFiles are the manifest files the catalog was loaded from.
	SourceFiles []string `json:"source_files"`

	// LoadedAt is when the catalog was loaded.
	LoadedAt time.Time `json:"loaded_at"`

	// Errors are the validation errors found while loading.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Valid reports whether the catalog loaded without errors.
func (c *Catalog) Valid() bool {
	return len(c.Errors) == 0
}

// ValidationError is a parse or validation error with source position.
type ValidationError struct {
	// File is the manifest file the error occurred in.
	File string `json:"file,omitempty"`

	// Line is the line number within the file.
	Line int `json:"line,omitempty"`

	// Column is the column within the line.
	Column int `json:"column,omitempty"`

	// Path is the CUE path of the offending value.
	Path string `json:"path,omitempty"`

	// Message describes the error.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

// packageDecl is the decoded shape of one entry under resources.packages.
type packageDecl struct {
	// Ensure is the raw desired value: a scalar or a list of scalars.
	Ensure interface{} `json:"ensure" validate:"required"`

	// Provider optionally pins a provider kind by name.
	Provider string `json:"provider,omitempty" validate:"omitempty,min=1"`

	// Tags are free-form labels carried onto the resource.
	Tags []string `json:"tags,omitempty" validate:"omitempty,dive,min=1"`
}

// siteDecl is the decoded shape of the optional site block.
type siteDecl struct {
	Name string `json:"name,omitempty"`
}
