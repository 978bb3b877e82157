package provider

import "context"

// Support is a tri-state capability flag. The zero value means "not declared":
// during registration an undeclared flag inherits the parent's effective
// value, while an explicit enabled/disabled overrides it.
type Support string

const (
	// SupportInherit leaves the flag to the parent's effective value.
	SupportInherit Support = ""

	// SupportEnabled declares the capability supported.
	SupportEnabled Support = "enabled"

	// SupportDisabled declares the capability unsupported, masking a parent
	// that enables it.
	SupportDisabled Support = "disabled"
)

// QueryFunc retrieves the observed state of a package. It returns the
// installed version and true, or installed=false when the package is entirely
// absent. An error means the observation itself failed.
type QueryFunc func(ctx context.Context, name string) (version string, installed bool, err error)

// InstallFunc installs a package. Version is empty for "any version" installs
// and set for exact-version installs on versionable kinds.
type InstallFunc func(ctx context.Context, name, version string) error

// ActionFunc performs a corrective action that takes no version argument
// (remove, update).
type ActionFunc func(ctx context.Context, name string) error

// LatestFunc reports the newest version available to this kind for a package.
type LatestFunc func(ctx context.Context, name string) (string, error)

// Capabilities is the declared capability set of one provider kind. Nil
// function fields and SupportInherit flags are filled from the parent's
// effective set at registration time; whatever is set explicitly here takes
// precedence.
type Capabilities struct {
	Query   QueryFunc
	Install InstallFunc
	Remove  ActionFunc
	Update  ActionFunc
	Latest  LatestFunc

	// Versionable declares support for exact-version installs.
	Versionable Support

	// HoldsLatest declares support for the "latest" desired value.
	HoldsLatest Support
}

// resolve computes the effective capability set: the parent's effective set
// overridden by the explicitly declared entries.
func (c Capabilities) resolve(parent Capabilities) Capabilities {
	eff := parent
	if c.Query != nil {
		eff.Query = c.Query
	}
	if c.Install != nil {
		eff.Install = c.Install
	}
	if c.Remove != nil {
		eff.Remove = c.Remove
	}
	if c.Update != nil {
		eff.Update = c.Update
	}
	if c.Latest != nil {
		eff.Latest = c.Latest
	}
	if c.Versionable != SupportInherit {
		eff.Versionable = c.Versionable
	}
	if c.HoldsLatest != SupportInherit {
		eff.HoldsLatest = c.HoldsLatest
	}
	return eff
}
