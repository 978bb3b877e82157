package pkgmgr

import (
	"fmt"

	"github.com/floatingatoll/puppet/pkg/provider"
)

// Register adds the built-in package provider kinds to the registry. Parents
// are registered before their children so inheritance resolves. A nil runner
// selects the real command executor.
func Register(reg *provider.Registry, r Runner) error {
	if r == nil {
		r = NewRunner()
	}

	kinds := []struct {
		name   string
		parent string
		caps   provider.Capabilities
	}{
		{name: "dpkg", caps: dpkgCapabilities(r)},
		{name: "apt", parent: "dpkg", caps: aptCapabilities(r)},
		{name: "rpm", caps: rpmCapabilities(r)},
		{name: "yum", parent: "rpm", caps: yumCapabilities(r)},
		{name: "dnf", parent: "yum", caps: dnfCapabilities(r)},
		{name: "sun", caps: sunCapabilities(r)},
	}

	for _, k := range kinds {
		if _, err := reg.Register(k.name, k.parent, k.caps); err != nil {
			return fmt.Errorf("failed to register provider kind %s: %w", k.name, err)
		}
	}
	return nil
}
