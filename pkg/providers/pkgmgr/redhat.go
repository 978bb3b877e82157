package pkgmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/floatingatoll/puppet/pkg/provider"
)

// rpmCapabilities is the Red Hat base kind: direct rpm database queries and
// raw package operations. Versionable (rpm installs carry explicit versions)
// but repository-unaware, so no latest support.
func rpmCapabilities(r Runner) provider.Capabilities {
	return provider.Capabilities{
		Query: func(ctx context.Context, name string) (string, bool, error) {
			out, err := r.Output(ctx, "rpm", "-q", "--queryformat", "%{VERSION}-%{RELEASE}", name)
			if err != nil {
				// rpm -q exits non-zero when the package is not installed.
				return "", false, nil
			}
			return out, true, nil
		},
		Install: func(ctx context.Context, name, version string) error {
			spec := name
			if version != "" {
				spec = fmt.Sprintf("%s-%s", name, version)
			}
			return r.Run(ctx, "rpm", "-i", spec)
		},
		Remove: func(ctx context.Context, name string) error {
			return r.Run(ctx, "rpm", "-e", name)
		},
		Versionable: provider.SupportEnabled,
	}
}

// yumCapabilities overrides the rpm base with repository-aware install,
// update and latest lookup. Inherits the rpm query and remove.
func yumCapabilities(r Runner) provider.Capabilities {
	return repoCapabilities(r, "yum", []string{"-d", "0", "-e", "0"})
}

// dnfCapabilities overrides the yum chain with the dnf command.
func dnfCapabilities(r Runner) provider.Capabilities {
	return repoCapabilities(r, "dnf", []string{"-q"})
}

// repoCapabilities builds the shared yum/dnf capability set around the given
// command and quiet flags.
func repoCapabilities(r Runner, cmd string, quiet []string) provider.Capabilities {
	run := func(ctx context.Context, args ...string) error {
		return r.Run(ctx, cmd, append(append([]string{}, quiet...), args...)...)
	}
	output := func(ctx context.Context, args ...string) (string, error) {
		return r.Output(ctx, cmd, append(append([]string{}, quiet...), args...)...)
	}

	return provider.Capabilities{
		Install: func(ctx context.Context, name, version string) error {
			spec := name
			if version != "" {
				spec = fmt.Sprintf("%s-%s", name, version)
			}
			return run(ctx, "-y", "install", spec)
		},
		Update: func(ctx context.Context, name string) error {
			return run(ctx, "-y", "update", name)
		},
		Latest: func(ctx context.Context, name string) (string, error) {
			// A pending update names the newest version directly. When there
			// is none the installed version is already the latest, and for a
			// package not installed at all the available listing decides.
			if out, err := output(ctx, "list", "updates", name); err == nil {
				if version, ok := parseRepoList(out, name); ok {
					return version, nil
				}
			}
			if out, err := r.Output(ctx, "rpm", "-q", "--queryformat", "%{VERSION}-%{RELEASE}", name); err == nil {
				return out, nil
			}
			out, err := output(ctx, "list", "available", name)
			if err != nil {
				return "", fmt.Errorf("no available version for package %s: %w", name, err)
			}
			version, ok := parseRepoList(out, name)
			if !ok {
				return "", fmt.Errorf("no available version for package %s", name)
			}
			return version, nil
		},
		HoldsLatest: provider.SupportEnabled,
	}
}

// parseRepoList extracts the version column from "yum list" style output,
// matching lines of the form "name.arch  version-release  repo".
func parseRepoList(out, name string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pkg, _, _ := strings.Cut(fields[0], ".")
		if pkg == name {
			return fields[1], true
		}
	}
	return "", false
}
