package pkgmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/floatingatoll/puppet/pkg/provider"
)

// dpkgCapabilities is the Debian base kind: it can observe installed state
// and perform raw dpkg installs/removals, but knows nothing about
// repositories, so it is neither versionable nor latest-capable.
func dpkgCapabilities(r Runner) provider.Capabilities {
	return provider.Capabilities{
		Query: func(ctx context.Context, name string) (string, bool, error) {
			out, err := r.Output(ctx, "dpkg-query", "-W", "-f", "${Status} ${Version}", name)
			if err != nil {
				// dpkg-query exits non-zero for packages it has never seen.
				return "", false, nil
			}
			return parseDpkgStatus(out)
		},
		Install: func(ctx context.Context, name, _ string) error {
			return r.Run(ctx, "dpkg", "-i", name)
		},
		Remove: func(ctx context.Context, name string) error {
			return r.Run(ctx, "dpkg", "-r", name)
		},
	}
}

// aptCapabilities overrides the dpkg base with repository-aware actions.
// Inherits the dpkg query.
func aptCapabilities(r Runner) provider.Capabilities {
	return provider.Capabilities{
		Install: func(ctx context.Context, name, version string) error {
			spec := name
			if version != "" {
				spec = fmt.Sprintf("%s=%s", name, version)
			}
			return r.Run(ctx, "apt-get", "-q", "-y", "install", spec)
		},
		Remove: func(ctx context.Context, name string) error {
			return r.Run(ctx, "apt-get", "-q", "-y", "remove", name)
		},
		Update: func(ctx context.Context, name string) error {
			// install also upgrades an already-installed package.
			return r.Run(ctx, "apt-get", "-q", "-y", "install", name)
		},
		Latest: func(ctx context.Context, name string) (string, error) {
			out, err := r.Output(ctx, "apt-cache", "policy", name)
			if err != nil {
				return "", err
			}
			return parseAptCandidate(out, name)
		},
		Versionable: provider.SupportEnabled,
		HoldsLatest: provider.SupportEnabled,
	}
}

// parseDpkgStatus interprets "${Status} ${Version}" output, e.g.
// "install ok installed 1.18.0-6ubuntu14".
func parseDpkgStatus(out string) (string, bool, error) {
	fields := strings.Fields(out)
	if len(fields) < 3 {
		return "", false, fmt.Errorf("unexpected dpkg-query output %q", out)
	}
	if fields[2] != "installed" {
		return "", false, nil
	}
	if len(fields) < 4 {
		return "", false, fmt.Errorf("dpkg-query reported installed with no version: %q", out)
	}
	return fields[3], true, nil
}

// parseAptCandidate extracts the Candidate line from apt-cache policy output.
func parseAptCandidate(out, name string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if version, ok := strings.CutPrefix(line, "Candidate:"); ok {
			version = strings.TrimSpace(version)
			if version == "" || version == "(none)" {
				return "", fmt.Errorf("no installation candidate for package %s", name)
			}
			return version, nil
		}
	}
	return "", fmt.Errorf("no candidate version in apt-cache policy output for %s", name)
}
