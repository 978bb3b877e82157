package pkgmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/floatingatoll/puppet/pkg/provider"
)

// sunCapabilities is the Solaris SysV packaging kind. It observes through
// pkginfo and mutates through pkgadd/pkgrm; there is no repository notion, so
// the kind is neither versionable nor latest-capable.
func sunCapabilities(r Runner) provider.Capabilities {
	return provider.Capabilities{
		Query: func(ctx context.Context, name string) (string, bool, error) {
			out, err := r.Output(ctx, "pkginfo", "-l", name)
			if err != nil {
				// pkginfo exits non-zero for unknown packages.
				return "", false, nil
			}
			return parsePkginfoVersion(out, name)
		},
		Install: func(ctx context.Context, name, _ string) error {
			return r.Run(ctx, "pkgadd", "-n", name)
		},
		Remove: func(ctx context.Context, name string) error {
			return r.Run(ctx, "pkgrm", "-n", name)
		},
	}
}

// parsePkginfoVersion extracts the VERSION field from pkginfo -l output.
func parsePkginfoVersion(out, name string) (string, bool, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if version, ok := strings.CutPrefix(line, "VERSION:"); ok {
			return strings.TrimSpace(version), true, nil
		}
	}
	return "", false, fmt.Errorf("no VERSION field in pkginfo output for %s", name)
}
