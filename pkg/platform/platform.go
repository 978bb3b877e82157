// Package platform produces the platform identifier consumed by provider
// default resolution. On Linux the identifier comes from /etc/os-release;
// elsewhere it falls back to the OS name.
package platform

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strings"
)

// osReleasePath is overridable for tests.
var osReleasePath = "/etc/os-release"

// Info describes the detected platform.
type Info struct {
	// ID is the primary platform identifier, e.g. "ubuntu", "fedora".
	ID string

	// Like lists related platform families from ID_LIKE, in declared order,
	// e.g. ["debian"] for Ubuntu derivatives.
	Like []string

	// VersionID is the release version, e.g. "24.04".
	VersionID string
}

// Identifiers returns the identifier candidates in preference order: the
// primary ID first, then each ID_LIKE family. Callers resolving a provider
// default try each in turn.
func (i Info) Identifiers() []string {
	out := make([]string, 0, 1+len(i.Like))
	if i.ID != "" {
		out = append(out, i.ID)
	}
	out = append(out, i.Like...)
	return out
}

// Detect reads the local platform identity. Detection never fails hard: a
// missing or unreadable os-release file yields the bare OS name.
func Detect() Info {
	if runtime.GOOS != "linux" {
		return Info{ID: runtime.GOOS}
	}

	f, err := os.Open(osReleasePath)
	if err != nil {
		return Info{ID: runtime.GOOS}
	}
	defer f.Close()

	info := parseOSRelease(f)
	if info.ID == "" {
		info.ID = runtime.GOOS
	}
	return info
}

// parseOSRelease extracts ID, ID_LIKE and VERSION_ID from os-release data.
func parseOSRelease(r io.Reader) Info {
	var info Info

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)

		switch key {
		case "ID":
			info.ID = strings.ToLower(value)
		case "ID_LIKE":
			for _, like := range strings.Fields(strings.ToLower(value)) {
				info.Like = append(info.Like, like)
			}
		case "VERSION_ID":
			info.VersionID = value
		}
	}

	return info
}
