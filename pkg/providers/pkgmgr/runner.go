package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes package-manager commands. Provider actions are blocking
// calls with no internal timeout; callers needing cancellation wrap the
// context externally.
type Runner interface {
	// Run executes a command, discarding output. A non-zero exit is an error
	// carrying the command's stderr.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes a command and returns its trimmed standard output.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner is the production Runner backed by os/exec.
type execRunner struct{}

// NewRunner returns a Runner that executes real commands.
func NewRunner() Runner {
	return execRunner{}
}

// Run implements Runner.
func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, tail(output))
	}
	return nil
}

// Output implements Runner.
func (execRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, tail(exitErr.Stderr))
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(output)), nil
}

// tail keeps error output readable when a package manager dumps pages.
func tail(output []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(output))
	if len(s) > limit {
		s = "..." + s[len(s)-limit:]
	}
	return s
}
