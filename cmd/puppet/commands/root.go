package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floatingatoll/puppet/pkg/telemetry"
)

var (
	// Global flags
	logLevel  string
	logFormat string
	dbPath    string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "puppet",
		Short: "Puppet - Declarative Package Convergence Agent",
		Long: `Puppet converges the local system toward the package state declared
in CUE manifests.

Each pass compares the observed state of every declared package against its
desired state, applies the corrective action through the platform's package
manager, and records the outcome as a persisted report.

Features:
  - Typed manifests via CUE
  - Platform-selected package providers (apt, dnf, yum, dpkg, rpm)
  - Policy gating of corrective actions via OPA/rego
  - Noop mode for change auditing
  - Report history in SQLite`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "puppet.db", "report database path")

	// Add subcommands
	rootCmd.AddCommand(newApplyCommand(version))
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newProvidersCommand())
	rootCmd.AddCommand(newReportCommand())

	return rootCmd
}

// newTelemetry builds the telemetry stack from the global flags.
func newTelemetry(version string, metricsListen string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat
	if metricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = metricsListen
	}
	return telemetry.NewTelemetry(cfg)
}
