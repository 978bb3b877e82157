package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/floatingatoll/puppet/pkg/catalog"
	"github.com/floatingatoll/puppet/pkg/engine"
	"github.com/floatingatoll/puppet/pkg/platform"
	"github.com/floatingatoll/puppet/pkg/policy"
	"github.com/floatingatoll/puppet/pkg/provider"
	"github.com/floatingatoll/puppet/pkg/providers/pkgmgr"
	"github.com/floatingatoll/puppet/pkg/stores"
	"github.com/floatingatoll/puppet/pkg/telemetry"
)

// watchDebounce coalesces bursts of file events into one pass.
const watchDebounce = 500 * time.Millisecond

func newApplyCommand(version string) *cobra.Command {
	var (
		noop          bool
		watch         bool
		noPersist     bool
		policyDirs    []string
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "apply <manifest>...",
		Short: "Run a convergence pass over the declared resources",
		Long: `Run a convergence pass over the resources declared in the given
CUE manifest files or directories.

This command:
  - Loads and validates the manifests
  - Detects the local platform and registers package providers
  - Compares each declared package against its observed state
  - Applies corrective actions through the package manager
  - Gates corrective actions through loaded policies
  - Persists the pass report to the report database`,
		Example: `  # Converge a single manifest
  puppet apply site.cue

  # Audit without changing anything
  puppet apply --noop ./manifests

  # Re-apply whenever a manifest changes
  puppet apply --watch ./manifests

  # Gate actions with custom rego policies
  puppet apply --policy-dir ./policies site.cue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tel, err := newTelemetry(version, metricsListen)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tel.Shutdown(shutdownCtx)
			}()
			if metricsListen != "" {
				if err := tel.StartMetricsServer(); err != nil {
					return fmt.Errorf("failed to start metrics server: %w", err)
				}
			}

			logger := tel.Logger.NewComponentLogger("cli")

			registry := provider.NewRegistry(tel.Logger.Zerolog())
			if err := pkgmgr.Register(registry, nil); err != nil {
				return fmt.Errorf("failed to register package providers: %w", err)
			}

			policyEngine, err := policy.NewEngine(tel.Logger.Zerolog())
			if err != nil {
				return fmt.Errorf("failed to initialize policy engine: %w", err)
			}
			if len(policyDirs) > 0 {
				if err := policyEngine.LoadPolicies(ctx, policyDirs); err != nil {
					return fmt.Errorf("failed to load policies: %w", err)
				}
			}

			var store engine.ReportStore
			if !noPersist {
				sqliteStore, err := openStore(ctx, dbPath)
				if err != nil {
					return err
				}
				defer sqliteStore.Close()
				store = sqliteStore
			}

			info := platform.Detect()
			logger.Infof("detected platform %s %s", info.ID, info.VersionID)

			evaluator, err := engine.NewEvaluator(engine.Config{
				Registry:  registry,
				Platforms: info.Identifiers(),
				Policy:    policyEngine,
				Store:     store,
				Telemetry: tel,
				Noop:      noop,
			})
			if err != nil {
				return fmt.Errorf("failed to create evaluator: %w", err)
			}

			loader := catalog.NewLoader(tel.Logger.Zerolog())
			runOnce := func(ctx context.Context) error {
				cat, err := loader.Load(args)
				if err != nil {
					return err
				}
				if !cat.Valid() {
					for _, verr := range cat.Errors {
						fmt.Fprintln(os.Stderr, verr.Error())
					}
					return fmt.Errorf("%d manifest error(s)", len(cat.Errors))
				}

				report, err := evaluator.Run(ctx, cat.Resources)
				if err != nil {
					return err
				}

				printReport(report)
				if report.FailedCount > 0 {
					return fmt.Errorf("%d resource(s) failed", report.FailedCount)
				}
				return nil
			}

			if !watch {
				return runOnce(ctx)
			}

			// Watch mode runs until interrupted; pass failures are logged
			// rather than terminating the loop.
			if err := runOnce(ctx); err != nil {
				logger.WithError(err).Error("pass failed")
			}
			return watchAndApply(ctx, tel, args, runOnce)
		},
	}

	cmd.Flags().BoolVar(&noop, "noop", false, "record differences without applying changes")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-apply whenever a manifest changes")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "skip report persistence")
	cmd.Flags().StringSliceVar(&policyDirs, "policy-dir", nil, "directories of rego policies gating corrective actions")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "address to serve Prometheus metrics on (e.g. :9090)")

	return cmd
}

// openStore opens, initializes and migrates the report database.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open report database: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize report database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate report database: %w", err)
	}
	return store, nil
}

// watchAndApply re-runs the pass whenever a CUE file under the watched
// sources changes. Event bursts within the debounce window collapse into
// a single pass.
func watchAndApply(ctx context.Context, tel *telemetry.Telemetry, sources []string, run func(context.Context) error) error {
	logger := tel.Logger.NewComponentLogger("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return fmt.Errorf("failed to stat source %s: %w", source, err)
		}
		// Watching the directory rather than the file itself survives
		// editors that replace files via rename.
		dir := source
		if !info.IsDir() {
			dir = filepath.Dir(source)
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Infof("watching %s", dir)
	}

	var debounce *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".cue") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logger.Debugf("manifest change: %s %s", event.Op, event.Name)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("watch error")
		case <-trigger:
			logger.Info("manifests changed, re-applying")
			if err := run(ctx); err != nil {
				logger.WithError(err).Error("pass failed")
			}
		}
	}
}

// printReport writes a human-readable pass summary to stdout.
func printReport(report *engine.Report) {
	for _, snap := range report.Statuses {
		ref := fmt.Sprintf("%s[%s]", snap.ResourceType, snap.Title)
		for _, event := range snap.Events {
			fmt.Printf("  %s: %s: %s\n", ref, event.Status, event.Message)
		}
	}
	fmt.Printf("Pass %s finished in %s: %d resources, %d changed, %d failed, %d skipped, %d out of sync (%s)\n",
		report.ID,
		report.Duration().Round(time.Millisecond),
		report.ResourceCount,
		report.ChangedCount,
		report.FailedCount,
		report.SkippedCount,
		report.OutOfSyncCount,
		report.Status,
	)
}
