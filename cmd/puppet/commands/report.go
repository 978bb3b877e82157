package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/floatingatoll/puppet/pkg/engine"
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect stored convergence reports",
	}

	cmd.AddCommand(newReportListCommand())
	cmd.AddCommand(newReportShowCommand())
	cmd.AddCommand(newReportDeleteCommand())

	return cmd
}

func newReportListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.ListReports(ctx, limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No reports stored")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFINISHED\tSTATUS\tRESOURCES\tCHANGED\tFAILED\tNOOP")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%v\n",
					s.ID,
					s.FinishedAt.Format(time.RFC3339),
					s.Status,
					s.ResourceCount,
					s.ChangedCount,
					s.FailedCount,
					s.Noop,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of reports to list")

	return cmd
}

func newReportShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show a stored report in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := store.GetReport(ctx, args[0])
			if err != nil {
				return err
			}

			return writeReport(os.Stdout, report, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json, yaml)")

	return cmd
}

func newReportDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <report-id>",
		Short: "Delete a stored report and its resource statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteReport(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted report %s\n", args[0])
			return nil
		},
	}

	return cmd
}

// writeReport encodes the report in the requested format.
func writeReport(w *os.File, report *engine.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(report)
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
