package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/floatingatoll/puppet/pkg/platform"
	"github.com/floatingatoll/puppet/pkg/provider"
	"github.com/floatingatoll/puppet/pkg/providers/pkgmgr"
)

func newProvidersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the registered package providers",
		Long: `List the registered package provider kinds, their parents and
capabilities, and the default kind resolved for the local platform.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := provider.NewRegistry(zerolog.New(os.Stderr).Level(zerolog.WarnLevel))
			if err := pkgmgr.Register(registry, nil); err != nil {
				return fmt.Errorf("failed to register package providers: %w", err)
			}

			info := platform.Detect()
			defaultKind := ""
			for _, id := range info.Identifiers() {
				name, err := registry.ResolveDefault(id)
				if err == nil {
					defaultKind = name
					break
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARENT\tVERSIONABLE\tLATEST\tDEFAULT")
			for _, name := range registry.Names() {
				kind, err := registry.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%s\n",
					kind.Name(),
					orDash(kind.Parent()),
					kind.Versionable(),
					kind.HoldsLatest(),
					mark(kind.Name() == defaultKind),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if defaultKind == "" {
				fmt.Printf("\nNo default provider for platform %q\n", info.ID)
			}
			return nil
		},
	}

	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}
