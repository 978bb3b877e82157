package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/floatingatoll/puppet/pkg/catalog"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate CUE manifests without applying them",
		Long: `Validate CUE manifest files or directories.

This command checks:
  - CUE syntax validity
  - Declaration shape and desired-value conventions
  - Resource identity constraints`,
		Example: `  # Validate a single manifest
  puppet validate site.cue

  # Validate a manifest directory
  puppet validate ./manifests`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := catalog.NewLoader(zerolog.New(os.Stderr).Level(zerolog.WarnLevel))
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

			fmt.Printf("Valid: %d resource(s) across %d file(s)\n", len(cat.Resources), len(cat.SourceFiles))
			return nil
		},
	}

	return cmd
}
