package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/openmined/termhost/internal/config"
	"github.com/openmined/termhost/internal/transfer"
	"github.com/spf13/cobra"
)

func newExpandCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "expand PATH...",
		Short: "List the files a selection of files and folders would transfer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expander, err := newExpander(a.settings)
			if err != nil {
				return err
			}
			units, err := expander.Expand(cmd.Context(), args)
			if err != nil {
				return err
			}

			if asJSON {
				if units == nil {
					units = []transfer.Unit{}
				}
				return writeJSON(cmd.OutOrStdout(), units)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, u := range units {
				fmt.Fprintf(w, "%s\t%s\n", u.Name(), u.AbsPath)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print units as JSON")
	addSelectionFlags(cmd)
	return cmd
}

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("ignore", nil, "extra gitignore-style pattern to skip (repeatable)")
	cmd.Flags().StringSlice("include", nil, "only keep files under folders matching this glob (repeatable)")
}

func newExpander(s *config.Settings) (*transfer.Expander, error) {
	return transfer.NewExpander(
		transfer.WithIgnorePatterns(s.Ignore...),
		transfer.WithIncludePatterns(s.Include...),
	)
}
