package main

import (
	"fmt"
	"log/slog"

	"github.com/openmined/termhost/internal/platform"
	"github.com/openmined/termhost/internal/version"
	"github.com/spf13/cobra"
)

type versionOutput struct {
	version.Info
	Host *platform.Info `json:"host,omitempty"`
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !asJSON {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Detailed())
				return err
			}

			out := versionOutput{Info: version.Current()}
			if host, err := platform.Describe(cmd.Context()); err == nil {
				out.Host = &host
			} else {
				slog.Debug("host info unavailable", "error", err)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON, including host details")
	return cmd
}
