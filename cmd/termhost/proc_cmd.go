package main

import (
	"fmt"

	"github.com/openmined/termhost/internal/platform"
	"github.com/spf13/cobra"
)

func newProcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proc NAME",
		Short: "Report whether a process with this executable name is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			running, err := platform.IsProcessRunning(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if running {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), green.Render(args[0]+" is running"))
			} else {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), yellow.Render(args[0]+" is not running"))
			}
			return err
		},
	}
}
