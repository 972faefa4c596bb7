package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openmined/termhost/internal/config"
	"github.com/openmined/termhost/internal/version"
	"github.com/spf13/cobra"
)

// app carries what the root command sets up for its subcommands.
type app struct {
	settings *config.Settings
	closeLog func() error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "Move files and manage terminal host configuration",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("datadir", "d", config.DefaultDataDir(), "data directory holding config, history and logs")
	flags.String("settings", "", "settings file (default <datadir>/settings.yaml)")
	flags.String("env-file", "", "load environment variables from a dotenv file")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newConfigCmd(a),
		newExpandCmd(a),
		newCopyCmd(a),
		newHistoryCmd(a),
		newProcCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	a.settings = s

	closeLog, err := setupLogging(s, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.closeLog = closeLog

	slog.Debug("settings loaded", "datadir", s.DataDir, "jobs", s.Jobs, "buffer", s.BufferSize)
	return nil
}

func (a *app) close() {
	if a.closeLog == nil {
		return
	}
	if err := a.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
	a.closeLog = nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCmd(a)
	err := root.ExecuteContext(ctx)
	a.close()

	if err != nil {
		fmt.Fprintln(os.Stderr, red.Render("Error:"), err)
		os.Exit(1)
	}
}
