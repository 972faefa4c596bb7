package main

import (
	"fmt"
	"log/slog"

	"github.com/openmined/termhost/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and edit the host configuration file",
	}
	cmd.AddCommand(
		newConfigPathCmd(a),
		newConfigShowCmd(a),
		newConfigGetCmd(a),
		newConfigSetCmd(a),
		newConfigWatchCmd(a),
	)
	return cmd
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), a.settings.ConfigPath())
			return err
		},
	}
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := config.NewStore(a.settings.ConfigPath()).Load()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), content)
			return err
		},
	}
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one value, addressed by a dotted key such as ui.theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(config.NewStore(a.settings.ConfigPath()))
			if err != nil {
				return err
			}
			value, ok := doc.Get(args[0])
			if !ok {
				return fmt.Errorf("key %q is not set", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set one value; VALUE is read as YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewStore(a.settings.ConfigPath())
			doc, err := loadDocument(store)
			if err != nil {
				return err
			}
			if err := doc.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := store.Save(cmd.Context(), doc.String()); err != nil {
				return err
			}
			slog.Info("config updated", "key", args[0], "path", store.Path())
			return nil
		},
	}
}

func newConfigWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the config file each time it is changed by another program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			watcher := config.NewWatcher(config.NewStore(a.settings.ConfigPath()))
			if err := watcher.Start(cmd.Context()); err != nil {
				return err
			}
			defer watcher.Stop()

			out := cmd.OutOrStdout()
			for content := range watcher.Changes() {
				fmt.Fprintln(out, cyan.Render("--- config changed ---"))
				fmt.Fprint(out, content)
			}
			return nil
		},
	}
}

func loadDocument(store *config.Store) (*config.Document, error) {
	content, err := store.Load()
	if err != nil {
		return nil, err
	}
	return config.ParseDocument(content)
}
