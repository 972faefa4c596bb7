package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/openmined/termhost/internal/history"
	"github.com/openmined/termhost/internal/utils"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := []history.Entry{}
			if utils.FileExists(a.settings.HistoryPath()) {
				j := history.NewJournal(a.settings.HistoryPath())
				if err := j.Open(); err != nil {
					return err
				}
				defer j.Close()

				var err error
				if entries, err = j.List(limit); err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), gray.Render("no transfers recorded"))
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), historyTable(entries))
			return err
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func historyTable(entries []history.Entry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(gray).
		Headers("FINISHED", "STATUS", "DIRECTION", "SIZE", "NAME")

	for _, e := range entries {
		status := green.Render(string(e.Status))
		if e.Status == history.StatusFailed {
			status = red.Render(string(e.Status))
		}
		t.Row(
			humanize.RelTime(e.FinishedAt, time.Now(), "ago", "from now"),
			status,
			string(e.Direction),
			humanize.IBytes(uint64(e.Size)),
			e.Name,
		)
	}
	return t.String()
}
