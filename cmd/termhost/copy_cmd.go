package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/termhost/internal/config"
	"github.com/openmined/termhost/internal/history"
	"github.com/openmined/termhost/internal/hosterr"
	"github.com/openmined/termhost/internal/suspend"
	"github.com/openmined/termhost/internal/transfer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newCopyCmd(a *app) *cobra.Command {
	var (
		dest  string
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "copy PATH... --dest DIR",
		Short: "Copy files and folders chunk by chunk, keeping the host awake meanwhile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCopier(a.settings, dest)
			if err != nil {
				return err
			}
			defer c.close()

			units, err := c.expander.Expand(cmd.Context(), args)
			if err != nil {
				return err
			}
			if len(units) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), gray.Render("nothing to copy"))
				return nil
			}

			out := cmd.OutOrStdout()
			if !plain && isTerminal(out) {
				return runCopyTUI(cmd.Context(), c, units, out)
			}
			return c.run(cmd.Context(), units, out)
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "", "destination directory")
	cmd.Flags().Int("jobs", config.DefaultJobs, "files copied at the same time")
	cmd.Flags().Int("buffer-size", transfer.DefaultBufferSize, "chunk size in bytes")
	cmd.Flags().Bool("history", true, "record copies in the history")
	cmd.Flags().BoolVar(&plain, "plain", false, "log progress lines instead of the progress bar")
	addSelectionFlags(cmd)
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

var (
	errDestIsSource  = errors.New("destination is the source file")
	errDestCollision = errors.New("destination shared by more than one file")
)

// copier moves units into dest: one upload and one download per file, pumped
// through the chunk buffer.
type copier struct {
	dest     string
	jobs     int
	expander *transfer.Expander
	manager  *transfer.Manager
	blocker  *suspend.Registry
	journal  *history.Journal
}

func newCopier(s *config.Settings, dest string) (*copier, error) {
	if dest == "" {
		return nil, errors.New("destination is required")
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}

	expander, err := newExpander(s)
	if err != nil {
		return nil, err
	}

	blocker := suspend.NewSystemRegistry()
	c := &copier{
		dest:     absDest,
		jobs:     s.Jobs,
		expander: expander,
		blocker:  blocker,
		manager: transfer.NewManager(expander,
			transfer.WithBlocker(blocker),
			transfer.WithBufferSize(s.BufferSize),
		),
	}

	if s.History {
		j := history.NewJournal(s.HistoryPath())
		if err := j.Open(); err != nil {
			slog.Warn("history disabled", "error", err)
		} else {
			c.journal = j
		}
	}
	return c, nil
}

func (c *copier) close() {
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			slog.Warn("history close", "error", err)
		}
	}
}

func (c *copier) destination(u transfer.Unit) string {
	return filepath.Join(c.dest, filepath.FromSlash(u.Name()))
}

// run copies every unit, at most c.jobs at a time. The first failure stops
// files that have not started yet.
func (c *copier) run(ctx context.Context, units []transfer.Unit, out io.Writer) error {
	if err := c.checkDestinations(units); err != nil {
		return err
	}

	started := time.Now()
	var copied, bytes int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.jobs)
	results := make(chan int64, len(units))

	for _, unit := range units {
		g.Go(func() error {
			n, err := c.copyOne(gctx, unit)
			if err != nil {
				return err
			}
			results <- n
			return nil
		})
	}
	err := g.Wait()
	close(results)

	for n := range results {
		copied++
		bytes += n
	}

	elapsed := time.Since(started)
	summary := fmt.Sprintf("copied %d of %d files, %s in %s", copied, len(units),
		humanize.IBytes(uint64(bytes)), elapsed.Round(time.Millisecond))
	if err != nil {
		fmt.Fprintln(out, red.Render(summary))
		return err
	}
	fmt.Fprintln(out, green.Render(summary))
	return nil
}

// checkDestinations rejects a plan in which a download would truncate its own
// source or two files would write the same destination. Nothing is opened on failure.
func (c *copier) checkDestinations(units []transfer.Unit) error {
	sources := make(map[string]string, len(units))
	for _, u := range units {
		dest := c.destination(u)
		if prev, dup := sources[dest]; dup {
			return hosterr.NewIOError("copy", dest,
				fmt.Errorf("%w: %s and %s", errDestCollision, prev, u.AbsPath))
		}
		sources[dest] = u.AbsPath

		destInfo, err := os.Stat(dest)
		if err != nil {
			// missing is the usual case; other failures surface when the download opens
			continue
		}
		srcInfo, err := os.Stat(u.AbsPath)
		if err != nil {
			return hosterr.NewIOError("stat", u.AbsPath, err)
		}
		if os.SameFile(srcInfo, destInfo) {
			return hosterr.NewIOError("copy", dest, errDestIsSource)
		}
	}
	return nil
}

// copyOne copies a single unit and records both sides in the history. Both
// transfers are closed before it returns.
func (c *copier) copyOne(ctx context.Context, unit transfer.Unit) (int64, error) {
	started := time.Now()

	up, err := c.manager.OpenUpload(ctx, unit)
	if err != nil {
		return 0, err
	}

	down, err := c.manager.StartDownload(ctx, c.destination(unit), up.Mode(), up.Size())
	if err != nil {
		err = errors.Join(err, up.Close())
		c.record(up, started, err)
		return 0, err
	}

	err = transfer.Pump(ctx, up, down)
	err = errors.Join(err, down.Close(), up.Close())
	c.record(up, started, err)
	c.record(down, started, err)

	if err != nil {
		slog.Warn("copy failed", "name", unit.Name(), "error", err)
		return 0, err
	}
	slog.Info("copied", "name", unit.Name(), "size", humanize.IBytes(uint64(up.Size())), "dest", down.Path())
	return down.Progress().Transferred, nil
}

func (c *copier) record(t transfer.Transfer, started time.Time, err error) {
	if c.journal == nil {
		return
	}
	if rerr := c.journal.Record(history.NewEntry(t, started, err)); rerr != nil {
		slog.Warn("history record failed", "id", t.ID(), "error", rerr)
	}
}

// totalSize sums the sizes of units that can be stat'ed.
func totalSize(units []transfer.Unit) int64 {
	var total int64
	for _, u := range units {
		if info, err := os.Stat(u.AbsPath); err == nil {
			total += info.Size()
		}
	}
	return total
}
