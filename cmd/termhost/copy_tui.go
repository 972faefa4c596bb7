package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/openmined/termhost/internal/transfer"
)

const (
	tickInterval  = 100 * time.Millisecond
	maxBarWidth   = 60
	maxActiveRows = 5
)

type copyStartedMsg struct{ t transfer.Transfer }
type copyDoneMsg struct{ err error }
type tickMsg time.Time

// copyModel renders overall progress from the downloads the manager announces.
type copyModel struct {
	files   int
	total   int64
	started time.Time
	active  []transfer.Transfer
	bar     progress.Model
	done    bool
	err     error
}

func newCopyModel(files int, total int64) copyModel {
	return copyModel{
		files:   files,
		total:   total,
		started: time.Now(),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m copyModel) Init() tea.Cmd {
	return tick()
}

func (m copyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case copyStartedMsg:
		m.active = append(m.active, msg.t)
		return m, nil
	case copyDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tickMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-4, maxBarWidth))
		return m, nil
	}
	return m, nil
}

// tally returns bytes moved so far and how many files are complete.
func (m copyModel) tally() (int64, int) {
	var moved int64
	finished := 0
	for _, t := range m.active {
		p := t.Progress()
		moved += p.Transferred
		if p.Transferred >= p.Total {
			finished++
		}
	}
	return moved, finished
}

func (m copyModel) View() string {
	moved, finished := m.tally()
	ratio := 0.0
	if m.total > 0 {
		ratio = min(1, float64(moved)/float64(m.total))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d/%d files  %s / %s\n",
		cyan.Render("copying"), finished, m.files,
		humanize.IBytes(uint64(moved)), humanize.IBytes(uint64(m.total)))
	b.WriteString(m.bar.ViewAs(ratio))
	b.WriteString("\n")

	if m.done {
		elapsed := time.Since(m.started).Round(time.Millisecond)
		if m.err != nil {
			b.WriteString(red.Render(fmt.Sprintf("failed after %s: %v", elapsed, m.err)))
		} else {
			b.WriteString(green.Render(fmt.Sprintf("done in %s", elapsed)))
		}
		b.WriteString("\n")
		return b.String()
	}

	rows := 0
	for _, t := range m.active {
		p := t.Progress()
		if p.Transferred >= p.Total {
			continue
		}
		fmt.Fprintf(&b, "  %s %s\n", lightGray.Render(t.Name()), gray.Render(fmt.Sprintf("%3.0f%%", p.Percent())))
		if rows++; rows == maxActiveRows {
			break
		}
	}
	return b.String()
}

// runCopyTUI runs the copy while a progress bar redraws in place on out.
func runCopyTUI(ctx context.Context, c *copier, units []transfer.Unit, out io.Writer) error {
	started, unsubscribe := c.manager.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(newCopyModel(len(units), totalSize(units)),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	go func() {
		for t := range started {
			if t.Direction() == transfer.DirectionDownload {
				p.Send(copyStartedMsg{t: t})
			}
		}
	}()

	result := make(chan error, 1)
	go func() {
		err := c.run(ctx, units, io.Discard)
		result <- err
		p.Send(copyDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		slog.Warn("progress display failed", "error", err)
	}
	return <-result
}
