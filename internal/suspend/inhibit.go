package suspend

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/openmined/termhost/internal/hosterr"
)

// commandInhibitor holds suspension off for as long as a helper process runs.
type commandInhibitor struct {
	name string
	args func(reason string) []string
	cmd  *exec.Cmd
}

func (c *commandInhibitor) Inhibit(reason string) error {
	if c.cmd != nil {
		return nil
	}

	path, err := exec.LookPath(c.name)
	if err != nil {
		return fmt.Errorf("%w: %s", hosterr.NewUnsupportedError("suspend inhibition"), err)
	}

	cmd := exec.Command(path, c.args(reason)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.name, err)
	}
	c.cmd = cmd

	slog.Debug("suspend inhibited", "backend", c.name, "pid", cmd.Process.Pid)
	return nil
}

func (c *commandInhibitor) Uninhibit() error {
	if c.cmd == nil {
		return nil
	}
	cmd := c.cmd
	c.cmd = nil

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop %s: %w", c.name, err)
	}
	// exit status is always "killed" here
	_ = cmd.Wait()

	slog.Debug("suspend released", "backend", c.name)
	return nil
}

type unsupportedInhibitor struct{}

func (unsupportedInhibitor) Inhibit(string) error {
	return hosterr.NewUnsupportedError("suspend inhibition")
}

func (unsupportedInhibitor) Uninhibit() error { return nil }
