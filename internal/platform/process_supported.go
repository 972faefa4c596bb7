//go:build linux || darwin || windows || freebsd

package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v4/process"
)

// IsProcessRunning reports whether any process has the executable name name.
// Processes that exit or deny access while being inspected are skipped.
func IsProcessRunning(ctx context.Context, name string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}

	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		procName, err := p.NameWithContext(ctx)
		if err != nil {
			slog.Debug("process name unavailable", "pid", p.Pid, "error", err)
			continue
		}
		if sameProcessName(procName, name) {
			return true, nil
		}
	}
	return false, nil
}
