//go:build linux

package suspend

import "github.com/openmined/termhost/internal/version"

func newSystemInhibitor() Inhibitor {
	return &commandInhibitor{
		name: "systemd-inhibit",
		args: func(reason string) []string {
			return []string{
				"--what=sleep:idle",
				"--who=" + version.AppName,
				"--why=" + reason,
				"--mode=block",
				"sleep", "infinity",
			}
		},
	}
}
