//go:build darwin

package suspend

import (
	"os"
	"strconv"
)

func newSystemInhibitor() Inhibitor {
	return &commandInhibitor{
		name: "caffeinate",
		args: func(string) []string {
			// -w ties the assertion to our pid so it never outlives the process
			return []string{"-i", "-w", strconv.Itoa(os.Getpid())}
		},
	}
}
