// Package platform answers questions about the host the app runs on.
package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Info describes the running host.
type Info struct {
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
}

// OSRelease returns the kernel release string, e.g. "6.8.0-45-generic" or "23.6.0".
func OSRelease(ctx context.Context) (string, error) {
	release, err := host.KernelVersionWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("kernel version: %w", err)
	}
	return release, nil
}

func Describe(ctx context.Context) (Info, error) {
	stat, err := host.InfoWithContext(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("host info: %w", err)
	}
	return Info{
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
		Platform:        stat.Platform,
		PlatformVersion: stat.PlatformVersion,
		KernelVersion:   stat.KernelVersion,
	}, nil
}

// sameProcessName compares executable names, ignoring case and the .exe suffix on
// Windows.
func sameProcessName(a, b string) bool {
	if runtime.GOOS != "windows" {
		return a == b
	}
	trim := func(s string) string {
		return strings.TrimSuffix(strings.ToLower(s), ".exe")
	}
	return trim(a) == trim(b)
}
