//go:build !(linux || darwin || windows || freebsd)

package platform

import (
	"context"

	"github.com/openmined/termhost/internal/hosterr"
)

func IsProcessRunning(ctx context.Context, name string) (bool, error) {
	return false, hosterr.NewUnsupportedError("process enumeration")
}
