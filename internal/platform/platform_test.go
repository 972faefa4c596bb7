package platform

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/openmined/termhost/internal/hosterr"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessRunning(t *testing.T) {
	ctx := context.Background()

	missing, err := IsProcessRunning(ctx, "no-such-process-"+uuid.NewString())
	if errors.Is(err, hosterr.ErrUnsupported) {
		assert.Equal(t, hosterr.CodeUnsupported, hosterr.Code(err))
		t.Skip("process enumeration unsupported on " + runtime.GOOS)
	}
	require.NoError(t, err)
	assert.False(t, missing)

	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	require.NoError(t, err)
	name, err := self.NameWithContext(ctx)
	require.NoError(t, err)

	running, err := IsProcessRunning(ctx, name)
	require.NoError(t, err)
	assert.True(t, running)
}

func TestIsProcessRunning_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := IsProcessRunning(ctx, "anything")
	assert.Error(t, err)
}

func TestOSRelease(t *testing.T) {
	release, err := OSRelease(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, release)

	info, err := Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, release, info.KernelVersion)
}

func TestSameProcessName(t *testing.T) {
	assert.True(t, sameProcessName("bash", "bash"))
	assert.False(t, sameProcessName("bash", "zsh"))
	if runtime.GOOS == "windows" {
		assert.True(t, sameProcessName("WinSCP.exe", "winscp"))
	} else {
		assert.False(t, sameProcessName("Bash", "bash"))
	}
}
