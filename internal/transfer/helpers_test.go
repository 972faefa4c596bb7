package transfer

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openmined/termhost/internal/suspend"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// countingBlocker records every acquire and release on top of a Registry.
type countingBlocker struct {
	*suspend.Registry
	mu        sync.Mutex
	acquired  int
	released  int
	failAfter int // fail the Nth acquire (1-based); 0 never fails
}

func newCountingBlocker() *countingBlocker {
	return &countingBlocker{Registry: suspend.NewRegistry(nil)}
}

var errAcquireRefused = errors.New("acquire refused")

func (c *countingBlocker) Acquire(reason string) (suspend.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAfter > 0 && c.acquired+1 == c.failAfter {
		c.acquired++
		return 0, errAcquireRefused
	}
	c.acquired++
	return c.Registry.Acquire(reason)
}

func (c *countingBlocker) Release(token suspend.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
	return c.Registry.Release(token)
}

func (c *countingBlocker) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired, c.released
}
