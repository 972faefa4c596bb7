package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPump_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	data := patterned(1<<20 + 17)
	writeFile(t, src, data)

	blocker := newCountingBlocker()
	opts := []Option{WithBlocker(blocker), WithBufferSize(64 * 1024)}

	err := WithUpload(context.Background(), src, func(u *Upload) error {
		return WithDownload(context.Background(), dst, u.Mode(), u.Size(), func(d *Download) error {
			assert.Equal(t, 2, blocker.Active())
			if err := Pump(context.Background(), u, d); err != nil {
				return err
			}
			assert.Equal(t, u.Progress(), d.Progress())
			return nil
		}, opts...)
	}, opts...)
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	acquired, released := blocker.counts()
	assert.Equal(t, 2, acquired)
	assert.Equal(t, 2, released)
	assert.False(t, blocker.Inhibiting())
}

func TestWithUpload_ClosesOnCallbackError(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.bin")
	writeFile(t, src, patterned(10))

	blocker := newCountingBlocker()
	boom := errors.New("boom")
	var captured *Upload

	err := WithUpload(context.Background(), src, func(u *Upload) error {
		captured = u
		return boom
	}, WithBlocker(blocker))
	assert.ErrorIs(t, err, boom)

	_, readErr := captured.Read(context.Background())
	assert.ErrorIs(t, readErr, ErrClosed)
	assert.Equal(t, 0, blocker.Active())
}

func TestWithUpload_ClosesOnOpenError(t *testing.T) {
	blocker := newCountingBlocker()
	called := false

	err := WithUpload(context.Background(), filepath.Join(t.TempDir(), "missing"), func(*Upload) error {
		called = true
		return nil
	}, WithBlocker(blocker))
	require.Error(t, err)
	assert.False(t, called)

	acquired, released := blocker.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
}

type failingReader struct{ err error }

func (r failingReader) Read(context.Context) ([]byte, error) { return nil, r.err }

func TestPump_PropagatesReadError(t *testing.T) {
	boom := errors.New("read boom")
	err := WithDownload(context.Background(), filepath.Join(t.TempDir(), "out"), 0o644, 0, func(d *Download) error {
		return Pump(context.Background(), failingReader{err: boom}, d)
	})
	assert.ErrorIs(t, err, boom)
}
