package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmined/termhost/internal/hosterr"
)

var errNotRegular = errors.New("not a regular file")

// Upload streams a local file out in chunks.
type Upload struct {
	base
	bufferSize int
	buf        []byte
	file       *os.File
	size       int64
	mode       fs.FileMode
}

func NewUpload(path string, opts ...Option) *Upload {
	o := buildOptions(opts)
	u := &Upload{bufferSize: o.bufferSize}
	u.init(path, o)
	return u
}

func (u *Upload) Direction() Direction { return DirectionUpload }

// Name is the path below the selection root, or the file's base name when the file
// was selected directly.
func (u *Upload) Name() string {
	if u.relPath != "" {
		return strings.TrimPrefix(u.relPath, "/")
	}
	return filepath.Base(u.path)
}

func (u *Upload) Size() int64       { return u.size }
func (u *Upload) Mode() fs.FileMode { return u.mode }

// Open takes the suspend token, then stats and opens the source for reading.
// On failure the token stays held until Close.
func (u *Upload) Open(ctx context.Context) error {
	if err := u.beginOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := u.acquire(fmt.Sprintf("uploading %s", u.Name())); err != nil {
		return u.fail(fmt.Errorf("acquire suspend token: %w", err))
	}

	info, err := os.Stat(u.path)
	if err != nil {
		return u.fail(hosterr.NewIOError("stat", u.path, err))
	}
	if !info.Mode().IsRegular() {
		return u.fail(hosterr.NewIOError("open", u.path, errNotRegular))
	}

	file, err := os.Open(u.path)
	if err != nil {
		return u.fail(hosterr.NewIOError("open", u.path, err))
	}

	u.file = file
	u.size = info.Size()
	u.mode = info.Mode().Perm()
	u.total.Store(u.size)
	u.buf = make([]byte, u.bufferSize)
	u.state = stateOpen

	slog.Debug("upload open", "id", u.id, "path", u.path, "size", u.size)
	return nil
}

// Read returns the next chunk, or io.EOF once the file is drained.
//
// Every chunk but the last fills the buffer. The returned slice aliases the
// transfer's buffer and is overwritten by the next Read, so consume or copy it first.
func (u *Upload) Read(ctx context.Context) ([]byte, error) {
	if err := u.usable(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := io.ReadFull(u.file, u.buf)
	switch {
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	default:
		return nil, u.fail(hosterr.NewIOError("read", u.path, err))
	}

	u.advance(n)
	return u.buf[:n], nil
}

// Close releases the suspend token and the file handle. Calls after the first
// return the first call's result.
func (u *Upload) Close() error {
	err := u.shutdown(func() error {
		if u.file == nil {
			return nil
		}
		return u.file.Close()
	})
	slog.Debug("upload closed", "id", u.id, "path", u.path, "transferred", u.transferred.Load())
	return err
}

var _ Transfer = (*Upload)(nil)
