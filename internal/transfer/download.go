package transfer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmined/termhost/internal/hosterr"
)

// maxZeroWrites bounds consecutive writes that accept nothing without an error.
const maxZeroWrites = 3

// fileWriter is the destination handle. A Write may accept fewer bytes than given
// without returning an error; Download keeps writing the remainder.
type fileWriter interface {
	io.Writer
	io.Closer
}

type openFunc func(path string, mode fs.FileMode) (fileWriter, error)

func openDestination(path string, mode fs.FileMode) (fileWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Download writes incoming chunks into a local file.
type Download struct {
	base
	mode     fs.FileMode
	size     int64
	file     fileWriter
	openFile openFunc
}

// NewDownload prepares a download of size bytes into path, created with mode.
func NewDownload(path string, mode fs.FileMode, size int64, opts ...Option) *Download {
	o := buildOptions(opts)
	d := &Download{
		mode:     mode.Perm(),
		size:     size,
		openFile: openDestination,
	}
	d.init(path, o)
	d.total.Store(size)
	return d
}

func (d *Download) Direction() Direction { return DirectionDownload }
func (d *Download) Name() string         { return filepath.Base(d.path) }
func (d *Download) Size() int64          { return d.size }
func (d *Download) Mode() fs.FileMode    { return d.mode }

// Open takes the suspend token, then creates or truncates the destination.
// On failure the token stays held until Close.
func (d *Download) Open(ctx context.Context) error {
	if err := d.beginOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.acquire(fmt.Sprintf("downloading %s", d.Name())); err != nil {
		return d.fail(fmt.Errorf("acquire suspend token: %w", err))
	}

	file, err := d.openFile(d.path, d.mode)
	if err != nil {
		return d.fail(hosterr.NewIOError("open", d.path, err))
	}

	d.file = file
	d.state = stateOpen

	slog.Debug("download open", "id", d.id, "path", d.path, "size", d.size, "mode", d.mode)
	return nil
}

// Write persists all of p, looping over partial writes. Progress grows by what each
// underlying write accepted, so it stays accurate even when Write fails midway.
func (d *Download) Write(ctx context.Context, p []byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	zeroWrites := 0
	for pos := 0; pos < len(p); {
		n, err := d.file.Write(p[pos:])
		if n > 0 {
			pos += n
			zeroWrites = 0
			d.advance(n)
		}
		if err != nil {
			return d.fail(hosterr.NewIOError("write", d.path, err))
		}
		if n == 0 {
			zeroWrites++
			if zeroWrites >= maxZeroWrites {
				return d.fail(hosterr.NewIOError("write", d.path, io.ErrShortWrite))
			}
		}
	}
	return nil
}

// Close releases the suspend token and the file handle. Calls after the first
// return the first call's result.
func (d *Download) Close() error {
	err := d.shutdown(func() error {
		if d.file == nil {
			return nil
		}
		return d.file.Close()
	})
	slog.Debug("download closed", "id", d.id, "path", d.path, "transferred", d.transferred.Load())
	return err
}

var _ Transfer = (*Download)(nil)
