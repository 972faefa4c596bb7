package transfer

import (
	"context"
	"errors"
	"io"
	"io/fs"
)

// ChunkReader is the source side of Pump.
type ChunkReader interface {
	Read(ctx context.Context) ([]byte, error)
}

// ChunkWriter is the destination side of Pump.
type ChunkWriter interface {
	Write(ctx context.Context, p []byte) error
}

// WithUpload opens an upload of path, runs fn and closes the upload on every exit
// path. Close errors are joined with fn's error.
func WithUpload(ctx context.Context, path string, fn func(*Upload) error, opts ...Option) (err error) {
	u := NewUpload(path, opts...)
	defer func() {
		err = errors.Join(err, u.Close())
	}()

	if err := u.Open(ctx); err != nil {
		return err
	}
	return fn(u)
}

// WithDownload opens a download into path, runs fn and closes the download on every
// exit path. Close errors are joined with fn's error.
func WithDownload(ctx context.Context, path string, mode fs.FileMode, size int64, fn func(*Download) error, opts ...Option) (err error) {
	d := NewDownload(path, mode, size, opts...)
	defer func() {
		err = errors.Join(err, d.Close())
	}()

	if err := d.Open(ctx); err != nil {
		return err
	}
	return fn(d)
}

// Pump moves chunks from src to dst until src reports io.EOF. Each chunk is fully
// written before the next is read, which is what Upload's buffer reuse requires.
func Pump(ctx context.Context, src ChunkReader, dst ChunkWriter) error {
	for {
		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := dst.Write(ctx, chunk); err != nil {
			return err
		}
	}
}
