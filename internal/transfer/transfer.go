// Package transfer moves file contents in fixed-size chunks.
//
// An Upload reads a local file chunk by chunk and a Download writes chunks into a
// local file; moving the chunks between hosts is the caller's business. Both hold a
// suspend-prevention token from Open until Close. Close must be called on every
// path, including after a failed Open, Read or Write. WithUpload and WithDownload
// do that for you.
package transfer

import (
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/openmined/termhost/internal/hosterr"
	"github.com/openmined/termhost/internal/suspend"
)

// DefaultBufferSize is the chunk size used when WithBufferSize is not given.
const DefaultBufferSize = 256 * 1024

var (
	ErrNotOpen     = &hosterr.StateError{Code: hosterr.CodeNotOpen, Message: "transfer: not open"}
	ErrClosed      = &hosterr.StateError{Code: hosterr.CodeClosed, Message: "transfer: closed"}
	ErrAlreadyOpen = errors.New("transfer: already opened")
)

type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// Progress is a snapshot of bytes moved against the expected total.
type Progress struct {
	Transferred int64 `json:"transferred"`
	Total       int64 `json:"total"`
}

// Percent is in [0, 100]. An unknown or zero total reports 0.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Transferred) / float64(p.Total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// ProgressFunc is called after every chunk with the running totals.
type ProgressFunc func(p Progress)

// Transfer is the read-only view shared by uploads and downloads.
type Transfer interface {
	ID() string
	Direction() Direction
	Name() string
	Path() string
	RelPath() string
	Size() int64
	Mode() fs.FileMode
	Progress() Progress
	Close() error
}

type Option func(*options)

type options struct {
	bufferSize int
	blocker    suspend.Blocker
	progressFn ProgressFunc
	relPath    string
}

func defaultOptions() options {
	return options{
		bufferSize: DefaultBufferSize,
		blocker:    &suspend.Nop{},
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithBufferSize sets the chunk size. Values below 1 keep the default.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithBlocker sets where suspend-prevention tokens come from.
func WithBlocker(b suspend.Blocker) Option {
	return func(o *options) {
		if b != nil {
			o.blocker = b
		}
	}
}

func WithProgressFunc(fn ProgressFunc) Option {
	return func(o *options) {
		o.progressFn = fn
	}
}

// WithRelPath records the path of the file below its selection root.
func WithRelPath(rel string) Option {
	return func(o *options) {
		o.relPath = rel
	}
}

type state int

const (
	stateNew state = iota
	stateOpen
	stateFailed
	stateClosed
)

// base holds the lifecycle and progress bookkeeping common to both directions.
// Lifecycle methods are not safe for concurrent use; Progress is.
type base struct {
	id         string
	path       string
	relPath    string
	blocker    suspend.Blocker
	progressFn ProgressFunc

	token    suspend.Token
	hasToken bool

	state   state
	failure error

	transferred atomic.Int64
	total       atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

func (b *base) init(path string, o options) {
	b.id = uuid.NewString()
	b.path = path
	b.relPath = o.relPath
	b.blocker = o.blocker
	b.progressFn = o.progressFn
}

func (b *base) ID() string      { return b.id }
func (b *base) Path() string    { return b.path }
func (b *base) RelPath() string { return b.relPath }

func (b *base) Progress() Progress {
	return Progress{Transferred: b.transferred.Load(), Total: b.total.Load()}
}

func (b *base) beginOpen() error {
	switch b.state {
	case stateNew:
		return nil
	case stateClosed:
		return ErrClosed
	default:
		return ErrAlreadyOpen
	}
}

// acquire takes the suspend token. It is a no-op when one is already held.
func (b *base) acquire(reason string) error {
	if b.hasToken {
		return nil
	}
	token, err := b.blocker.Acquire(reason)
	if err != nil {
		return err
	}
	b.token = token
	b.hasToken = true
	return nil
}

// usable reports whether a chunk operation may run now.
func (b *base) usable() error {
	switch b.state {
	case stateOpen:
		return nil
	case stateFailed:
		return b.failure
	case stateClosed:
		return ErrClosed
	default:
		return ErrNotOpen
	}
}

// fail makes err sticky; only Close is meaningful afterwards.
func (b *base) fail(err error) error {
	b.state = stateFailed
	b.failure = err
	return err
}

func (b *base) advance(n int) {
	if n <= 0 {
		return
	}
	moved := b.transferred.Add(int64(n))
	if b.progressFn != nil {
		b.progressFn(Progress{Transferred: moved, Total: b.total.Load()})
	}
}

// shutdown releases the token and runs closeFile, both at most once.
func (b *base) shutdown(closeFile func() error) error {
	b.closeOnce.Do(func() {
		var errs []error
		if b.hasToken {
			b.hasToken = false
			if err := b.blocker.Release(b.token); err != nil {
				errs = append(errs, err)
			}
		}
		if err := closeFile(); err != nil {
			errs = append(errs, hosterr.NewIOError("close", b.path, err))
		}
		b.state = stateClosed
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}
