package hosterr

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrUnsupported is matched by every UnsupportedError
	ErrUnsupported = errors.New("host: operation not supported")
)

const (
	CodeIO          = "E_IO"          // open/read/write/stat/rename failure on a path
	CodeUnsupported = "E_UNSUPPORTED" // capability missing on this platform
	CodeClosed      = "E_CLOSED"      // object used after close
	CodeNotOpen     = "E_NOT_OPEN"    // object used before open
)

// Coded is implemented by errors that carry a stable error code.
type Coded interface {
	error
	ErrorCode() string
}

// IOError is a file-system failure on a specific path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// NewIOError wraps err with the operation and path it failed on. A nil err yields nil.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error     { return e.Err }
func (e *IOError) ErrorCode() string { return CodeIO }

var _ Coded = (*IOError)(nil)

// UnsupportedError is returned when a capability is invoked on a platform that lacks it.
type UnsupportedError struct {
	Op       string
	Platform string
}

func NewUnsupportedError(op string) *UnsupportedError {
	return &UnsupportedError{Op: op, Platform: runtime.GOOS}
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported on %s", e.Op, e.Platform)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }
func (e *UnsupportedError) ErrorCode() string    { return CodeUnsupported }

var _ Coded = (*UnsupportedError)(nil)

// StateError reports a lifecycle violation (use before open, use after close).
type StateError struct {
	Code    string
	Message string
}

func (e *StateError) Error() string     { return e.Message }
func (e *StateError) ErrorCode() string { return e.Code }

var _ Coded = (*StateError)(nil)

// Code returns the error code of the first Coded error in err's chain, or "".
func Code(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

// IsIO reports whether err is (or wraps) an IOError and returns the offending path.
func IsIO(err error) (string, bool) {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return ioErr.Path, true
	}
	return "", false
}
