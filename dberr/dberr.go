// Package dberr defines the error kinds shared by every storage layer
// package. Callers test the kind with errors.Is; wrapping with
// github.com/pkg/errors keeps a human-readable call chain on top of it.
package dberr

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Sentinel kinds. Wrap these with errors.Wrap/Wrapf at the call site,
// never return them bare once there is context to add.
var (
	// ErrIO marks a disk read/write failure. Fatal to the current call.
	ErrIO = errors.New("io error")

	// ErrEncoding marks page or value bytes that failed to decode into
	// the shape the caller expected.
	ErrEncoding = errors.New("encoding error")

	// ErrBufferInsufficient means the buffer pool could not produce a
	// frame for a fetch or new-page request. Recoverable by the caller.
	ErrBufferInsufficient = errors.New("buffer pool has no free frame")

	// ErrWouldBlock names a latch try-lock that would block. The range
	// scan reports a failed sibling try-lock through a boolean and
	// restarts instead, so no code in this module returns it.
	ErrWouldBlock = errors.New("latch would block")

	// ErrFrameNotEvictable is returned by Replacer.Remove when asked to
	// remove a frame that is currently evictable.
	ErrFrameNotEvictable = errors.New("frame is evictable")

	// ErrNotFound marks table, column, or tuple absence.
	ErrNotFound = errors.New("not found")
)

// Wrap attaches msg as context to err while preserving errors.Is against
// the sentinel kinds above.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Is reports whether err is, or wraps, kind. Thin wrapper over the
// standard errors.Is so callers don't need two error import paths.
func Is(err, kind error) bool {
	return stderrors.Is(err, kind)
}
