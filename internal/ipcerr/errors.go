// Package ipcerr provides the structured error type shared by every package
// in this module that surfaces OS/IPC failures (shared-memory, semaphore, and
// thread-manager operations) as return values at its nearest public boundary.
package ipcerr

import (
	"errors"
	"fmt"
	"syscall"
)

// Code is a high-level error category, independent of the underlying errno.
type Code string

const (
	CodeSegmentGone    Code = "segment already removed"
	CodeSemaphoreGone  Code = "semaphore already removed"
	CodeNotFound       Code = "key not registered"
	CodeInvalidHandle  Code = "invalid thread handle"
	CodeOverCapacity   Code = "thread table full"
	CodeInvalidIndex   Code = "point index out of range"
	CodeInvalidSignal  Code = "signal number out of range"
	CodeUsage          Code = "usage error"
	CodeParse          Code = "parse error"
	CodeIO             Code = "I/O error"
	CodePermission     Code = "permission denied"
	CodeRendezvous     Code = "rendezvous contract violation"
)

// Error is a structured, context-carrying error.
type Error struct {
	Op    string        // operation that failed, e.g. "Connect", "Execute"
	Key   int           // segment key, if applicable (0 if not)
	Code  Code          // high-level category
	Errno syscall.Errno // kernel errno, if applicable (0 if not)
	Msg   string        // human-readable detail
	Inner error         // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Op != "" && e.Errno != 0:
		return fmt.Sprintf("pointmon: %s: %s (errno=%d)", e.Op, msg, e.Errno)
	case e.Op != "":
		return fmt.Sprintf("pointmon: %s: %s", e.Op, msg)
	default:
		return fmt.Sprintf("pointmon: %s", msg)
	}
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// New creates a structured error with no wrapped cause.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WithKey attaches a segment key to an error.
func (e *Error) WithKey(key int) *Error {
	e.Key = key
	return e
}

// FromErrno wraps a syscall errno with the given operation and category.
func FromErrno(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error()}
}

// mapErrnoToCode gives a reasonable default category for a bare errno. Call
// sites that know the domain-specific meaning of a particular errno (e.g.
// EINVAL from shmctl meaning "segment already removed") construct a
// more specific *Error directly instead of relying on this default.
func mapErrnoToCode(errno syscall.Errno) Code {
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return CodePermission
	case syscall.ENOENT:
		return CodeNotFound
	default:
		return CodeIO
	}
}

// Is reports whether err is a structured Error with the given category.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
