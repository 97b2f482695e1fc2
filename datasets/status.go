package datasets

import (
	"fmt"
	"syscall"
)

// Code is the closed set of outcome kinds a trial or the overall entry point
// can report. It mirrors the absl::StatusCode taxonomy used by the original
// C++ (see original_source/gematria/datasets/find_accessed_addrs.cc): ok,
// invalid-argument (fixable by the driver retrying with different
// registers), and internal (anything else unexpected).
type Code int

const (
	// CodeOK means the trial completed; an accessed block may or may not
	// have been newly discovered.
	CodeOK Code = iota
	// CodeInvalidArgument means the trial failed in a way the driver can try
	// to fix by randomising registers and retrying: a floating point
	// exception, or a previously-discovered block that could no longer be
	// mapped at its original address.
	CodeInvalidArgument
	// CodeInternal means anything else: unexpected signals, short IPC reads,
	// syscall failures not otherwise classified.
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeInvalidArgument:
		return "invalid-argument"
	case CodeInternal:
		return "internal"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// StatusError is the error type used throughout this package. It carries a
// Code so callers (chiefly the convergence driver) can distinguish fixable
// failures from fatal ones, and an optional Errno for syscall failures so
// operators can diagnose the underlying OS error.
type StatusError struct {
	Code    Code
	Message string
	Errno   syscall.Errno // zero if not errno-bearing
}

func (e *StatusError) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("%s: %s (errno %d: %s)", e.Code, e.Message, e.Errno, e.Errno.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalidArgumentf(format string, a ...interface{}) *StatusError {
	return &StatusError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, a...)}
}

func internalf(format string, a ...interface{}) *StatusError {
	return &StatusError{Code: CodeInternal, Message: fmt.Sprintf(format, a...)}
}

// fromErrno wraps a syscall failure as an errno-bearing internal error,
// preserving the original errno for diagnosis.
func fromErrno(op string, err error) *StatusError {
	se := &StatusError{Code: CodeInternal, Message: fmt.Sprintf("%s failed", op)}
	if errno, ok := err.(syscall.Errno); ok {
		se.Errno = errno
	}
	return se
}

// isRetryable reports whether an I/O error is the kind that should simply be
// retried rather than surfaced: interrupted by a signal, or would-block.
func isRetryable(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == syscall.EINTR || errno == syscall.EAGAIN || errno == syscall.EWOULDBLOCK
}
