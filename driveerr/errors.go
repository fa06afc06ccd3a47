// Package driveerr defines the error kinds a drive check can end with.
// Every error carries a Kind so callers can branch with errors.Is against the
// exported sentinels regardless of the operation or path involved.
package driveerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindInsufficientSpace   Kind = "INSUFFICIENT_SPACE"
	KindIOFailure           Kind = "IO_FAILURE"
	KindVerifyTargetMissing Kind = "VERIFY_TARGET_MISSING"
	KindFileTooSmall        Kind = "FILE_TOO_SMALL"
	KindDigestMismatch      Kind = "DIGEST_MISMATCH"
	KindInterrupted         Kind = "INTERRUPTED"
	KindInvalidConfig       Kind = "INVALID_CONFIG"
)

// Sentinels for errors.Is.
var (
	ErrInsufficientSpace   = &Error{Kind: KindInsufficientSpace}
	ErrIOFailure           = &Error{Kind: KindIOFailure}
	ErrVerifyTargetMissing = &Error{Kind: KindVerifyTargetMissing}
	ErrFileTooSmall        = &Error{Kind: KindFileTooSmall}
	ErrDigestMismatch      = &Error{Kind: KindDigestMismatch}
	ErrInterrupted         = &Error{Kind: KindInterrupted}
	ErrInvalidConfig       = &Error{Kind: KindInvalidConfig}
)

// Error is the structured error returned by the measurement packages.
type Error struct {
	Kind Kind
	Op   string // write, read, sample, preflight...
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a driveerr.Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds an Error of the given kind.
func New(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// Newf builds an Error whose cause is a formatted message.
func Newf(kind Kind, op, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind carried by err, or "" when err is not a driveerr.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err must abort a run. Digest mismatches are folded
// into the result instead.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) != KindDigestMismatch
}
