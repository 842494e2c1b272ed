package task

import (
	"context"
	"errors"
	"fmt"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

// Kind classifies how an attempt failed.
type Kind int

const (
	// KindNone is reported for a nil error.
	KindNone Kind = iota
	// KindRecoverable failures are transient and retry-eligible.
	KindRecoverable
	// KindFatal failures are permanent and never retried.
	KindFatal
	// KindTimeout marks an attempt that exceeded its deadline. Retried like KindRecoverable.
	KindTimeout
	// KindCancelled marks an attempt or task cancelled by the caller or by shutdown.
	KindCancelled
	// KindPanic marks an Execute call that panicked. Treated as fatal.
	KindPanic
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRecoverable:
		return "recoverable"
	case KindFatal:
		return "fatal"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind may be retried.
func (k Kind) Retryable() bool {
	return k == KindRecoverable || k == KindTimeout
}

// Error is a classified task failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "task: " + e.Kind.String()
	}
	return "task: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes timeouts match the shared ErrTimeout sentinel.
func (e *Error) Is(target error) bool {
	return e.Kind == KindTimeout && target == tferrors.ErrTimeout
}

// Recoverable marks err as transient. A nil err yields nil.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindRecoverable, Err: err}
}

// Fatal marks err as permanent. A nil err yields nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindFatal, Err: err}
}

// Recoverablef formats a transient error.
func Recoverablef(format string, args ...interface{}) error {
	return Recoverable(fmt.Errorf(format, args...))
}

// Fatalf formats a permanent error.
func Fatalf(format string, args ...interface{}) error {
	return Fatal(fmt.Errorf(format, args...))
}

// KindOf classifies err. Unclassified errors are recoverable;
// bare context deadline errors are timeouts and bare cancellations are cancelled.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindRecoverable
	}
}

// IsRecoverable reports whether err may be retried.
func IsRecoverable(err error) bool {
	return KindOf(err).Retryable()
}

// IsFatal reports whether err is a permanent failure (fatal or panic).
func IsFatal(err error) bool {
	k := KindOf(err)
	return k == KindFatal || k == KindPanic
}
